// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads qedged's TOML configuration file and applies its
// Logging block to logrus.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	quicgo "github.com/quic-go/quic-go"
	log "github.com/sirupsen/logrus"
)

// Config is the root of qedged's TOML configuration file.
type Config struct {
	Logging LoggingConf
	Listen  ListenConf
	TLS     TLSConf
	Admin   AdminConf
}

// LoggingConf describes the Logging configuration block.
type LoggingConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// ListenConf describes the Listen configuration block: the UDP address the
// QUIC listener binds, the datagram size its burst controller and GSO
// batching are tuned for, and the transport parameters a handshake driver
// built on quic-go's Config would negotiate for every accepted connection.
type ListenConf struct {
	Address         string
	MaxDatagramSize int  `toml:"max-datagram-size"`
	MaxIdleTimeout  int  `toml:"max-idle-timeout-seconds"`
	Allow0RTT       bool `toml:"allow-0rtt"`
}

// QUICGoConfig builds the quic-go transport configuration a handshake
// driver would hand to quic-go's server-side API alongside this package's
// TLS configuration. This core's own Engine seam does not depend on
// quic-go's connection type, but its Config/TLS-ALPN shape is the one a
// real driver plugs in with.
func (c ListenConf) QUICGoConfig() *quicgo.Config {
	idleTimeout := time.Duration(c.MaxIdleTimeout) * time.Second
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Second
	}
	return &quicgo.Config{
		MaxIdleTimeout:  idleTimeout,
		Allow0RTT:       c.Allow0RTT,
		EnableDatagrams: true,
	}
}

// TLSConf describes the TLS configuration block: the certificate and key
// files the listener's handshake driver presents, watched for hot reload.
type TLSConf struct {
	CertFile string `toml:"cert-file"`
	KeyFile  string `toml:"key-file"`
}

// AdminConf describes the Admin configuration block: the HTTP address
// serving health, Prometheus metrics, and the event websocket.
type AdminConf struct {
	Address   string
	Metrics   bool
	Websocket bool
}

// Load decodes filename as a Config and applies its Logging block to the
// global logrus logger.
func Load(filename string) (*Config, error) {
	var conf Config
	if _, err := toml.DecodeFile(filename, &conf); err != nil {
		return nil, fmt.Errorf("failed to decode configuration file: %w", err)
	}

	applyLogging(conf.Logging)

	if conf.Listen.Address == "" {
		return nil, fmt.Errorf("listen.address is empty")
	}
	if conf.Listen.MaxDatagramSize <= 0 {
		conf.Listen.MaxDatagramSize = 1350
	}
	if conf.TLS.CertFile == "" || conf.TLS.KeyFile == "" {
		return nil, fmt.Errorf("tls.cert-file and tls.key-file are required")
	}

	return &conf, nil
}

// applyLogging parses the configured level, toggles caller reporting, and
// picks a formatter.
func applyLogging(conf LoggingConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	default:
		log.Warn("Unknown logging format")
	}
}
