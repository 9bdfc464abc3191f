// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/qedge/qedge/internal/admin"
	"github.com/qedge/qedge/internal/config"
	"github.com/qedge/qedge/internal/quic"
)

// waitSigint blocks the current goroutine until a SIGINT appears.
func waitSigint() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
}

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("Usage: %s configuration.toml", os.Args[0])
	}

	conf, err := config.Load(os.Args[1])
	if err != nil {
		log.WithField("error", err).Fatal("failed to parse configuration")
	}

	transportConfig := conf.Listen.QUICGoConfig()
	log.WithFields(log.Fields{
		"max_idle_timeout": transportConfig.MaxIdleTimeout,
		"allow_0rtt":       transportConfig.Allow0RTT,
	}).Debug("negotiated transport parameters")

	sharedConfig := quic.NewSharedConfig(nil, conf.Listen.MaxDatagramSize)
	certWatcher, err := config.NewCertWatcher(conf.TLS.CertFile, conf.TLS.KeyFile, []string{"qedge"}, sharedConfig)
	if err != nil {
		log.WithField("error", err).Fatal("failed to start certificate watcher")
	}
	defer certWatcher.Close()

	metrics := quic.NewMetrics(prometheus.DefaultRegisterer)
	listener, err := quic.Listen(conf.Listen.Address, sharedConfig, metrics)
	if err != nil {
		log.WithField("error", err).Fatal("failed to open QUIC listener")
	}
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())

	var adminServer *admin.Server
	if conf.Admin.Address != "" {
		adminServer, err = admin.New(admin.Options{
			Address:   conf.Admin.Address,
			Metrics:   conf.Admin.Metrics,
			Websocket: conf.Admin.Websocket,
			Healthy:   func() bool { return ctx.Err() == nil },
		})
		if err != nil {
			log.WithField("error", err).Fatal("failed to start admin server")
		}
		defer adminServer.Close()
	}

	// If either goroutine returns, cancel the other: a listener failure
	// should stop accepting, and the accept loop ending (listener closed)
	// should stop the serve loop too.
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer cancel()
		return listener.Serve(gctx)
	})
	group.Go(func() error {
		defer cancel()
		acceptLoop(gctx, listener, adminServer)
		return nil
	})

	go func() {
		waitSigint()
		log.Info("shutting down..")
		cancel()
	}()

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		log.WithField("error", err).Error("listener stopped unexpectedly")
	}
}

// acceptLoop drives newly Incoming connections to completion using
// FakeEngine, this core's crypto-free stand-in for a real QUIC protocol
// engine, and publishes an admin event for every connection established.
// A production deployment of this listener would hand each Incoming
// connection's first datagram to a real handshake driver instead.
func acceptLoop(ctx context.Context, listener *quic.Listener, adminServer *admin.Server) {
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			return
		}

		go func(conn *quic.Connection) {
			engine := quic.NewFakeEngine(conn.ConnectionID())
			if err := conn.Establish(engine); err != nil {
				log.WithFields(log.Fields{
					"connection_id": conn.ConnectionID().String(),
					"error":         err,
				}).Warn("failed to establish connection")
				conn.Close()
				return
			}

			log.WithField("connection_id", conn.ConnectionID().String()).Info("connection established")
			if adminServer != nil {
				adminServer.Publish(admin.Event{Kind: "established", ConnectionID: conn.ConnectionID().String()})
			}
		}(conn)
	}
}
