// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import (
	"crypto/tls"
	"sync"
)

// SharedConfig is the QUIC configuration the listener shares by reference
// with every Incoming connection: the TLS configuration driving the
// handshake and the UDP payload size used for burst rounding and GSO
// batching. It is guarded by a mutex that is rarely contended — only
// internal/config's certificate-reload watcher writes to it, while every
// handshake driver only reads.
type SharedConfig struct {
	mu              sync.Mutex
	tlsConfig       *tls.Config
	maxDatagramSize int
}

// NewSharedConfig builds a SharedConfig from an initial TLS configuration
// and UDP payload size.
func NewSharedConfig(tlsConfig *tls.Config, maxDatagramSize int) *SharedConfig {
	if maxDatagramSize <= 0 {
		maxDatagramSize = MaxIPv6QUICDatagramSize
	}
	return &SharedConfig{tlsConfig: tlsConfig, maxDatagramSize: maxDatagramSize}
}

// TLSConfig returns the current TLS configuration.
func (c *SharedConfig) TLSConfig() *tls.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tlsConfig
}

// SetTLSConfig hot-swaps the TLS configuration, e.g. after a certificate
// rotation observed by a file watcher. In-flight handshakes keep using the
// config snapshot they already captured.
func (c *SharedConfig) SetTLSConfig(tlsConfig *tls.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tlsConfig = tlsConfig
}

// MaxDatagramSize returns the configured UDP payload size (the MSS used by
// the burst controller and the TX pump's GSO batching).
func (c *SharedConfig) MaxDatagramSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxDatagramSize
}
