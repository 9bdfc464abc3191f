// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"crypto/tls"
	"fmt"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/qedge/qedge/internal/quic"
)

// CertWatcher reloads a TLS certificate/key pair into a shared QUIC config
// whenever either file changes on disk, so a certificate rotation never
// requires restarting the listener. Its event loop follows the same
// watcher.Events/watcher.Errors select pattern used elsewhere in this
// codebase for filesystem-triggered work.
type CertWatcher struct {
	certFile, keyFile string
	alpnProtocols     []string

	shared  *quic.SharedConfig
	watcher *fsnotify.Watcher

	closeChan chan struct{}
}

// NewCertWatcher loads the initial certificate/key pair into shared and
// starts watching both files for changes.
func NewCertWatcher(certFile, keyFile string, alpnProtocols []string, shared *quic.SharedConfig) (*CertWatcher, error) {
	w := &CertWatcher{
		certFile:      certFile,
		keyFile:       keyFile,
		alpnProtocols: alpnProtocols,
		shared:        shared,
		closeChan:     make(chan struct{}),
	}

	if err := w.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to start certificate file watcher: %w", err)
	}
	if err := watcher.Add(certFile); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", certFile, err)
	}
	if err := watcher.Add(keyFile); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", keyFile, err)
	}
	w.watcher = watcher

	go w.run()
	return w, nil
}

func (w *CertWatcher) reload() error {
	cert, err := tls.LoadX509KeyPair(w.certFile, w.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	w.shared.SetTLSConfig(&tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   w.alpnProtocols,
		MinVersion:   tls.VersionTLS13,
	})
	return nil
}

func (w *CertWatcher) run() {
	for {
		select {
		case <-w.closeChan:
			return

		case e, ok := <-w.watcher.Events:
			if !ok {
				log.Error("certificate watcher's Event channel was closed")
				return
			}
			if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.reload(); err != nil {
				log.WithFields(log.Fields{
					"file":  e.Name,
					"error": err,
				}).Warn("failed to reload TLS certificate after file change")
				continue
			}
			log.WithField("file", e.Name).Info("reloaded TLS certificate")

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.WithField("error", err).Warn("certificate watcher reported an error")
		}
	}
}

// Close stops the watcher goroutine and releases the underlying fsnotify
// watcher.
func (w *CertWatcher) Close() error {
	close(w.closeChan)
	return w.watcher.Close()
}
