// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package admin serves qedged's operator-facing HTTP surface: a health
// check, Prometheus metrics, and an event websocket.
package admin

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Event is one notification published to every connected /events
// websocket client, e.g. a connection being established or dropped.
type Event struct {
	Kind         string `json:"kind"`
	ConnectionID string `json:"connection_id"`
}

// Server is qedged's admin HTTP server.
type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan Event

	healthy func() bool
}

// Options configures which endpoints Server registers.
type Options struct {
	Address   string
	Metrics   bool
	Websocket bool
	// Healthy reports whether the listener is currently serving traffic.
	// A nil Healthy always reports healthy.
	Healthy func() bool
}

// New builds a Server and starts it listening in the background. Call
// Close to shut it down.
func New(opts Options) (*Server, error) {
	healthy := opts.Healthy
	if healthy == nil {
		healthy = func() bool { return true }
	}

	s := &Server{
		upgrader: websocket.Upgrader{},
		clients:  make(map[*websocket.Conn]chan Event),
		healthy:  healthy,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	if opts.Metrics {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
	if opts.Websocket {
		r.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	}

	s.httpServer = &http.Server{
		Addr:    opts.Address,
		Handler: r,
	}

	startupErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			startupErr <- err
		}
		close(startupErr)
	}()

	select {
	case err := <-startupErr:
		if err != nil {
			return nil, err
		}
	case <-time.After(100 * time.Millisecond):
	}

	log.WithField("address", opts.Address).Info("admin: listening")
	return s, nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if !s.healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unhealthy"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithField("error", err).Warn("admin: failed to upgrade websocket request")
		return
	}

	events := make(chan Event, 16)
	s.mu.Lock()
	s.clients[conn] = events
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// Publish broadcasts ev to every connected /events client, dropping it for
// any client whose outbound buffer is full rather than blocking the
// publisher.
func (s *Server) Publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, ch := range s.clients {
		select {
		case ch <- ev:
		default:
			log.WithField("remote", conn.RemoteAddr()).Warn("admin: event client buffer full, dropping event")
		}
	}
}

// Close shuts down the HTTP server and every connected websocket client.
func (s *Server) Close() error {
	s.mu.Lock()
	for conn, ch := range s.clients {
		close(ch)
		_ = conn.Close()
	}
	s.clients = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
