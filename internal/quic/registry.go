// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// sharedEngine is an Engine guarded by a mutex, shared between the
// handshake driver, the TX pump, and the listener's routing path. The
// engine is mutated only while holding mu, and mu is never held across a
// blocking channel operation or socket syscall.
type sharedEngine struct {
	mu     sync.Mutex
	Engine Engine
}

// HandleKind discriminates a ConnectionHandle's variant.
type HandleKind int

const (
	HandleIncoming HandleKind = iota
	HandleEstablished
)

func (k HandleKind) String() string {
	if k == HandleEstablished {
		return "Established"
	}
	return "Incoming"
}

// IncomingHandle is the listener's view of a connection still mid
// handshake: a channel to forward datagrams that arrive after the first,
// and a one-shot-capacity channel the handshake driver publishes its
// outcome on.
type IncomingHandle struct {
	udpTx      chan *routedDatagram
	responseRx chan HandshakeResponse
}

// EstablishedHandle is the listener's view of a live connection: its
// shared engine and the notifications used to wake the TX pump and any
// handshake-completion waiter.
type EstablishedHandle struct {
	connID   ConnectionID
	engine   *sharedEngine
	rxNotify *Notify
	txNotify *Notify
}

// ConnectionHandle is the listener's registry entry for one connection. It
// transitions monotonically from Incoming to Established exactly once, via
// establish.
type ConnectionHandle struct {
	kind        HandleKind
	incoming    *IncomingHandle
	established *EstablishedHandle
}

// Incoming returns the handle's Incoming view, if it has not yet been
// established.
func (h *ConnectionHandle) Incoming() (*IncomingHandle, bool) {
	if h.kind == HandleIncoming {
		return h.incoming, true
	}
	return nil, false
}

// Established returns the handle's Established view, if the handshake has
// completed.
func (h *ConnectionHandle) Established() (*EstablishedHandle, bool) {
	if h.kind == HandleEstablished {
		return h.established, true
	}
	return nil, false
}

// establish transitions the handle from Incoming to Established in place.
// Calling it on an already-Established handle is a no-op. The listener
// only calls this from its accept loop, the one goroutine that reads or
// mutates registry handles, so no concurrent datagram for this id can race
// the transition; the registry lock is not held while it runs.
func (h *ConnectionHandle) establish(e *EstablishedHandle) {
	if h.kind == HandleEstablished {
		return
	}
	h.kind = HandleEstablished
	h.incoming = nil
	h.established = e
}

// registry maps connection ids to connection handles and reaps entries
// whose owning Connection has been dropped. At most one entry exists per
// connection id at any time.
type registry struct {
	mu      sync.Mutex
	conns   map[string]*ConnectionHandle
	dropped chan ConnectionID
	metrics *Metrics
}

func newRegistry(metrics *Metrics) *registry {
	return &registry{
		conns:   make(map[string]*ConnectionHandle),
		dropped: make(chan ConnectionID, ConnectionDropChannelSize),
		metrics: metrics,
	}
}

// lookup returns the handle registered under id, if any.
func (r *registry) lookup(id ConnectionID) (*ConnectionHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.conns[string(id)]
	return h, ok
}

// insert registers handle under id. The caller must ensure id is not
// already present (the listener only inserts immediately after both
// lookups in the accept loop miss).
func (r *registry) insert(id ConnectionID, handle *ConnectionHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[string(id)] = handle
}

// remove drops the entry for id, if present.
func (r *registry) remove(id ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, string(id))
}

// reapDropped drains the drop-notification channel and removes every
// drained id from the registry. It must run at the top of every accept
// iteration, before routing the new datagram. A drained id that is not
// present in the registry indicates a double-drop: it is logged at error
// level and ignored, never a panic.
func (r *registry) reapDropped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		select {
		case id := <-r.dropped:
			if _, ok := r.conns[string(id)]; !ok {
				log.WithField("connection_id", id.String()).Error("quic: failed to remove connection handle: already absent")
				continue
			}
			delete(r.conns, string(id))
			r.metrics.dropReaped()
		default:
			return
		}
	}
}

// notifyDropped enqueues id for reaping on the next accept iteration. If
// the channel is full this blocks; the caller is never the accept loop
// itself, so this cannot deadlock the hot path.
func (r *registry) notifyDropped(id ConnectionID) {
	r.dropped <- id
}
