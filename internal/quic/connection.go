// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import (
	"net"
	"sync"
	"syscall"
)

// ConnectionVariant discriminates a Connection's current lifecycle stage.
type ConnectionVariant int

const (
	ConnIncoming ConnectionVariant = iota
	ConnEstablished
)

func (v ConnectionVariant) String() string {
	if v == ConnEstablished {
		return "Established"
	}
	return "Incoming"
}

// Connection is the caller-facing handle for one QUIC connection attempt,
// handed out by Listener.Accept. It starts Incoming and transitions to
// Established exactly once, via Establish; the transition is one-way, like
// the registry's ConnectionHandle it keeps in step with.
type Connection struct {
	mu sync.Mutex

	connID  ConnectionID
	handle  *ConnectionHandle
	metrics *Metrics

	kind        ConnectionVariant
	incoming    *IncomingState
	established *EstablishedState
}

// newIncomingConnection wraps a freshly-registered Incoming state as the
// Connection the listener's accept loop publishes to callers.
func newIncomingConnection(id ConnectionID, handle *ConnectionHandle, state *IncomingState, metrics *Metrics) *Connection {
	return &Connection{
		connID:   id,
		handle:   handle,
		metrics:  metrics,
		kind:     ConnIncoming,
		incoming: state,
	}
}

// ConnectionID returns the id under which this connection is registered.
func (c *Connection) ConnectionID() ConnectionID { return c.connID }

// Variant reports the connection's current lifecycle stage.
func (c *Connection) Variant() ConnectionVariant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kind
}

// Incoming returns the connection's Incoming view, if the handshake has not
// yet completed.
func (c *Connection) Incoming() (*IncomingState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kind == ConnIncoming {
		return c.incoming, true
	}
	return nil, false
}

// Established returns the connection's Established view, if the handshake
// has completed.
func (c *Connection) Established() (*EstablishedState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kind == ConnEstablished {
		return c.established, true
	}
	return nil, false
}

// Establish transitions the connection from Incoming to Established,
// spawning the TX pump over engine. It fails if the connection has already
// been established, or if the Incoming's datagram channel still holds
// unconsumed packets the handshake driver has not yet drained — establishing
// while packets remain queued would silently drop them, since nothing reads
// that channel again once the handle is swapped.
//
// Establish only ever transitions this caller-facing value; the shared
// registry handle is never touched here. The outcome is published on the
// Incoming's response channel instead, and the listener's accept loop
// applies the handle-side transition itself the next time it reads that
// channel while dispatching a datagram for this connection id — the only
// place the registry handle is ever mutated, so no datagram racing this
// call can ever observe a half-updated handle.
func (c *Connection) Establish(engine Engine) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kind != ConnIncoming {
		return NewInternalError("connection already established", ErrAlreadyEstablished)
	}
	if len(c.incoming.udpRx) != 0 {
		return ErrHandshakeNotDrained
	}

	es := newEstablishedState(
		c.connID,
		engine,
		c.incoming.socket,
		c.incoming.socketCaps,
		c.incoming.config,
		c.incoming.dropConn,
		c.metrics,
	)

	c.incoming.Respond(HandshakeResponse{Kind: HandshakeEstablished, Handle: es.Handle()})

	c.kind = ConnEstablished
	c.established = es
	c.incoming = nil

	return nil
}

// Close tears down the connection: an Incoming attempt is simply
// unregistered, while an Established connection has its TX pump aborted
// first. Either way the connection id is queued on the shared drop channel
// so the listener's accept loop reaps the registry entry.
func (c *Connection) Close() {
	c.mu.Lock()
	switch c.kind {
	case ConnEstablished:
		es := c.established
		c.mu.Unlock()
		es.Close()
		c.metrics.establishedDropped()
		return
	default:
		dropConn := c.incoming.dropConn
		id := c.connID
		c.mu.Unlock()
		c.metrics.incomingClosed()
		dropConn <- id
	}
}

// LocalAddr returns the shared listener socket's local address.
func (c *Connection) LocalAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kind == ConnEstablished {
		return c.established.LocalAddr()
	}
	return c.incoming.LocalAddr()
}

// RawConn exposes the shared UDP socket's syscall.RawConn, for callers that
// need to issue their own socket-level operations (this core's equivalent of
// an AsRawFd accessor).
func (c *Connection) RawConn() (syscall.RawConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var socket *net.UDPConn
	if c.kind == ConnEstablished {
		socket = c.established.socket
	} else {
		socket = c.incoming.socket
	}
	return socket.SyscallConn()
}
