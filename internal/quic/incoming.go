// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import "net"

// routedDatagram is a datagram the listener has already parsed enough to
// route: its raw bytes, the parsed header, and the addresses it traveled
// between.
type routedDatagram struct {
	Data     []byte
	Header   Header
	RecvInfo RecvInfo
}

// IncomingState is the caller's view of a connection whose handshake has
// not yet completed. The handshake driver consumes dgram (the first
// datagram the listener saw) before draining udpRx, so that datagrams are
// handed to the engine in the order they arrived on the wire.
type IncomingState struct {
	connID ConnectionID

	config   *SharedConfig
	dropConn chan<- ConnectionID

	socket     *net.UDPConn
	socketCaps SocketCapabilities

	udpRx      <-chan *routedDatagram
	responseTx chan<- HandshakeResponse

	dgram *routedDatagram

	// Ignore and Reject are advisory flags the handshake driver may set
	// to tell the listener to discard this entry instead of treating it
	// as established; the listener acts on them only once the driver
	// actually publishes HandshakeIgnored/HandshakeRejected.
	Ignore bool
	Reject bool

	dgramConsumed bool
}

// ConnectionID returns the id assigned to this connection attempt.
func (s *IncomingState) ConnectionID() ConnectionID { return s.connID }

// Config returns the listener's shared QUIC configuration.
func (s *IncomingState) Config() *SharedConfig { return s.config }

// SocketCapabilities reports what the shared UDP socket supports.
func (s *IncomingState) SocketCapabilities() SocketCapabilities { return s.socketCaps }

// FirstDatagram returns the datagram buffered when this Incoming was
// created. It must be consumed before Datagrams is drained; calling it
// more than once returns the same value.
func (s *IncomingState) FirstDatagram() *routedDatagram {
	s.dgramConsumed = true
	return s.dgram
}

// Datagrams returns the channel of datagrams that arrived for this
// connection after the first. The handshake driver must have already
// consumed FirstDatagram before relying on this channel being empty as a
// precondition for Establish.
func (s *IncomingState) Datagrams() <-chan *routedDatagram {
	return s.udpRx
}

// Respond publishes the handshake driver's outcome to the listener. It has
// one-shot capacity; calling it more than once for the same connection is
// a caller bug.
func (s *IncomingState) Respond(resp HandshakeResponse) {
	s.responseTx <- resp
}

// LocalAddr returns the shared socket's local address.
func (s *IncomingState) LocalAddr() net.Addr { return s.socket.LocalAddr() }
