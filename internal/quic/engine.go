// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import (
	"errors"
	"net/netip"
	"time"
)

// ErrDone is returned by Engine.Send when there is nothing left to send in
// the current burst. It is not a failure; the TX pump treats it as "fill
// loop finished".
var ErrDone = errors.New("quic: engine has nothing more to send")

// RecvInfo carries the local and peer addresses a datagram was exchanged
// over, as required by the QUIC protocol engine's recv contract.
type RecvInfo struct {
	To   netip.AddrPort
	From netip.AddrPort
}

// SendInfo carries the destination address (and optional pacing send time)
// an engine chose for a packet it produced. The TX pump uses the first
// packet's SendInfo as the destination for an entire GSO batch, since a
// single UDP write can only target one address.
type SendInfo struct {
	To netip.AddrPort
	At *time.Time
}

// Stats are the cumulative congestion-control counters the burst
// controller needs: bytes sent, bytes lost, and the current
// per-burst byte budget.
type Stats struct {
	Sent        uint64
	Lost        uint64
	SendQuantum int
}

// Engine is the contract this core requires of the underlying QUIC
// protocol implementation. Implementing QUIC packet cryptography, loss
// recovery, and the rest of the handshake state machine is explicitly out
// of scope for this package (see Non-goals); Engine is the seam where a
// real implementation plugs in. FakeEngine in this package is a
// minimal, crypto-free stand-in used by tests and by the reference
// cmd/qedged entrypoint.
type Engine interface {
	// Recv feeds one received datagram to the engine, returning the
	// number of bytes consumed or an error if the engine rejected the
	// datagram.
	Recv(b []byte, info RecvInfo) (int, error)

	// Send asks the engine to produce its next outgoing packet into buf,
	// returning the number of bytes written and the packet's
	// destination. It returns ErrDone when the engine has nothing left
	// to send in this burst.
	Send(buf []byte) (int, SendInfo, error)

	// EngineStats returns the engine's cumulative congestion-control
	// counters.
	EngineStats() Stats

	// IsEstablished reports whether the handshake has fully completed.
	IsEstablished() bool

	// IsInEarlyData reports whether the connection may already send or
	// receive application data during the handshake (0-RTT/early data).
	IsInEarlyData() bool

	// DestinationID returns the connection id this engine currently
	// expects on packets addressed to it, for logging.
	DestinationID() ConnectionID
}

// HandshakeResponse is published by the handshake driver on an Incoming
// connection's response channel to tell the listener the outcome of
// driving the handshake to completion.
type HandshakeResponse struct {
	// Kind discriminates the response; Established carries a non-nil
	// Handle.
	Kind   HandshakeResponseKind
	Handle *EstablishedHandle
}

// HandshakeResponseKind enumerates the possible handshake outcomes.
type HandshakeResponseKind int

const (
	// HandshakeEstablished reports that the handshake completed and the
	// connection is ready; Handle is populated.
	HandshakeEstablished HandshakeResponseKind = iota
	// HandshakeIgnored reports that the driver decided to silently drop
	// the connection attempt.
	HandshakeIgnored
	// HandshakeRejected reports that the driver actively rejected the
	// connection attempt.
	HandshakeRejected
)
