// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import "errors"

// Sentinel errors for the taxonomy this package surfaces to callers.
// Parse errors and channel-disconnect conditions are absorbed locally
// (logged, not returned) and so have no sentinel here.
var (
	// ErrAlreadyEstablished is returned by Connection.Establish when the
	// connection has already transitioned out of Incoming.
	ErrAlreadyEstablished = errors.New("quic: connection already established")

	// ErrHandshakeNotDrained is returned by Connection.Establish when the
	// Incoming's datagram channel still holds unconsumed handshake
	// packets.
	ErrHandshakeNotDrained = errors.New("quic: handshake packet channel not drained")
)

// InternalError reports a violated invariant: establishing an
// already-established connection, failing to generate the listener's HMAC
// key, or similar programming errors. It is fatal to the affected
// connection; a key-generation failure is returned from Listen, so no
// listener is created at all.
type InternalError struct {
	Msg   string
	Cause error
}

// NewInternalError wraps cause, if any, with a human-readable reason.
func NewInternalError(msg string, cause error) *InternalError {
	return &InternalError{Msg: msg, Cause: cause}
}

func (e *InternalError) Error() string { return "quic: internal error: " + e.Msg }

func (e *InternalError) Unwrap() error { return e.Cause }

// SocketError reports a failure to query or drive the UDP socket. It is
// fatal to the listener.
type SocketError struct {
	Msg   string
	Cause error
}

func NewSocketError(msg string, cause error) *SocketError {
	return &SocketError{Msg: msg, Cause: cause}
}

func (e *SocketError) Error() string { return "quic: socket error: " + e.Msg }

func (e *SocketError) Unwrap() error { return e.Cause }

// BrokenPipeError reports an engine Recv failure while routing a datagram
// to an Established connection. It is fatal to the listener: Serve returns
// it and the accept loop stops.
type BrokenPipeError struct {
	ConnID ConnectionID
	Cause  error
}

func NewBrokenPipeError(id ConnectionID, cause error) *BrokenPipeError {
	return &BrokenPipeError{ConnID: id, Cause: cause}
}

func (e *BrokenPipeError) Error() string {
	return "quic: broken pipe on connection " + e.ConnID.String() + ": " + e.Cause.Error()
}

func (e *BrokenPipeError) Unwrap() error { return e.Cause }

// WriteError reports an engine-send or socket-send failure for an
// Established connection. It terminates only the affected connection's TX
// pump; the connection is then closed via drop.
type WriteError struct {
	ConnID ConnectionID
	Cause  error
}

func NewWriteError(id ConnectionID, cause error) *WriteError {
	return &WriteError{ConnID: id, Cause: cause}
}

func (e *WriteError) Error() string {
	return "quic: write error on connection " + e.ConnID.String() + ": " + e.Cause.Error()
}

func (e *WriteError) Unwrap() error { return e.Cause }
