// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session is the seam where an established QUIC connection would be
// exposed as an application-facing byte stream. Wiring a connection's
// stream data through to whatever proxies on top of it is not implemented
// here: this core stops at connection dispatch, and Stream exists only to
// mark where that future layer plugs in.
package session

import (
	"errors"
	"io"

	"github.com/qedge/qedge/internal/quic"
)

// errNotImplemented is returned by every Stream operation except Flush.
var errNotImplemented = errors.New("session: stream I/O is not implemented")

// ConnectionState is implemented by any type that can expose itself as a
// QUIC connection to a caller that only knows about generic transport
// connections. It is the hook an upper layer uses to discover that a
// connection happens to be QUIC, without needing a type switch.
type ConnectionState interface {
	// QUICConnectionState returns the underlying connection if this
	// transport is QUIC, and whether it is.
	QUICConnectionState() (*quic.Connection, bool)
}

// Stream would back an application-facing byte stream over one established
// QUIC connection. Its Read/Write/Close are intentionally unimplemented:
// this core's scope ends at connection dispatch, before a QUIC stream
// multiplexing and framing layer exists to drive them. Flush succeeds
// unconditionally, since the TX pump here already drains the engine's
// output by itself rather than being driven by `Close`-time flushes.
type Stream struct {
	conn *quic.Connection
}

// NewStream wraps an Established connection as a Stream.
func NewStream(conn *quic.Connection) *Stream {
	return &Stream{conn: conn}
}

var _ io.ReadWriteCloser = (*Stream)(nil)

func (s *Stream) Read(_ []byte) (int, error) {
	return 0, errNotImplemented
}

func (s *Stream) Write(_ []byte) (int, error) {
	return 0, errNotImplemented
}

// Flush is a no-op: the connection's TX pump already drains the engine on
// its own schedule, independent of anything that would call Flush.
func (s *Stream) Flush() error {
	return nil
}

// Close is left unimplemented for the same reason as Read and Write.
func (s *Stream) Close() error {
	return errNotImplemented
}

// QUICConnectionState implements ConnectionState.
func (s *Stream) QUICConnectionState() (*quic.Connection, bool) {
	return s.conn, true
}
