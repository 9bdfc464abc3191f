// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import (
	"net/netip"
	"sync"
)

// FakeEngine is a crypto-free stand-in for a real QUIC protocol engine. It
// establishes immediately (no handshake round trips) and echoes every byte
// handed to Recv back out of Send, addressed to whichever peer last sent it
// data. It exists for tests and for cmd/qedged's demonstration driver, never
// for production traffic: implementing the actual QUIC wire protocol is out
// of scope for this package.
type FakeEngine struct {
	mu sync.Mutex

	destID      ConnectionID
	established bool
	peer        netip.AddrPort
	outbox      [][]byte

	sent, lost  uint64
	sendQuantum int
}

// NewFakeEngine returns a FakeEngine that presents destID as its
// DestinationID and starts already established.
func NewFakeEngine(destID ConnectionID) *FakeEngine {
	return &FakeEngine{
		destID:      destID,
		established: true,
		sendQuantum: MaxIPv6QUICDatagramSize * 10,
	}
}

func (e *FakeEngine) Recv(b []byte, info RecvInfo) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.peer = info.From
	echoed := append([]byte(nil), b...)
	e.outbox = append(e.outbox, echoed)
	return len(b), nil
}

func (e *FakeEngine) Send(buf []byte) (int, SendInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.outbox) == 0 {
		return 0, SendInfo{}, ErrDone
	}
	next := e.outbox[0]
	if len(next) > len(buf) {
		next = next[:len(buf)]
	}
	n := copy(buf, next)
	if n == len(e.outbox[0]) {
		e.outbox = e.outbox[1:]
	} else {
		e.outbox[0] = e.outbox[0][n:]
	}
	e.sent += uint64(n)
	return n, SendInfo{To: e.peer}, nil
}

func (e *FakeEngine) EngineStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{Sent: e.sent, Lost: e.lost, SendQuantum: e.sendQuantum}
}

func (e *FakeEngine) IsEstablished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.established
}

func (e *FakeEngine) IsInEarlyData() bool { return false }

func (e *FakeEngine) DestinationID() ConnectionID { return e.destID }
