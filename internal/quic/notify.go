// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import "context"

// Notify is a level-triggered, edge-coalescing wake-up primitive: calling
// Notify when nobody is waiting leaves exactly one pending permit for the
// next Wait to consume immediately, and calling it any number of times
// before a Wait still only produces a single wake. This is the primitive
// the TX pump and the handshake driver use to mean "re-check your state",
// never "here is a value" — callers must re-derive what happened from
// shared state after waking, not from the notification itself.
type Notify struct {
	c chan struct{}
}

// NewNotify returns a ready-to-use Notify with no pending permit.
func NewNotify() *Notify {
	return &Notify{c: make(chan struct{}, 1)}
}

// Notify records a pending wake-up. It never blocks.
func (n *Notify) Notify() {
	select {
	case n.c <- struct{}{}:
	default:
	}
}

// Wait blocks until a pending permit is available, consuming it, or until
// ctx is done.
func (n *Notify) Wait(ctx context.Context) error {
	select {
	case <-n.c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
