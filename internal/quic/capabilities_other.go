// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux
// +build !linux

package quic

import "syscall"

// This platform has no UDP_SEGMENT/SO_TXTIME equivalent wired up, so both
// capabilities are reported unavailable and the TX pump falls back to one
// syscall per datagram, unpaced.

func probeGSO(_ syscall.RawConn) bool {
	return false
}

func probePacing(_ syscall.RawConn) bool {
	return false
}
