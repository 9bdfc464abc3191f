// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux
// +build linux

package quic

import (
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Within this file, Linux-specific socket options are set on the
// listener's UDP socket: UDP_SEGMENT for Generic Segmentation Offload
// batching, and SO_TXTIME for transmit-time pacing. Both follow the
// udp(7) and socket(7) manual pages; neither failing is fatal, since the
// TX pump falls back to one syscall per datagram, unpaced.

// probeGSO attempts to set the kernel GSO segment size on rawConn.
func probeGSO(rawConn syscall.RawConn) bool {
	var ok bool
	err := rawConn.Control(func(fd uintptr) {
		ok = unix.SetsockoptInt(int(fd), unix.IPPROTO_UDP, unix.UDP_SEGMENT, MaxIPv6QUICDatagramSize) == nil
	})
	if err != nil || !ok {
		log.WithError(err).Debug("quic: UDP_SEGMENT not supported, disabling GSO")
		return false
	}
	return true
}

// probePacing attempts to enable SO_TXTIME on rawConn so outgoing packets
// can be stamped with a transmit time.
func probePacing(rawConn syscall.RawConn) bool {
	cfg := unix.SockTxtime{
		Clockid: unix.CLOCK_MONOTONIC,
		Flags:   0,
	}
	var ok bool
	err := rawConn.Control(func(fd uintptr) {
		ok = unix.SetsockoptSockTxtime(int(fd), unix.SOL_SOCKET, unix.SO_TXTIME, &cfg) == nil
	})
	if err != nil || !ok {
		log.WithError(err).Debug("quic: SO_TXTIME not supported, disabling pacing")
		return false
	}
	return true
}
