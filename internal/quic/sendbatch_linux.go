// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux
// +build linux

package quic

import (
	"encoding/binary"
	"net"
	"net/netip"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sendBatch writes buf to the socket as a single GSO-segmented datagram
// when the socket supports it (one syscall transmitting a run of
// equally-sized segments plus at most one smaller tail), optionally
// stamped with a pacing send time via SO_TXTIME. It falls back to one
// syscall per segment whenever GSO is unavailable or the batch is a
// single segment.
func sendBatch(socket *net.UDPConn, buf []byte, info SendInfo, segmentSize int, caps SocketCapabilities) error {
	if !caps.GSOEnabled || len(buf) <= segmentSize {
		return sendPlain(socket, buf, info.To, segmentSize)
	}

	rawConn, err := socket.SyscallConn()
	if err != nil {
		return sendPlain(socket, buf, info.To, segmentSize)
	}

	sa := sockaddrFromAddrPort(info.To)
	oob := gsoControlMessage(segmentSize)
	if caps.PacingEnabled && info.At != nil {
		oob = append(oob, txtimeControlMessage(*info.At)...)
	}

	var sendErr error
	ctrlErr := rawConn.Write(func(fd uintptr) bool {
		_, _, sendErr = unix.SendmsgN(int(fd), buf, oob, sa, 0)
		return !(sendErr == unix.EAGAIN || sendErr == unix.EWOULDBLOCK)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	if sendErr == unix.EAGAIN || sendErr == unix.EWOULDBLOCK {
		return errWouldBlock
	}
	return sendErr
}

func sockaddrFromAddrPort(addr netip.AddrPort) unix.Sockaddr {
	ip := addr.Addr()
	if ip.Is4() {
		return &unix.SockaddrInet4{Port: int(addr.Port()), Addr: ip.As4()}
	}
	return &unix.SockaddrInet6{Port: int(addr.Port()), Addr: ip.As16()}
}

// gsoControlMessage builds a UDP_SEGMENT (UDP GSO) ancillary message
// carrying the segment size, per udp(7).
func gsoControlMessage(segmentSize int) []byte {
	b := make([]byte, unix.CmsgSpace(2))
	h := (*unix.Cmsghdr)(unsafe.Pointer(&b[0]))
	h.Level = unix.IPPROTO_UDP
	h.Type = unix.UDP_SEGMENT
	h.SetLen(unix.CmsgLen(2))
	binary.NativeEndian.PutUint16(b[unix.CmsgLen(0):], uint16(segmentSize))
	return b
}

// txtimeControlMessage builds an SO_TXTIME ancillary message carrying the
// requested transmit time, per the tc-etf(8)/SO_TXTIME documentation. The
// clock used must match the clockid configured when pacing was enabled
// (CLOCK_MONOTONIC, see capabilities_linux.go).
func txtimeControlMessage(at time.Time) []byte {
	// Express at as an offset from the current CLOCK_MONOTONIC reading.
	var now unix.Timespec
	_ = unix.ClockGettime(unix.CLOCK_MONOTONIC, &now)
	txtime := now.Nano() + int64(time.Until(at))

	b := make([]byte, unix.CmsgSpace(8))
	h := (*unix.Cmsghdr)(unsafe.Pointer(&b[0]))
	h.Level = unix.SOL_SOCKET
	h.Type = unix.SO_TXTIME
	h.SetLen(unix.CmsgLen(8))
	binary.NativeEndian.PutUint64(b[unix.CmsgLen(0):], uint64(txtime))
	return b
}
