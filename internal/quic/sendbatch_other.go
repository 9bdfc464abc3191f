// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux
// +build !linux

package quic

import "net"

// sendBatch on platforms without GSO/pacing support always falls back to
// one syscall per segment.
func sendBatch(socket *net.UDPConn, buf []byte, info SendInfo, segmentSize int, _ SocketCapabilities) error {
	return sendPlain(socket, buf, info.To, segmentSize)
}
