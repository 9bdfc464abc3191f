// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import (
	"errors"
	"net"
	"net/netip"
)

// sendPlain writes buf to the socket one segment at a time, addressed to
// to. It is the fallback path used whenever GSO is unavailable (or
// disabled), and segments buf into segmentSize chunks with at most one
// smaller tail, matching what a GSO batch would have produced.
func sendPlain(socket *net.UDPConn, buf []byte, to netip.AddrPort, segmentSize int) error {
	for len(buf) > 0 {
		n := segmentSize
		if n > len(buf) {
			n = len(buf)
		}
		if _, err := socket.WriteToUDPAddrPort(buf[:n], to); err != nil {
			if isTransient(err) {
				return errWouldBlock
			}
			return err
		}
		buf = buf[n:]
	}
	return nil
}

func isTransient(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return errors.Is(err, errWouldBlock)
}
