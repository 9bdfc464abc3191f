// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import (
	"net"
	"net/netip"
)

// SocketCapabilities records what a listener's UDP socket can do, detected
// once at construction. Neither probe failing is fatal: the TX pump falls
// back to one syscall per datagram, unpaced, when a capability is absent.
type SocketCapabilities struct {
	LocalAddr     netip.AddrPort
	GSOEnabled    bool
	PacingEnabled bool
}

// probeSocketCapabilities detects Generic Segmentation Offload and
// transmit-time pacing support on conn. Both probes are best-effort.
func probeSocketCapabilities(conn *net.UDPConn) (SocketCapabilities, error) {
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return SocketCapabilities{}, NewSocketError("failed to get local address from socket", nil)
	}
	caps := SocketCapabilities{LocalAddr: addr.AddrPort()}

	rawConn, err := conn.SyscallConn()
	if err != nil {
		return caps, NewSocketError("failed to obtain raw socket conn", err)
	}

	caps.GSOEnabled = probeGSO(rawConn)
	caps.PacingEnabled = probePacing(rawConn)

	return caps, nil
}
