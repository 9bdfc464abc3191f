// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

// Buffer and protocol sizing constants, bit-exact with the reverse-proxy
// transport this package implements.
const (
	// MaxIPv6BufSize is the largest receive buffer needed: UDP header (8
	// bytes) + IPv6 header (40 bytes) subtracted from the 65535 byte
	// datagram ceiling.
	MaxIPv6BufSize = 65487

	// MaxIPv6UDPPacketSize is the largest UDP payload that fits an
	// unfragmented Ethernet frame over IPv6.
	MaxIPv6UDPPacketSize = 1452

	// MaxIPv6QUICDatagramSize is the segmentation unit used for GSO
	// batching and burst-size rounding.
	MaxIPv6QUICDatagramSize = 1350

	// HandshakePacketBufferSize bounds the per-Incoming datagram channel.
	HandshakePacketBufferSize = 64

	// ConnectionDropChannelSize bounds the listener's drop-notification
	// channel.
	ConnectionDropChannelSize = 1024

	// MaxConnIDLen is the maximum length of a connection id in bytes.
	MaxConnIDLen = 20
)
