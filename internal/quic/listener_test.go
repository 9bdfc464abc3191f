// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import (
	"context"
	"net"
	"testing"
	"time"
)

func newTestListener(t *testing.T) (*Listener, *net.UDPConn) {
	t.Helper()
	cfg := NewSharedConfig(nil, 1350)
	l, err := Listen("127.0.0.1:0", cfg, NewMetrics(nil))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	go l.Serve(context.Background())

	client, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return l, client
}

func TestListenerAcceptsNewConnectionOnInitialPacket(t *testing.T) {
	l, client := newTestListener(t)

	dcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	scid := []byte{8, 7, 6, 5}
	pkt := appendLongHeader(PacketTypeInitial, 1, dcid, scid, nil)
	pkt = append(pkt, []byte("client hello")...)

	if _, err := client.WriteToUDP(pkt, l.LocalAddr().(*net.UDPAddr)); err != nil {
		t.Fatalf("WriteToUDP: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := l.Accept(ctx)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if conn.Variant() != ConnIncoming {
		t.Fatalf("expected a new connection to start Incoming, got %v", conn.Variant())
	}

	incoming, ok := conn.Incoming()
	if !ok {
		t.Fatal("expected Incoming view to be available")
	}
	first := incoming.FirstDatagram()
	if string(first.Data[len(first.Data)-len("client hello"):]) != "client hello" {
		t.Fatalf("expected buffered first datagram to carry the sent payload, got %q", first.Data)
	}
}

func TestListenerNonInitialPacketForUnknownConnectionIsDropped(t *testing.T) {
	l, client := newTestListener(t)

	dcid := make([]byte, MaxConnIDLen)
	pkt := append([]byte{0x40}, dcid...)
	pkt = append(pkt, []byte("short header payload")...)

	if _, err := client.WriteToUDP(pkt, l.LocalAddr().(*net.UDPAddr)); err != nil {
		t.Fatalf("WriteToUDP: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := l.Accept(ctx); err == nil {
		t.Fatal("expected no connection to be created for a non-Initial packet to an unknown id")
	}
}

func TestListenerRoutesSubsequentDatagramsToEstablishedEngine(t *testing.T) {
	l, client := newTestListener(t)

	dcid := []byte{1, 2, 3, 4}
	scid := []byte{5, 6, 7, 8}
	initPkt := appendLongHeader(PacketTypeInitial, 1, dcid, scid, nil)
	initPkt = append(initPkt, []byte("hello")...)

	if _, err := client.WriteToUDP(initPkt, l.LocalAddr().(*net.UDPAddr)); err != nil {
		t.Fatalf("WriteToUDP: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := l.Accept(ctx)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}

	engine := NewFakeEngine(conn.ConnectionID())
	if err := conn.Establish(engine); err != nil {
		t.Fatalf("Establish: %v", err)
	}
	if conn.Variant() != ConnEstablished {
		t.Fatal("expected connection to be Established after Establish")
	}

	followUp := append([]byte{0x40}, conn.ConnectionID()...)
	followUp = append(followUp, []byte("application data")...)
	if _, err := client.WriteToUDP(followUp, l.LocalAddr().(*net.UDPAddr)); err != nil {
		t.Fatalf("WriteToUDP: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, _, err := client.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("expected the established engine to echo the follow-up datagram back: %v", err)
	}
	if string(buf[:n]) != string(followUp) {
		t.Fatalf("expected echoed bytes %q, got %q", followUp, buf[:n])
	}
}

func TestListenerHandshakeRejectedRemovesRegistryEntry(t *testing.T) {
	l, client := newTestListener(t)

	dcid := []byte{9, 9, 9, 9}
	scid := []byte{1, 1, 1, 1}
	initPkt := appendLongHeader(PacketTypeInitial, 1, dcid, scid, nil)
	initPkt = append(initPkt, []byte("hello")...)

	if _, err := client.WriteToUDP(initPkt, l.LocalAddr().(*net.UDPAddr)); err != nil {
		t.Fatalf("WriteToUDP: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := l.Accept(ctx)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}

	incoming, ok := conn.Incoming()
	if !ok {
		t.Fatal("expected Incoming view")
	}
	incoming.Respond(HandshakeResponse{Kind: HandshakeRejected})

	// Sending another datagram for the same id must find the handshake
	// response already published and remove the registry entry instead of
	// forwarding it anywhere.
	second := appendLongHeader(PacketTypeInitial, 1, dcid, scid, nil)
	if _, err := client.WriteToUDP(second, l.LocalAddr().(*net.UDPAddr)); err != nil {
		t.Fatalf("WriteToUDP: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if _, ok := l.registry.lookup(conn.ConnectionID()); ok {
		t.Fatal("expected the registry entry to be removed after a rejected handshake")
	}
}
