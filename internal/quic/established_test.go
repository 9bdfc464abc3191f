// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import (
	"net"
	"testing"
	"time"
)

func TestEstablishedStateTxPumpSendsEngineOutput(t *testing.T) {
	serverSocket, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP server: %v", err)
	}
	defer serverSocket.Close()

	peerSocket, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP peer: %v", err)
	}
	defer peerSocket.Close()

	caps, err := probeSocketCapabilities(serverSocket)
	if err != nil {
		t.Fatalf("probeSocketCapabilities: %v", err)
	}

	engine := NewFakeEngine(ConnectionID{1, 2, 3})
	peerAddr := peerSocket.LocalAddr().(*net.UDPAddr).AddrPort()
	if _, err := engine.Recv([]byte("hello"), RecvInfo{From: peerAddr}); err != nil {
		t.Fatalf("Recv: %v", err)
	}

	cfg := NewSharedConfig(nil, 1350)
	dropConn := make(chan ConnectionID, 1)
	metrics := NewMetrics(nil)

	es := newEstablishedState(ConnectionID{1, 2, 3}, engine, serverSocket, caps, cfg, dropConn, metrics)
	defer es.Close()

	peerSocket.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, _, err := peerSocket.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("expected the TX pump to echo the received bytes back: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("expected echoed payload %q, got %q", "hello", buf[:n])
	}
}

func TestEstablishedStateCloseQueuesDrop(t *testing.T) {
	serverSocket, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer serverSocket.Close()

	caps, err := probeSocketCapabilities(serverSocket)
	if err != nil {
		t.Fatalf("probeSocketCapabilities: %v", err)
	}

	id := ConnectionID{9, 9, 9}
	engine := NewFakeEngine(id)
	cfg := NewSharedConfig(nil, 1350)
	dropConn := make(chan ConnectionID, 1)

	es := newEstablishedState(id, engine, serverSocket, caps, cfg, dropConn, NewMetrics(nil))
	es.Close()

	select {
	case dropped := <-dropConn:
		if !dropped.Equal(id) {
			t.Fatalf("expected dropped id %v, got %v", id, dropped)
		}
	case <-time.After(time.Second):
		t.Fatal("expected Close to queue the connection id on dropConn")
	}

	if !es.tx.Finished() {
		select {
		case <-es.tx.done:
		case <-time.After(time.Second):
			t.Fatal("expected the TX pump to stop after Close")
		}
	}
}
