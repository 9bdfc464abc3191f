// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import (
	"bytes"
	"testing"
)

func TestParseHeaderLongRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		ptype PacketType
		token []byte
	}{
		{"initial with token", PacketTypeInitial, []byte{0xaa, 0xbb, 0xcc}},
		{"initial without token", PacketTypeInitial, nil},
		{"zero rtt", PacketTypeZeroRTT, nil},
		{"handshake", PacketTypeHandshake, nil},
		{"retry", PacketTypeRetry, nil},
	}

	dcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	scid := []byte{8, 7, 6, 5}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := appendLongHeader(tc.ptype, 1, dcid, scid, tc.token)
			raw = append(raw, 0xff, 0xff) // trailing packet payload

			h, err := ParseHeader(raw, MaxConnIDLen)
			if err != nil {
				t.Fatalf("ParseHeader: %v", err)
			}
			if h.Type != tc.ptype {
				t.Fatalf("expected type %v, got %v", tc.ptype, h.Type)
			}
			if h.Version != 1 {
				t.Fatalf("expected version 1, got %d", h.Version)
			}
			if !bytes.Equal(h.DCID, dcid) {
				t.Fatalf("expected dcid %x, got %x", dcid, h.DCID)
			}
			if !bytes.Equal(h.SCID, scid) {
				t.Fatalf("expected scid %x, got %x", scid, h.SCID)
			}
			if tc.ptype == PacketTypeInitial {
				if !bytes.Equal(h.Token, tc.token) {
					t.Fatalf("expected token %x, got %x", tc.token, h.Token)
				}
			}
			header := raw[:len(raw)-2]
			if got := appendLongHeader(h.Type, h.Version, h.DCID, h.SCID, h.Token); !bytes.Equal(got, header) {
				t.Fatalf("expected re-serialized header %x, got %x", header, got)
			}
		})
	}
}

func TestParseHeaderShort(t *testing.T) {
	dcid := make([]byte, MaxConnIDLen)
	for i := range dcid {
		dcid[i] = byte(i)
	}
	raw := append([]byte{0x40}, dcid...)
	raw = append(raw, 0x01, 0x02, 0x03)

	h, err := ParseHeader(raw, MaxConnIDLen)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.Type != PacketTypeShort {
		t.Fatalf("expected short header type, got %v", h.Type)
	}
	if !bytes.Equal(h.DCID, dcid) {
		t.Fatalf("expected dcid %x, got %x", dcid, h.DCID)
	}
}

func TestParseHeaderTooShort(t *testing.T) {
	if _, err := ParseHeader(nil, MaxConnIDLen); err != ErrShortPacket {
		t.Fatalf("expected ErrShortPacket for empty input, got %v", err)
	}
	if _, err := ParseHeader([]byte{0x80, 0x00, 0x00}, MaxConnIDLen); err != ErrShortPacket {
		t.Fatalf("expected ErrShortPacket for truncated long header, got %v", err)
	}
}

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 0x3f, 0x40, 0x3fff, 0x4000, 0x3fffffff, 0x40000000, 0xffffffffffff}
	for _, v := range values {
		enc := encodeVarint(nil, v)
		got, n, ok := decodeVarint(enc)
		if !ok {
			t.Fatalf("decodeVarint(%x) failed to decode", enc)
		}
		if n != len(enc) {
			t.Fatalf("expected to consume %d bytes, consumed %d", len(enc), n)
		}
		if got != v {
			t.Fatalf("expected %d, got %d", v, got)
		}
	}
}
