// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import "testing"

func TestConnectionIDEqual(t *testing.T) {
	a := ConnectionID{1, 2, 3}
	b := ConnectionID{1, 2, 3}
	c := ConnectionID{1, 2, 4}

	if !a.Equal(b) {
		t.Fatal("expected equal connection ids to compare equal")
	}
	if a.Equal(c) {
		t.Fatal("expected differing connection ids to compare unequal")
	}
	if a.Equal(ConnectionID{1, 2}) {
		t.Fatal("expected different-length connection ids to compare unequal")
	}
}

func TestCIDGeneratorDeterministic(t *testing.T) {
	gen, err := newCIDGenerator()
	if err != nil {
		t.Fatalf("newCIDGenerator: %v", err)
	}

	dcid := []byte{0xde, 0xad, 0xbe, 0xef}
	first := gen.generate(dcid)
	second := gen.generate(dcid)

	if !first.Equal(second) {
		t.Fatal("expected generate to be deterministic for a fixed key and input")
	}
	if len(first) != MaxConnIDLen {
		t.Fatalf("expected generated id of length %d, got %d", MaxConnIDLen, len(first))
	}
}

func TestCIDGeneratorDistinctKeys(t *testing.T) {
	genA, err := newCIDGenerator()
	if err != nil {
		t.Fatalf("newCIDGenerator: %v", err)
	}
	genB, err := newCIDGenerator()
	if err != nil {
		t.Fatalf("newCIDGenerator: %v", err)
	}

	dcid := []byte{1, 2, 3, 4}
	if genA.generate(dcid).Equal(genB.generate(dcid)) {
		t.Fatal("expected independently generated keys to produce different derived ids")
	}
}
