// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// ConnectionID is an opaque connection identifier, compared by content. It
// keys the connection registry and never exceeds MaxConnIDLen bytes.
type ConnectionID []byte

// String renders the id as hex, for logging.
func (id ConnectionID) String() string {
	return hex.EncodeToString(id)
}

// Equal reports whether id and other hold the same bytes.
func (id ConnectionID) Equal(other ConnectionID) bool {
	if len(id) != len(other) {
		return false
	}
	for i := range id {
		if id[i] != other[i] {
			return false
		}
	}
	return true
}

// cidGenerator HMAC-derives a stable, server-chosen connection id from a
// client's initial destination connection id. The mapping is stateless and
// deterministic for a fixed key, so later packets that a client still
// addresses to its own initial dcid map to the same derived id. The
// registry is keyed by the derived id only.
type cidGenerator struct {
	key []byte
}

// newCIDGenerator draws a 256-bit HMAC-SHA256 key from a cryptographically
// secure RNG.
func newCIDGenerator() (*cidGenerator, error) {
	key := make([]byte, sha256.Size)
	if _, err := rand.Read(key); err != nil {
		return nil, NewInternalError("failed to generate listener key", err)
	}
	return &cidGenerator{key: key}, nil
}

// generate derives the server CID for a client-chosen destination
// connection id, taking the first MaxConnIDLen bytes of
// HMAC-SHA256(key, dcid).
func (g *cidGenerator) generate(dcid []byte) ConnectionID {
	mac := hmac.New(sha256.New, g.key)
	mac.Write(dcid)
	sum := mac.Sum(nil)
	out := make([]byte, MaxConnIDLen)
	copy(out, sum[:MaxConnIDLen])
	return out
}
