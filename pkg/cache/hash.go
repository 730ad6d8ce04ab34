// Package cache implements the content-addressed image cache: a short
// identity derived from every byte-affecting render input, and a file store
// where the existence of identity.format is the cache hit signal.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// IdentityLength is the number of hex characters kept from the digest
// (64 bits of SHA-256).
const IdentityLength = 16

// Identity is the content identity of a render request. It is used as the
// cache key and as the base name of the rendered file(s).
type Identity string

// String returns the identity as a string.
func (id Identity) String() string { return string(id) }

// NewIdentity derives an identity from the block text followed by modifiers,
// the configuration values that change output bytes. Modifier order is part
// of the identity, so every backend documents a fixed order.
//
// Each field is length-prefixed before hashing, so "ab"+"c" and "a"+"bc"
// produce different identities.
func NewIdentity(text string, modifiers ...string) Identity {
	h := sha256.New()
	var prefix [8]byte
	write := func(s string) {
		binary.BigEndian.PutUint64(prefix[:], uint64(len(s)))
		h.Write(prefix[:])
		h.Write([]byte(s))
	}

	write(text)
	for _, m := range modifiers {
		write(m)
	}

	sum := h.Sum(nil)
	return Identity(hex.EncodeToString(sum)[:IdentityLength])
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
