// Package cryptutil provides helpers for generating random values.
package cryptutil

import (
	"crypto/rand"
	"encoding/hex"
)

// DefaultTokenSize is the number of random bytes in a state or nonce value.
const DefaultTokenSize = 24

// NewRandomHex returns c random bytes, hex encoded.
//
// Panics if source of randomness fails.
func NewRandomHex(c int) string {
	return hex.EncodeToString(randomBytes(c))
}

// randomBytes generates C number of random bytes suitable for cryptographic
// operations.
//
// Panics if source of randomness fails.
func randomBytes(c int) []byte {
	if c < 0 {
		c = DefaultTokenSize
	}
	b := make([]byte, c)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}
