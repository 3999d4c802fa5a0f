package project

import (
	"crypto/sha256"
)

// Digest is a fixed 256-bit hash used as the cache key space.
type Digest [32]byte

// Combine builds an aggregate hash: H(content || part1 || part2 ...).
// The order of parts must be deterministic.
func Combine(content Digest, parts ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range parts {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// IsZero reports whether the digest was never computed.
func (d Digest) IsZero() bool {
	var z Digest
	return d == z
}
