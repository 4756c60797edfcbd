package sketches

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash/fnv"
)

// HashAlg identifies a digest algorithm used to derive sketch indexes.
// Hash functions are fixed configuration: a sketch stores algorithm tags,
// not function values, so two sketches can be compared for hash
// compatibility and serialized configurations stay self-describing.
type HashAlg string

const (
	HashMD5    HashAlg = "md5"
	HashSHA1   HashAlg = "sha1"
	HashSHA256 HashAlg = "sha256"
	HashFNV64  HashAlg = "fnv64"
)

// Valid reports whether a is a supported algorithm tag.
func (a HashAlg) Valid() bool {
	switch a {
	case HashMD5, HashSHA1, HashSHA256, HashFNV64:
		return true
	}
	return false
}

// Sum64 digests data and interprets the first 8 digest bytes as a
// big-endian unsigned integer. This is the one canonical hash-to-integer
// rule shared by every sketch in the package; all index derivation goes
// through it so bit positions, matrix columns and register selections
// agree for a given (algorithm, value) pair.
func (a HashAlg) Sum64(data []byte) uint64 {
	switch a {
	case HashMD5:
		d := md5.Sum(data)
		return binary.BigEndian.Uint64(d[:8])
	case HashSHA1:
		d := sha1.Sum(data)
		return binary.BigEndian.Uint64(d[:8])
	case HashSHA256:
		d := sha256.Sum256(data)
		return binary.BigEndian.Uint64(d[:8])
	case HashFNV64:
		h := fnv.New64a()
		h.Write(data)
		return h.Sum64()
	}
	// Constructors reject unknown tags, so this is unreachable for any
	// sketch built through New*.
	return 0
}

// indexOf reduces the canonical 64-bit hash of data modulo bound,
// yielding a position in [0, bound).
func indexOf(alg HashAlg, data []byte, bound uint32) uint32 {
	return uint32(alg.Sum64(data) % uint64(bound))
}

func validateAlgs(algs []HashAlg) error {
	if len(algs) == 0 {
		return fmt.Errorf("at least one hash algorithm required")
	}
	for _, a := range algs {
		if !a.Valid() {
			return fmt.Errorf("unsupported hash algorithm %q", a)
		}
	}
	return nil
}

func sameAlgs(a, b []HashAlg) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
