package sketches

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
)

const bitsPerWord = 64

// BloomFilter is a fixed-size bit array with K hash algorithms for
// approximate set membership. False positives are possible, false
// negatives are not, and bits are never cleared (no deletion).
//
// Updates are copy-on-write: Update returns a new filter and leaves the
// receiver untouched, so callers may keep old snapshots indefinitely.
type BloomFilter struct {
	words   []uint64
	m       uint32
	hashFns []HashAlg
}

// NewBloomFilter creates an all-zero filter of m bits using the given
// hash algorithms. m must be positive and every algorithm supported.
func NewBloomFilter(m int, hashFns []HashAlg) (*BloomFilter, error) {
	if m <= 0 {
		return nil, fmt.Errorf("bloom filter size must be positive, got %d", m)
	}
	if err := validateAlgs(hashFns); err != nil {
		return nil, fmt.Errorf("bloom filter: %w", err)
	}

	words := (m + bitsPerWord - 1) / bitsPerWord
	fns := make([]HashAlg, len(hashFns))
	copy(fns, hashFns)

	return &BloomFilter{
		words:   make([]uint64, words),
		m:       uint32(m),
		hashFns: fns,
	}, nil
}

// Update marks value as present and returns the updated filter. For each
// configured hash algorithm one bit in [0, m) is set. The receiver is not
// modified.
func (bf *BloomFilter) Update(value []byte) *BloomFilter {
	next := bf.clone()
	for _, alg := range bf.hashFns {
		pos := indexOf(alg, value, bf.m)
		next.words[pos/bitsPerWord] |= 1 << (pos % bitsPerWord)
	}
	return next
}

// UpdateString is a convenience wrapper for string values.
func (bf *BloomFilter) UpdateString(value string) *BloomFilter {
	return bf.Update([]byte(value))
}

// PossibleMember reports whether value may have been inserted. A false
// result is definitive; a true result is subject to the false-positive
// rate. Checks short-circuit on the first unset bit.
func (bf *BloomFilter) PossibleMember(value []byte) bool {
	for _, alg := range bf.hashFns {
		pos := indexOf(alg, value, bf.m)
		if bf.words[pos/bitsPerWord]&(1<<(pos%bitsPerWord)) == 0 {
			return false
		}
	}
	return true
}

// PossibleMemberString is a convenience wrapper for string values.
func (bf *BloomFilter) PossibleMemberString(value string) bool {
	return bf.PossibleMember([]byte(value))
}

// Size returns the filter size m in bits.
func (bf *BloomFilter) Size() int {
	return int(bf.m)
}

// HashCount returns the number of configured hash algorithms.
func (bf *BloomFilter) HashCount() int {
	return len(bf.hashFns)
}

// SetBits returns the number of bits currently set to 1.
func (bf *BloomFilter) SetBits() int {
	total := 0
	for _, w := range bf.words {
		total += bits.OnesCount64(w)
	}
	return total
}

// OptimalNumberOfHashes returns round((m/n)*ln(2)), the classical optimal
// hash count for a filter of m bits expecting n insertions. Advisory
// only; it does not affect any constructed filter.
func OptimalNumberOfHashes(m, n int) int {
	return int(math.Round(float64(m) / float64(n) * math.Ln2))
}

// FalsePositiveRate returns (1 - e^(-k*n/m))^k, the classical estimate of
// the false-positive probability after n insertions into an m-bit filter
// with k hash functions. Advisory only.
func FalsePositiveRate(m, n, k int) float64 {
	return math.Pow(1-math.Exp(-float64(k)*float64(n)/float64(m)), float64(k))
}

func (bf *BloomFilter) clone() *BloomFilter {
	words := make([]uint64, len(bf.words))
	copy(words, bf.words)
	return &BloomFilter{words: words, m: bf.m, hashFns: bf.hashFns}
}

// Serialize returns the filter state as bytes.
// Layout: m(4) + k(4) + k algorithm tags (1-byte length + tag bytes) + words.
func (bf *BloomFilter) Serialize() []byte {
	data := make([]byte, 0, 8+len(bf.hashFns)*8+len(bf.words)*8)

	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], bf.m)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(bf.hashFns)))
	data = append(data, header[:]...)

	for _, alg := range bf.hashFns {
		data = append(data, byte(len(alg)))
		data = append(data, string(alg)...)
	}

	var word [8]byte
	for _, w := range bf.words {
		binary.LittleEndian.PutUint64(word[:], w)
		data = append(data, word[:]...)
	}
	return data
}

// DeserializeBloomFilter loads filter state produced by Serialize.
func DeserializeBloomFilter(data []byte) (*BloomFilter, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("insufficient data for bloom filter deserialization")
	}
	m := binary.LittleEndian.Uint32(data[0:4])
	k := binary.LittleEndian.Uint32(data[4:8])

	offset := 8
	algs := make([]HashAlg, 0, k)
	for i := uint32(0); i < k; i++ {
		if offset >= len(data) {
			return nil, fmt.Errorf("truncated bloom filter hash list")
		}
		n := int(data[offset])
		offset++
		if offset+n > len(data) {
			return nil, fmt.Errorf("truncated bloom filter hash list")
		}
		algs = append(algs, HashAlg(data[offset:offset+n]))
		offset += n
	}

	bf, err := NewBloomFilter(int(m), algs)
	if err != nil {
		return nil, err
	}
	if len(data)-offset != len(bf.words)*8 {
		return nil, fmt.Errorf("bloom filter data length mismatch")
	}
	for i := range bf.words {
		bf.words[i] = binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8
	}
	return bf, nil
}
