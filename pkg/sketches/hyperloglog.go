package sketches

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
)

const two32 = float64(1 << 32)

// HyperLogLog estimates the number of distinct values observed, using M
// registers that each hold the maximum zero-run length seen among values
// hashing to that register. Registers never decrease.
//
// Updates are copy-on-write: Update returns a new structure and leaves
// the receiver untouched. Count is a pure function of register state.
type HyperLogLog struct {
	registers []uint8
	m         uint32
	b         uint8
	hashFn    HashAlg
	// alpha*M^2, computed once at construction.
	alphaM2 float64
}

// NewHyperLogLog creates a HyperLogLog with m registers, m a power of two
// no smaller than 16, all starting at zero.
func NewHyperLogLog(m int, hashFn HashAlg) (*HyperLogLog, error) {
	if m < 16 || m&(m-1) != 0 {
		return nil, fmt.Errorf("hyperloglog register count must be a power of two >= 16, got %d", m)
	}
	if !hashFn.Valid() {
		return nil, fmt.Errorf("hyperloglog: unsupported hash algorithm %q", hashFn)
	}

	mf := float64(m)
	var alpha float64
	switch m {
	case 16:
		alpha = 0.673
	case 32:
		alpha = 0.697
	case 64:
		alpha = 0.709
	default:
		alpha = 0.7213 / (1 + 1.079/mf)
	}

	return &HyperLogLog{
		registers: make([]uint8, m),
		m:         uint32(m),
		b:         uint8(bits.TrailingZeros32(uint32(m))),
		hashFn:    hashFn,
		alphaM2:   alpha * mf * mf,
	}, nil
}

// Update observes value and returns the updated structure. The low b bits
// of the hash select a register; the zero-run length of the remaining
// bits, plus one, is written to the register if it exceeds the current
// maximum. The receiver is not modified.
func (hll *HyperLogLog) Update(value []byte) *HyperLogLog {
	h := hll.hashFn.Sum64(value)
	idx := h & uint64(hll.m-1)
	w := h >> hll.b

	// The register-selecting bits are gone from w, so the run length is
	// the trailing-zero count of what remains, capped at the number of
	// bits w actually has.
	run := bits.TrailingZeros64(w)
	if run > 64-int(hll.b) {
		run = 64 - int(hll.b)
	}
	rank := uint8(run) + 1

	if rank <= hll.registers[idx] {
		return hll
	}
	next := hll.clone()
	next.registers[idx] = rank
	return next
}

// UpdateString is a convenience wrapper for string values.
func (hll *HyperLogLog) UpdateString(value string) *HyperLogLog {
	return hll.Update([]byte(value))
}

// Count estimates the number of distinct values observed so far, rounded
// to the nearest integer. The raw harmonic-mean estimate is corrected in
// three regimes: linear counting below 5M/2 while empty registers
// remain, the raw estimate up to 2^32/30, and a log correction above
// that.
func (hll *HyperLogLog) Count() uint64 {
	harmonicSum := 0.0
	zeros := 0
	for _, reg := range hll.registers {
		if reg == 0 {
			zeros++
		} else {
			harmonicSum += math.Pow(2, -float64(reg))
		}
	}

	estimate := 0.0
	if harmonicSum > 0 {
		estimate = hll.alphaM2 / harmonicSum
	}

	mf := float64(hll.m)
	switch {
	case estimate < 5*mf/2:
		if zeros > 0 {
			estimate = mf * math.Log(mf/float64(zeros))
		}
	case estimate <= two32/30:
		// Mid range: raw estimate stands.
	default:
		estimate = -two32 * math.Log(1-estimate/two32)
	}
	return uint64(math.Round(estimate))
}

// Registers returns the number of registers M.
func (hll *HyperLogLog) Registers() int {
	return int(hll.m)
}

func (hll *HyperLogLog) clone() *HyperLogLog {
	registers := make([]uint8, hll.m)
	copy(registers, hll.registers)
	return &HyperLogLog{
		registers: registers,
		m:         hll.m,
		b:         hll.b,
		hashFn:    hll.hashFn,
		alphaM2:   hll.alphaM2,
	}
}

// Serialize returns the structure state as bytes.
// Layout: m(4) + algorithm tag (1-byte length + tag bytes) + registers.
func (hll *HyperLogLog) Serialize() []byte {
	data := make([]byte, 0, 5+len(hll.hashFn)+len(hll.registers))
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], hll.m)
	data = append(data, header[:]...)
	data = append(data, byte(len(hll.hashFn)))
	data = append(data, string(hll.hashFn)...)
	data = append(data, hll.registers...)
	return data
}

// DeserializeHyperLogLog loads structure state produced by Serialize.
func DeserializeHyperLogLog(data []byte) (*HyperLogLog, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("insufficient data for hyperloglog deserialization")
	}
	m := binary.LittleEndian.Uint32(data[0:4])
	n := int(data[4])
	if 5+n > len(data) {
		return nil, fmt.Errorf("truncated hyperloglog hash tag")
	}
	alg := HashAlg(data[5 : 5+n])

	hll, err := NewHyperLogLog(int(m), alg)
	if err != nil {
		return nil, err
	}
	if len(data)-(5+n) != int(m) {
		return nil, fmt.Errorf("hyperloglog data length mismatch")
	}
	copy(hll.registers, data[5+n:])
	return hll, nil
}
