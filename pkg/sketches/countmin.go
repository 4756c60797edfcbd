package sketches

import (
	"encoding/binary"
	"fmt"
)

// CountMinSketch is an R×C matrix of counters with one hash algorithm per
// row, for approximate frequency counting. Estimates never undercount:
// collisions can only inflate a row, and GetCount takes the minimum
// across rows.
//
// Updates are copy-on-write: Update and Union return new sketches and
// leave their operands untouched.
type CountMinSketch struct {
	matrix  [][]uint64
	rows    uint32
	cols    uint32
	hashFns []HashAlg
	total   uint64
}

// NewCountMinSketch creates an all-zero sketch of rows×cols counters.
// Exactly one hash algorithm per row is required; rows and cols must be
// positive.
func NewCountMinSketch(rows, cols int, hashFns []HashAlg) (*CountMinSketch, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("count-min sketch dimensions must be positive, got %dx%d", rows, cols)
	}
	if len(hashFns) != rows {
		return nil, fmt.Errorf("count-min sketch needs %d hash algorithms, got %d", rows, len(hashFns))
	}
	if err := validateAlgs(hashFns); err != nil {
		return nil, fmt.Errorf("count-min sketch: %w", err)
	}

	matrix := make([][]uint64, rows)
	for i := range matrix {
		matrix[i] = make([]uint64, cols)
	}
	fns := make([]HashAlg, rows)
	copy(fns, hashFns)

	return &CountMinSketch{
		matrix:  matrix,
		rows:    uint32(rows),
		cols:    uint32(cols),
		hashFns: fns,
	}, nil
}

// Update increments one counter per row for value and returns the
// updated sketch. The receiver is not modified.
func (cms *CountMinSketch) Update(value []byte) *CountMinSketch {
	next := cms.clone()
	for i, alg := range cms.hashFns {
		c := indexOf(alg, value, cms.cols)
		next.matrix[i][c]++
	}
	next.total++
	return next
}

// UpdateString is a convenience wrapper for string values.
func (cms *CountMinSketch) UpdateString(value string) *CountMinSketch {
	return cms.Update([]byte(value))
}

// GetCount estimates how many times value has been inserted. The result
// is the minimum counter across all rows and is never less than the true
// insertion count.
func (cms *CountMinSketch) GetCount(value []byte) uint64 {
	minCount := ^uint64(0)
	for i, alg := range cms.hashFns {
		c := indexOf(alg, value, cms.cols)
		if cms.matrix[i][c] < minCount {
			minCount = cms.matrix[i][c]
		}
	}
	return minCount
}

// GetCountString is a convenience wrapper for string values.
func (cms *CountMinSketch) GetCountString(value string) uint64 {
	return cms.GetCount([]byte(value))
}

// Union returns a new sketch whose matrix is the cell-wise sum of cms and
// other, carrying cms's hash algorithms. Both operands must have the same
// shape and the same hash algorithm list; merging incompatible sketches
// would produce nonsense counts, so it fails fast instead.
func (cms *CountMinSketch) Union(other *CountMinSketch) (*CountMinSketch, error) {
	if cms.rows != other.rows || cms.cols != other.cols {
		return nil, fmt.Errorf("cannot union count-min sketches of shape %dx%d and %dx%d",
			cms.rows, cms.cols, other.rows, other.cols)
	}
	if !sameAlgs(cms.hashFns, other.hashFns) {
		return nil, fmt.Errorf("cannot union count-min sketches with different hash algorithms")
	}

	merged := cms.clone()
	for i := range merged.matrix {
		for j := range merged.matrix[i] {
			merged.matrix[i][j] += other.matrix[i][j]
		}
	}
	merged.total += other.total
	return merged, nil
}

// Rows returns the number of matrix rows (one per hash algorithm).
func (cms *CountMinSketch) Rows() int {
	return int(cms.rows)
}

// Cols returns the number of matrix columns.
func (cms *CountMinSketch) Cols() int {
	return int(cms.cols)
}

// TotalCount returns the total number of updates applied.
func (cms *CountMinSketch) TotalCount() uint64 {
	return cms.total
}

func (cms *CountMinSketch) clone() *CountMinSketch {
	matrix := make([][]uint64, cms.rows)
	for i := range matrix {
		matrix[i] = make([]uint64, cms.cols)
		copy(matrix[i], cms.matrix[i])
	}
	return &CountMinSketch{
		matrix:  matrix,
		rows:    cms.rows,
		cols:    cms.cols,
		hashFns: cms.hashFns,
		total:   cms.total,
	}
}

// Serialize returns the sketch state as bytes.
// Layout: rows(4) + cols(4) + total(8) + row algorithm tags + counters.
func (cms *CountMinSketch) Serialize() []byte {
	size := 16
	for _, alg := range cms.hashFns {
		size += 1 + len(alg)
	}
	size += int(cms.rows*cms.cols) * 8

	data := make([]byte, 0, size)
	var header [16]byte
	binary.LittleEndian.PutUint32(header[0:4], cms.rows)
	binary.LittleEndian.PutUint32(header[4:8], cms.cols)
	binary.LittleEndian.PutUint64(header[8:16], cms.total)
	data = append(data, header[:]...)

	for _, alg := range cms.hashFns {
		data = append(data, byte(len(alg)))
		data = append(data, string(alg)...)
	}

	var cell [8]byte
	for i := range cms.matrix {
		for j := range cms.matrix[i] {
			binary.LittleEndian.PutUint64(cell[:], cms.matrix[i][j])
			data = append(data, cell[:]...)
		}
	}
	return data
}

// DeserializeCountMinSketch loads sketch state produced by Serialize.
func DeserializeCountMinSketch(data []byte) (*CountMinSketch, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("insufficient data for count-min sketch deserialization")
	}
	rows := binary.LittleEndian.Uint32(data[0:4])
	cols := binary.LittleEndian.Uint32(data[4:8])
	total := binary.LittleEndian.Uint64(data[8:16])

	offset := 16
	algs := make([]HashAlg, 0, rows)
	for i := uint32(0); i < rows; i++ {
		if offset >= len(data) {
			return nil, fmt.Errorf("truncated count-min sketch hash list")
		}
		n := int(data[offset])
		offset++
		if offset+n > len(data) {
			return nil, fmt.Errorf("truncated count-min sketch hash list")
		}
		algs = append(algs, HashAlg(data[offset:offset+n]))
		offset += n
	}

	cms, err := NewCountMinSketch(int(rows), int(cols), algs)
	if err != nil {
		return nil, err
	}
	if len(data)-offset != int(rows*cols)*8 {
		return nil, fmt.Errorf("count-min sketch data length mismatch")
	}
	for i := range cms.matrix {
		for j := range cms.matrix[i] {
			cms.matrix[i][j] = binary.LittleEndian.Uint64(data[offset : offset+8])
			offset += 8
		}
	}
	cms.total = total
	return cms, nil
}
