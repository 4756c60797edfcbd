// Package sketches provides probabilistic data structures for approximate
// membership testing, frequency counting and cardinality estimation over
// data streams.
//
// All three structures are value types with copy-on-write updates: a
// mutating operation returns a new sketch and never touches its receiver,
// so old snapshots remain valid. The package performs no locking; callers
// that share a sketch across goroutines serialize access themselves (see
// the keeper package).
package sketches

import "fmt"

// SketchType represents the type of sketch
type SketchType string

const (
	BloomFilterType    SketchType = "bloom"
	CountMinSketchType SketchType = "countmin"
	HyperLogLogType    SketchType = "hyperloglog"
)

// SketchInfo contains metadata about a sketch
type SketchInfo struct {
	Type       SketchType     `json:"type"`
	Name       string         `json:"name"`
	CreatedAt  int64          `json:"created_at"`
	Parameters map[string]any `json:"parameters"`
}

// Answer is the reply to a point query against a sketch. Exactly one of
// the result fields is meaningful, selected by SketchType.
type Answer struct {
	SketchType  SketchType `json:"sketch_type"`
	Member      bool       `json:"member,omitempty"`
	Count       uint64     `json:"count,omitempty"`
	Cardinality uint64     `json:"cardinality,omitempty"`
}

// Sketch is the common surface of all sketch types.
type Sketch interface {
	// Serialize returns the sketch as bytes for storage
	Serialize() []byte

	// Type returns the sketch type
	Type() SketchType

	// Apply observes one value and returns the updated sketch,
	// leaving the receiver unchanged.
	Apply(value []byte) Sketch

	// Query answers a point query for value against the current state.
	Query(value []byte) Answer
}

// Ensure implementations satisfy the interface
var _ Sketch = (*BloomFilter)(nil)
var _ Sketch = (*CountMinSketch)(nil)
var _ Sketch = (*HyperLogLog)(nil)

func (bf *BloomFilter) Type() SketchType {
	return BloomFilterType
}

func (cms *CountMinSketch) Type() SketchType {
	return CountMinSketchType
}

func (hll *HyperLogLog) Type() SketchType {
	return HyperLogLogType
}

func (bf *BloomFilter) Apply(value []byte) Sketch {
	return bf.Update(value)
}

func (cms *CountMinSketch) Apply(value []byte) Sketch {
	return cms.Update(value)
}

func (hll *HyperLogLog) Apply(value []byte) Sketch {
	return hll.Update(value)
}

func (bf *BloomFilter) Query(value []byte) Answer {
	return Answer{SketchType: BloomFilterType, Member: bf.PossibleMember(value)}
}

func (cms *CountMinSketch) Query(value []byte) Answer {
	return Answer{SketchType: CountMinSketchType, Count: cms.GetCount(value)}
}

// Query ignores value: cardinality is a property of the whole stream.
func (hll *HyperLogLog) Query(value []byte) Answer {
	return Answer{SketchType: HyperLogLogType, Cardinality: hll.Count()}
}

// Deserialize reconstructs a sketch of the given type from bytes
// produced by its Serialize method.
func Deserialize(t SketchType, data []byte) (Sketch, error) {
	switch t {
	case BloomFilterType:
		return DeserializeBloomFilter(data)
	case CountMinSketchType:
		return DeserializeCountMinSketch(data)
	case HyperLogLogType:
		return DeserializeHyperLogLog(data)
	}
	return nil, fmt.Errorf("unknown sketch type %q", t)
}
