package sketches

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHyperLogLogValidation(t *testing.T) {
	for _, m := range []int{0, -16, 8, 15, 17, 100} {
		_, err := NewHyperLogLog(m, HashSHA256)
		assert.Error(t, err, "m=%d should be rejected", m)
	}

	_, err := NewHyperLogLog(64, HashAlg("cityhash"))
	assert.Error(t, err)

	for _, m := range []int{16, 32, 64, 1024, 4096} {
		hll, err := NewHyperLogLog(m, HashSHA256)
		require.NoError(t, err)
		assert.Equal(t, m, hll.Registers())
	}
}

func TestHyperLogLogAlpha(t *testing.T) {
	cases := map[int]float64{
		16: 0.673,
		32: 0.697,
		64: 0.709,
	}
	for m, alpha := range cases {
		hll, err := NewHyperLogLog(m, HashSHA256)
		require.NoError(t, err)
		assert.InDelta(t, alpha*float64(m)*float64(m), hll.alphaM2, 1e-9)
	}

	m := 128
	hll, err := NewHyperLogLog(m, HashSHA256)
	require.NoError(t, err)
	alpha := 0.7213 / (1 + 1.079/float64(m))
	assert.InDelta(t, alpha*float64(m)*float64(m), hll.alphaM2, 1e-9)
}

func TestHyperLogLogEmptyCountsZero(t *testing.T) {
	hll, err := NewHyperLogLog(64, HashSHA256)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), hll.Count())
}

func TestHyperLogLogRegistersNeverDecrease(t *testing.T) {
	hll, err := NewHyperLogLog(16, HashSHA1)
	require.NoError(t, err)

	prev := make([]uint8, 16)
	for i := 0; i < 500; i++ {
		hll = hll.UpdateString(fmt.Sprintf("item-%d", i))
		for j, reg := range hll.registers {
			require.GreaterOrEqual(t, reg, prev[j], "register %d decreased", j)
			prev[j] = reg
		}
	}
}

func TestHyperLogLogIdempotentPerValue(t *testing.T) {
	hll, err := NewHyperLogLog(64, HashSHA256)
	require.NoError(t, err)

	once := hll.UpdateString("dup")
	twice := once.UpdateString("dup")
	assert.Equal(t, once.Count(), twice.Count())
	assert.Equal(t, once.registers, twice.registers)
}

func TestHyperLogLogCopyOnWrite(t *testing.T) {
	hll, err := NewHyperLogLog(64, HashSHA256)
	require.NoError(t, err)

	updated := hll.UpdateString("hi")
	assert.Equal(t, uint64(0), hll.Count(), "update mutated the original structure")
	assert.NotEqual(t, uint64(0), updated.Count())
}

func TestHyperLogLogSmallRangeAccuracy(t *testing.T) {
	// Well below 5M/2, linear counting should be close to exact.
	hll, err := NewHyperLogLog(1024, HashSHA256)
	require.NoError(t, err)

	n := 300
	for i := 0; i < n; i++ {
		hll = hll.UpdateString(fmt.Sprintf("small-%d", i))
	}
	estimate := float64(hll.Count())
	assert.InDelta(t, float64(n), estimate, float64(n)*0.1)
}

func TestHyperLogLogAccuracy(t *testing.T) {
	// Relative standard error is about 1.04/sqrt(M); allow a window of
	// several sigma since the inputs are fixed rather than random.
	cases := []struct {
		m, n      int
		tolerance float64
	}{
		{64, 5800, 0.40},
		{1024, 20000, 0.12},
		{4096, 50000, 0.10},
	}
	for _, tc := range cases {
		hll, err := NewHyperLogLog(tc.m, HashSHA256)
		require.NoError(t, err)
		for i := 0; i < tc.n; i++ {
			hll = hll.UpdateString(fmt.Sprintf("distinct-%d", i))
		}
		estimate := float64(hll.Count())
		relErr := math.Abs(estimate-float64(tc.n)) / float64(tc.n)
		assert.LessOrEqual(t, relErr, tc.tolerance,
			"m=%d n=%d estimate=%v", tc.m, tc.n, estimate)
	}
}

func TestHyperLogLogSerializeRoundTrip(t *testing.T) {
	hll, err := NewHyperLogLog(256, HashMD5)
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		hll = hll.UpdateString(fmt.Sprintf("rt-%d", i))
	}

	restored, err := DeserializeHyperLogLog(hll.Serialize())
	require.NoError(t, err)
	assert.Equal(t, hll.registers, restored.registers)
	assert.Equal(t, hll.Count(), restored.Count())

	_, err = DeserializeHyperLogLog([]byte{1})
	assert.Error(t, err)
}

func BenchmarkHyperLogLogUpdate(b *testing.B) {
	hll, _ := NewHyperLogLog(4096, HashSHA256)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hll = hll.Update([]byte(fmt.Sprintf("bench-%d", i)))
	}
}

func BenchmarkHyperLogLogCount(b *testing.B) {
	hll, _ := NewHyperLogLog(4096, HashSHA256)
	for i := 0; i < 100000; i++ {
		hll = hll.Update([]byte(fmt.Sprintf("bench-%d", i)))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hll.Count()
	}
}
