package sketches

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBloomFilterValidation(t *testing.T) {
	_, err := NewBloomFilter(0, []HashAlg{HashMD5})
	assert.Error(t, err)

	_, err = NewBloomFilter(-5, []HashAlg{HashMD5})
	assert.Error(t, err)

	_, err = NewBloomFilter(20, nil)
	assert.Error(t, err)

	_, err = NewBloomFilter(20, []HashAlg{HashAlg("xxh3")})
	assert.Error(t, err)

	bf, err := NewBloomFilter(20, []HashAlg{HashMD5, HashSHA1, HashSHA256})
	require.NoError(t, err)
	assert.Equal(t, 20, bf.Size())
	assert.Equal(t, 3, bf.HashCount())
	assert.Equal(t, 0, bf.SetBits())
}

func TestBloomFilterUpdateSetsOneBitPerHash(t *testing.T) {
	bf, err := NewBloomFilter(20, []HashAlg{HashMD5, HashSHA1, HashSHA256})
	require.NoError(t, err)

	updated := bf.UpdateString("hi")
	// One bit per hash algorithm; fewer only if two algorithms collide
	// on the same position.
	assert.GreaterOrEqual(t, updated.SetBits(), 1)
	assert.LessOrEqual(t, updated.SetBits(), 3)
	for _, alg := range []HashAlg{HashMD5, HashSHA1, HashSHA256} {
		pos := indexOf(alg, []byte("hi"), 20)
		assert.NotZero(t, updated.words[pos/bitsPerWord]&(1<<(pos%bitsPerWord)),
			"bit for %s not set", alg)
	}
}

func TestBloomFilterSoundness(t *testing.T) {
	bf, err := NewBloomFilter(1000, []HashAlg{HashMD5, HashSHA1, HashSHA256})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		bf = bf.UpdateString(fmt.Sprintf("member-%d", i))
	}
	for i := 0; i < 100; i++ {
		assert.True(t, bf.PossibleMemberString(fmt.Sprintf("member-%d", i)))
	}
}

func TestBloomFilterNoFalseNegativesEver(t *testing.T) {
	bf, err := NewBloomFilter(500, []HashAlg{HashSHA1, HashFNV64})
	require.NoError(t, err)

	bf = bf.UpdateString("keystone")
	// Pile on further updates; the keystone bits must survive them all.
	for i := 0; i < 2000; i++ {
		bf = bf.UpdateString(fmt.Sprintf("noise-%d", i))
		require.True(t, bf.PossibleMemberString("keystone"))
	}
}

func TestBloomFilterCopyOnWrite(t *testing.T) {
	bf, err := NewBloomFilter(64, []HashAlg{HashSHA256})
	require.NoError(t, err)

	updated := bf.UpdateString("hi")
	assert.Equal(t, 0, bf.SetBits(), "update mutated the original filter")
	assert.Equal(t, 1, updated.SetBits())
	assert.False(t, bf.PossibleMemberString("hi"))
	assert.True(t, updated.PossibleMemberString("hi"))
}

func TestOptimalNumberOfHashes(t *testing.T) {
	// round((m/n)*ln2)
	assert.Equal(t, 7, OptimalNumberOfHashes(1000, 100))
	assert.Equal(t, 3, OptimalNumberOfHashes(20, 5))
	assert.Equal(t, 1, OptimalNumberOfHashes(100, 100))
}

func TestFalsePositiveRate(t *testing.T) {
	assert.InDelta(t, 0.0082, FalsePositiveRate(1000, 100, 7), 0.0005)
	// More insertions can only worsen the rate.
	assert.Greater(t, FalsePositiveRate(1000, 500, 7), FalsePositiveRate(1000, 100, 7))
}

func TestBloomFilterEmpiricalFalsePositives(t *testing.T) {
	m, n, k := 2048, 200, 3
	bf, err := NewBloomFilter(m, []HashAlg{HashMD5, HashSHA1, HashSHA256})
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		bf = bf.UpdateString(fmt.Sprintf("in-%d", i))
	}

	trials := 10000
	falsePositives := 0
	for i := 0; i < trials; i++ {
		if bf.PossibleMemberString(fmt.Sprintf("out-%d", i)) {
			falsePositives++
		}
	}
	observed := float64(falsePositives) / float64(trials)
	predicted := FalsePositiveRate(m, n, k)
	// Loose statistical tolerance; predicted is around 2%.
	assert.Less(t, observed, predicted*3+0.02)
}

func TestBloomFilterSerializeRoundTrip(t *testing.T) {
	bf, err := NewBloomFilter(128, []HashAlg{HashMD5, HashFNV64})
	require.NoError(t, err)
	bf = bf.UpdateString("alpha").UpdateString("beta")

	restored, err := DeserializeBloomFilter(bf.Serialize())
	require.NoError(t, err)
	assert.Equal(t, bf.Size(), restored.Size())
	assert.Equal(t, bf.SetBits(), restored.SetBits())
	assert.True(t, restored.PossibleMemberString("alpha"))
	assert.True(t, restored.PossibleMemberString("beta"))

	_, err = DeserializeBloomFilter([]byte{1, 2, 3})
	assert.Error(t, err)
}

func BenchmarkBloomFilterUpdate(b *testing.B) {
	bf, _ := NewBloomFilter(1<<16, []HashAlg{HashMD5, HashSHA1, HashSHA256})
	value := []byte("benchmark value")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bf = bf.Update(value)
	}
}

func BenchmarkBloomFilterPossibleMember(b *testing.B) {
	bf, _ := NewBloomFilter(1<<16, []HashAlg{HashMD5, HashSHA1, HashSHA256})
	bf = bf.UpdateString("benchmark value")
	value := []byte("benchmark value")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bf.PossibleMember(value)
	}
}
