package benchmark

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cipherSamples(profile string, size int, enc []float64) []Sample {
	out := make([]Sample, len(enc))
	for i, v := range enc {
		out[i] = Sample{
			Profile:    profile,
			Kind:       CapEncrypt | CapDecrypt,
			FileSize:   size,
			Generation: 1,
			Iteration:  i + 1,
			Encrypt:    v,
			Decrypt:    v * 2,
		}
	}
	return out
}

func TestAggregateGroupStatistics(t *testing.T) {
	samples := cipherSamples("AES-256-CBC", 8, []float64{4, 1, 3, 2})

	res, err := AggregateGroup(samples, 0)
	require.NoError(t, err)

	assert.True(t, res.Valid)
	assert.Equal(t, 4, res.SampleCount)
	assert.Equal(t, 0, res.WarmupExcluded)

	enc, ok := res.Stat(OpEncrypt)
	require.True(t, ok)
	assert.Equal(t, 2.5, enc.Mean)
	assert.Equal(t, 2.5, enc.Median)
	assert.Equal(t, 1.0, enc.Min)
	assert.Equal(t, 4.0, enc.Max)
	assert.InDelta(t, 1.29099, enc.StdDev, 1e-4)

	dec, ok := res.Stat(OpDecrypt)
	require.True(t, ok)
	assert.Equal(t, 5.0, dec.Mean)

	_, ok = res.Stat(OpDigest)
	assert.False(t, ok)
}

func TestAggregateGroupOddMedian(t *testing.T) {
	res, err := AggregateGroup(cipherSamples("AES-256-CTR", 64, []float64{9, 1, 5}), 0)
	require.NoError(t, err)

	enc, _ := res.Stat(OpEncrypt)
	assert.Equal(t, 5.0, enc.Median)
	assert.Equal(t, 9.0, enc.Max)
}

func TestAggregateGroupWarmupDropsEarliestIterations(t *testing.T) {
	// Arrival order differs from iteration order; warm-up follows iteration order.
	samples := cipherSamples("AES-256-CBC", 8, []float64{100, 1, 2, 3})
	samples[0], samples[3] = samples[3], samples[0]

	res, err := AggregateGroup(samples, 1)
	require.NoError(t, err)

	assert.Equal(t, 3, res.SampleCount)
	assert.Equal(t, 1, res.WarmupExcluded)
	enc, _ := res.Stat(OpEncrypt)
	assert.Equal(t, 2.0, enc.Mean)
	assert.Equal(t, 3.0, enc.Max)
}

func TestAggregateGroupInsufficientSamples(t *testing.T) {
	samples := cipherSamples("AES-256-CBC", 8, []float64{1, 2})

	for _, k := range []int{2, 3, 10} {
		res, err := AggregateGroup(samples, k)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindInsufficientSamples), "k=%d: %v", k, err)
		assert.False(t, res.Valid)
		assert.Equal(t, 0, res.SampleCount)
	}

	_, err := AggregateGroup(nil, 0)
	assert.True(t, IsKind(err, KindInsufficientSamples))
}

func TestAggregateMarksInvalidGroupsWithoutDroppingThem(t *testing.T) {
	var samples []Sample
	samples = append(samples, cipherSamples("AES-256-CBC", 8, []float64{1, 2, 3})...)
	samples = append(samples, cipherSamples("AES-256-CBC", 64, []float64{5})...)

	results := Aggregate(samples, 1)
	require.Len(t, results, 2)

	assert.Equal(t, 8, results[0].FileSize)
	assert.True(t, results[0].Valid)
	assert.Equal(t, 2, results[0].SampleCount)

	assert.Equal(t, 64, results[1].FileSize)
	assert.False(t, results[1].Valid)
	assert.Contains(t, results[1].Error, string(KindInsufficientSamples))
	assert.Empty(t, results[1].Stats)
}

func TestAggregateKeepsFirstAppearanceOrder(t *testing.T) {
	var samples []Sample
	samples = append(samples, cipherSamples("RSA-2048", 64, []float64{1})...)
	samples = append(samples, cipherSamples("AES-256-CBC", 8, []float64{1})...)
	samples = append(samples, cipherSamples("RSA-2048", 8, []float64{1})...)

	results := Aggregate(samples, 0)
	require.Len(t, results, 3)
	assert.Equal(t, "RSA-2048", results[0].Profile)
	assert.Equal(t, 64, results[0].FileSize)
	assert.Equal(t, "AES-256-CBC", results[1].Profile)
	assert.Equal(t, "RSA-2048", results[2].Profile)
	assert.Equal(t, 8, results[2].FileSize)
}

func TestAggregateHashGroup(t *testing.T) {
	samples := []Sample{
		{Profile: "SHA-256", Kind: CapDigest, FileSize: 16, Generation: 1, Iteration: 1, Digest: 2, Verify: 3},
		{Profile: "SHA-256", Kind: CapDigest, FileSize: 16, Generation: 1, Iteration: 2, Digest: 4, Verify: 5},
	}

	res, err := AggregateGroup(samples, 0)
	require.NoError(t, err)

	digest, ok := res.Stat(OpDigest)
	require.True(t, ok)
	assert.Equal(t, 3.0, digest.Mean)
	verify, ok := res.Stat(OpVerify)
	require.True(t, ok)
	assert.Equal(t, 4.0, verify.Median)
	_, ok = res.Stat(OpEncrypt)
	assert.False(t, ok)
}

func TestProperty_AggregationIsPermutationInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("shuffling accepted samples leaves mean and median identical", prop.ForAll(
		func(times []float64, seed int64) bool {
			if len(times) == 0 {
				return true
			}
			samples := cipherSamples("AES-256-OFB", 512, times)

			shuffled := append([]Sample(nil), samples...)
			rng := rand.New(rand.NewSource(seed))
			rng.Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})

			a, errA := AggregateGroup(samples, 0)
			b, errB := AggregateGroup(shuffled, 0)
			if errA != nil || errB != nil {
				return false
			}
			for _, op := range []Operation{OpEncrypt, OpDecrypt} {
				if a.Stats[op].Mean != b.Stats[op].Mean || a.Stats[op].Median != b.Stats[op].Median {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(0.1, 1e6)),
		gen.Int64(),
	))

	properties.Property("re-aggregating the same samples is bit-identical", prop.ForAll(
		func(times []float64) bool {
			samples := cipherSamples("AES-256-CFB", 8, times)
			first := Aggregate(samples, 0)
			second := Aggregate(samples, 0)
			if len(first) != len(second) {
				return false
			}
			for i := range first {
				for op, st := range first[i].Stats {
					if second[i].Stats[op] != st {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(0.1, 1e6)),
	))

	properties.TestingRun(t)
}

func TestProperty_WarmupExclusionCount(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("k < N keeps exactly N-k samples, k >= N is insufficient", prop.ForAll(
		func(n, k int) bool {
			times := make([]float64, n)
			for i := range times {
				times[i] = float64(i + 1)
			}
			res, err := AggregateGroup(cipherSamples("AES-256-CBC", 8, times), k)
			if k >= n {
				return IsKind(err, KindInsufficientSamples) && !res.Valid
			}
			return err == nil && res.SampleCount == n-k && res.WarmupExcluded == k
		},
		gen.IntRange(1, 50),
		gen.IntRange(0, 60),
	))

	properties.TestingRun(t)
}
