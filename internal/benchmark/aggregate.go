package benchmark

import (
	"fmt"
	"sort"

	"github.com/aclements/go-moremath/stats"
)

// Stats summarises one operation's elapsed times in microseconds.
type Stats struct {
	Mean   float64 `json:"mean_us"`
	Median float64 `json:"median_us"`
	Min    float64 `json:"min_us"`
	Max    float64 `json:"max_us"`
	StdDev float64 `json:"stddev_us"`
	P95    float64 `json:"p95_us"`
}

// AggregateResult is derived from the samples of one (profile, file size)
// group. An invalid result carries the reason and no statistics.
type AggregateResult struct {
	Profile        string              `json:"profile"`
	Kind           Capability          `json:"kind"`
	FileSize       int                 `json:"file_size_bytes"`
	SampleCount    int                 `json:"sample_count"`
	WarmupExcluded int                 `json:"warmup_excluded"`
	Valid          bool                `json:"valid"`
	Error          string              `json:"error,omitempty"`
	Stats          map[Operation]Stats `json:"stats,omitempty"`
}

func (a AggregateResult) Stat(op Operation) (Stats, bool) {
	s, ok := a.Stats[op]
	return s, ok
}

type groupKey struct {
	profile string
	size    int
}

// Aggregate groups samples by (profile, file size) in order of first
// appearance and reduces each group. Groups that end up empty after warm-up
// exclusion are returned invalid rather than dropped.
func Aggregate(samples []Sample, warmupExclude int) []AggregateResult {
	var order []groupKey
	groups := make(map[groupKey][]Sample)

	for _, s := range samples {
		k := groupKey{s.Profile, s.FileSize}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], s)
	}

	results := make([]AggregateResult, 0, len(order))
	for _, k := range order {
		res, err := AggregateGroup(groups[k], warmupExclude)
		if err != nil {
			res.Valid = false
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}

// AggregateGroup reduces the samples of a single group. The first
// warmupExclude samples in (generation, iteration) order are discarded.
func AggregateGroup(group []Sample, warmupExclude int) (AggregateResult, error) {
	if len(group) == 0 {
		return AggregateResult{}, &Error{Kind: KindInsufficientSamples, Stage: StateAggregating, Message: "empty group"}
	}

	ordered := append([]Sample(nil), group...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Generation != ordered[j].Generation {
			return ordered[i].Generation < ordered[j].Generation
		}
		return ordered[i].Iteration < ordered[j].Iteration
	})

	first := ordered[0]
	res := AggregateResult{
		Profile:  first.Profile,
		Kind:     first.Kind,
		FileSize: first.FileSize,
	}

	if warmupExclude < 0 {
		warmupExclude = 0
	}
	if warmupExclude >= len(ordered) {
		res.WarmupExcluded = len(ordered)
		return res, &Error{
			Kind:     KindInsufficientSamples,
			Stage:    StateAggregating,
			Profile:  first.Profile,
			FileSize: first.FileSize,
			Message:  fmt.Sprintf("warm-up exclusion of %d leaves none of %d samples", warmupExclude, len(ordered)),
		}
	}

	kept := ordered[warmupExclude:]
	res.WarmupExcluded = warmupExclude
	res.SampleCount = len(kept)
	res.Stats = make(map[Operation]Stats)

	for _, op := range OperationsFor(first.Kind) {
		xs := make([]float64, 0, len(kept))
		for _, s := range kept {
			if v, ok := s.Elapsed(op); ok {
				xs = append(xs, v)
			}
		}
		if len(xs) > 0 {
			res.Stats[op] = summarize(xs)
		}
	}

	res.Valid = true
	return res, nil
}

// summarize sorts before reducing so that any permutation of xs produces
// bit-identical output.
func summarize(xs []float64) Stats {
	sort.Float64s(xs)
	sample := stats.Sample{Xs: xs, Sorted: true}
	min, max := sample.Bounds()

	st := Stats{
		Mean:   sample.Mean(),
		Median: median(xs),
		Min:    min,
		Max:    max,
		P95:    sample.Quantile(0.95),
	}
	if len(xs) > 1 {
		st.StdDev = sample.StdDev()
	}
	return st
}

// median of sorted xs; the two middle values are averaged for even lengths.
func median(xs []float64) float64 {
	n := len(xs)
	if n%2 == 1 {
		return xs[n/2]
	}
	return (xs[n/2-1] + xs[n/2]) / 2
}
