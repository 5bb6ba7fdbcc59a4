package output

import (
	"strconv"

	"github.com/user/cipherbench/internal/benchmark"
)

// Operations in column order.
var columnOps = []benchmark.Operation{
	benchmark.OpEncrypt,
	benchmark.OpDecrypt,
	benchmark.OpDigest,
	benchmark.OpVerify,
}

var opLabels = map[benchmark.Operation]string{
	benchmark.OpEncrypt: "encryption",
	benchmark.OpDecrypt: "decryption",
	benchmark.OpDigest:  "hash",
	benchmark.OpVerify:  "verification",
}

const (
	runColumn     = "run_id"
	profileColumn = "profile_name"
)

var rawHeader = []string{
	runColumn,
	profileColumn,
	"file_size_bytes",
	"generation",
	"iteration_index",
	"encryption_time_microseconds",
	"decryption_time_microseconds",
	"hash_time_microseconds",
	"verification_time_microseconds",
}

type statColumn struct {
	name  string
	value func(benchmark.Stats) float64
}

var statColumns = []statColumn{
	{"mean", func(s benchmark.Stats) float64 { return s.Mean }},
	{"median", func(s benchmark.Stats) float64 { return s.Median }},
	{"min", func(s benchmark.Stats) float64 { return s.Min }},
	{"max", func(s benchmark.Stats) float64 { return s.Max }},
	{"stddev", func(s benchmark.Stats) float64 { return s.StdDev }},
	{"p95", func(s benchmark.Stats) float64 { return s.P95 }},
}

// aggregateHeader orders columns stat-major: all means, then all medians.
func aggregateHeader() []string {
	header := []string{runColumn, profileColumn, "file_size_bytes", "sample_count", "warmup_excluded", "valid"}
	for _, sc := range statColumns {
		for _, op := range columnOps {
			header = append(header, sc.name+"_"+opLabels[op]+"_time_microseconds")
		}
	}
	return append(header, "error")
}

// rawRecord leaves timings the profile does not produce empty.
func rawRecord(runID string, s benchmark.Sample) []string {
	rec := []string{
		runID,
		s.Profile,
		strconv.Itoa(s.FileSize),
		strconv.Itoa(s.Generation),
		strconv.Itoa(s.Iteration),
	}
	for _, op := range columnOps {
		if v, ok := s.Elapsed(op); ok {
			rec = append(rec, formatMicros(v))
		} else {
			rec = append(rec, "")
		}
	}
	return rec
}

func aggregateRecord(runID string, a benchmark.AggregateResult) []string {
	rec := []string{
		runID,
		a.Profile,
		strconv.Itoa(a.FileSize),
		strconv.Itoa(a.SampleCount),
		strconv.Itoa(a.WarmupExcluded),
		strconv.FormatBool(a.Valid),
	}
	for _, sc := range statColumns {
		for _, op := range columnOps {
			if st, ok := a.Stat(op); ok {
				rec = append(rec, formatMicros(sc.value(st)))
			} else {
				rec = append(rec, "")
			}
		}
	}
	return append(rec, a.Error)
}

func formatMicros(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
