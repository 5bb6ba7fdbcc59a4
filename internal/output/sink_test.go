package output

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cipherbench/internal/benchmark"
)

var (
	cipherKind = benchmark.CapEncrypt | benchmark.CapDecrypt
	hashKind   = benchmark.CapDigest
)

func sampleBatch() []benchmark.Sample {
	return []benchmark.Sample{
		{Profile: "aes-cbc", Kind: cipherKind, FileSize: 8, Generation: 1, Iteration: 1, Encrypt: 3.25, Decrypt: 2.5},
		{Profile: "aes-cbc", Kind: cipherKind, FileSize: 8, Generation: 1, Iteration: 2, Encrypt: 3, Decrypt: 2},
		{Profile: "sha256", Kind: hashKind, FileSize: 8, Generation: 1, Iteration: 1, Digest: 1, Verify: 1.5},
	}
}

func aggregateBatch() []benchmark.AggregateResult {
	return benchmark.Aggregate(sampleBatch(), 0)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVSinkWritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "stats", "samples.csv")
	aggPath := filepath.Join(dir, "stats", "aggregates.csv")

	sink, err := NewCSVSink(rawPath, aggPath, "run-a", false)
	require.NoError(t, err)
	require.NoError(t, sink.WriteSamples(sampleBatch()))
	require.NoError(t, sink.WriteAggregates(aggregateBatch()))
	require.NoError(t, sink.Close())

	raw := readCSV(t, rawPath)
	require.Len(t, raw, 4)
	assert.Equal(t, rawHeader, raw[0])
	assert.Equal(t, []string{"run-a", "aes-cbc", "8", "1", "1", "3.250", "2.500", "", ""}, raw[1])
	assert.Equal(t, []string{"run-a", "sha256", "8", "1", "1", "", "", "1.000", "1.500"}, raw[3])

	agg := readCSV(t, aggPath)
	require.Len(t, agg, 3)
	assert.Equal(t, aggregateHeader(), agg[0])
	assert.Equal(t, "run-a", agg[1][0])
	assert.Equal(t, "aes-cbc", agg[1][1])
	assert.Equal(t, "2", agg[1][3])
	assert.Equal(t, "true", agg[1][5])
	// mean_encryption is the first stat column
	assert.Equal(t, "3.125", agg[1][6])
}

func TestCSVSinkAppendsAcrossRuns(t *testing.T) {
	rawPath := filepath.Join(t.TempDir(), "samples.csv")

	for _, runID := range []string{"run-a", "run-b"} {
		sink, err := NewCSVSink(rawPath, "", runID, false)
		require.NoError(t, err)
		require.NoError(t, sink.WriteSamples(sampleBatch()[:1]))
		require.NoError(t, sink.Close())
	}

	raw := readCSV(t, rawPath)
	require.Len(t, raw, 3, "one header and one row per run")
	assert.Equal(t, "run-a", raw[1][0])
	assert.Equal(t, "run-b", raw[2][0])
}

func TestCSVSinkFreshTruncates(t *testing.T) {
	rawPath := filepath.Join(t.TempDir(), "samples.csv")

	sink, err := NewCSVSink(rawPath, "", "run-a", false)
	require.NoError(t, err)
	require.NoError(t, sink.WriteSamples(sampleBatch()))
	require.NoError(t, sink.Close())

	sink, err = NewCSVSink(rawPath, "", "run-a", true)
	require.NoError(t, err)
	require.NoError(t, sink.WriteSamples(sampleBatch()[:1]))
	require.NoError(t, sink.Close())

	assert.Len(t, readCSV(t, rawPath), 2)
}

func TestCSVSinkRejectsForeignHeader(t *testing.T) {
	rawPath := filepath.Join(t.TempDir(), "samples.csv")
	require.NoError(t, os.WriteFile(rawPath, []byte("a,b,c\n1,2,3\n"), 0644))

	_, err := NewCSVSink(rawPath, "", "run-a", false)
	assert.ErrorIs(t, err, ErrHeaderMismatch)
}

func TestSQLiteSinkStoresRunRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")

	sink, err := NewSQLiteSink(path, "run-a")
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.WriteSamples(sampleBatch()))
	require.NoError(t, sink.WriteAggregates(aggregateBatch()))

	ctx := context.Background()
	got, err := sink.Samples(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, sampleBatch(), got)

	// two cipher operations plus two hash operations
	n, err := sink.AggregateRows(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	other, err := sink.Samples(ctx, "run-b")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLiteSinkInvalidAggregate(t *testing.T) {
	sink, err := NewSQLiteSink(filepath.Join(t.TempDir(), "results.db"), "run-a")
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.WriteAggregates([]benchmark.AggregateResult{
		{Profile: "aes-cbc", Kind: cipherKind, FileSize: 8, SampleCount: 1, WarmupExcluded: 1, Error: "too few samples"},
	}))

	n, err := sink.AggregateRows(context.Background(), "run-a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type failingSink struct {
	closed bool
}

func (f *failingSink) WriteSamples([]benchmark.Sample) error {
	return errors.New("disk full")
}

func (f *failingSink) WriteAggregates([]benchmark.AggregateResult) error {
	return errors.New("disk full")
}

func (f *failingSink) Close() error {
	f.closed = true
	return nil
}

func TestMultiSinkWritesToAll(t *testing.T) {
	rawPath := filepath.Join(t.TempDir(), "samples.csv")
	csvSink, err := NewCSVSink(rawPath, "", "run-a", true)
	require.NoError(t, err)

	broken := &failingSink{}
	sinks := MultiSink{broken, csvSink}

	err = sinks.WriteSamples(sampleBatch())
	assert.ErrorContains(t, err, "disk full")
	require.NoError(t, sinks.Close())
	assert.True(t, broken.closed)

	assert.Len(t, readCSV(t, rawPath), 4, "healthy sink still receives the batch")
}

func TestOpenSinks(t *testing.T) {
	dir := t.TempDir()

	sinks, err := OpenSinks(benchmark.OutputConfig{}, "run-a")
	require.NoError(t, err)
	assert.Empty(t, sinks)

	sinks, err = OpenSinks(benchmark.OutputConfig{
		RawPath:    filepath.Join(dir, "samples.csv"),
		SQLitePath: filepath.Join(dir, "results.db"),
	}, "run-a")
	require.NoError(t, err)
	assert.Len(t, sinks, 2)
	require.NoError(t, sinks.Close())
}

func TestSplitByProfile(t *testing.T) {
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "samples.csv")

	sink, err := NewCSVSink(rawPath, "", "run-a", true)
	require.NoError(t, err)
	require.NoError(t, sink.WriteSamples(sampleBatch()))
	require.NoError(t, sink.Close())

	splitDir := filepath.Join(dir, "split")
	paths, err := SplitByProfile(rawPath, splitDir, "", true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(splitDir, "aes-cbc.csv"),
		filepath.Join(splitDir, "sha256.csv"),
	}, paths)

	aes := readCSV(t, paths[0])
	require.Len(t, aes, 3)
	assert.Equal(t, rawHeader, aes[0])
	assert.Len(t, readCSV(t, paths[1]), 2)

	_, err = os.Stat(rawPath)
	assert.True(t, os.IsNotExist(err), "source removed")
}

func TestSplitByProfileKeepsOneRun(t *testing.T) {
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "samples.csv")

	for _, runID := range []string{"run-a", "run-b"} {
		sink, err := NewCSVSink(rawPath, "", runID, false)
		require.NoError(t, err)
		require.NoError(t, sink.WriteSamples(sampleBatch()))
		require.NoError(t, sink.Close())
	}

	paths, err := SplitByProfile(rawPath, filepath.Join(dir, "split"), "run-b", false)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	aes := readCSV(t, paths[0])
	require.Len(t, aes, 3, "header plus the two aes rows of run-b only")
	for _, rec := range aes[1:] {
		assert.Equal(t, "run-b", rec[0])
	}

	_, err = os.Stat(rawPath)
	assert.NoError(t, err, "source kept")
}

func TestSplitByProfileMissingColumn(t *testing.T) {
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "other.csv")
	require.NoError(t, os.WriteFile(rawPath, []byte("a,b\n1,2\n"), 0644))

	_, err := SplitByProfile(rawPath, dir, "", false)
	assert.ErrorContains(t, err, "profile_name")

	require.NoError(t, os.WriteFile(rawPath, []byte("profile_name,b\naes-cbc,2\n"), 0644))
	_, err = SplitByProfile(rawPath, dir, "run-a", false)
	assert.ErrorContains(t, err, "run_id")
}

func TestFileSafe(t *testing.T) {
	assert.Equal(t, "aes-cbc", fileSafe("aes-cbc"))
	assert.Equal(t, "a_b_c", fileSafe("a/b c"))
}
