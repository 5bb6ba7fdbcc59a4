package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/user/cipherbench/internal/benchmark"
)

var ErrHeaderMismatch = errors.New("existing CSV file has different columns")

// CSVSink appends raw and aggregate rows to two files. Rows written by
// earlier runs are kept unless the sink was opened fresh; every row carries
// the run ID so runs sharing a file stay distinguishable.
type CSVSink struct {
	runID string
	raw   *csvFile
	agg   *csvFile
}

type csvFile struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

// NewCSVSink opens either path for appending; an empty path disables that
// stream. fresh truncates both files once, here.
func NewCSVSink(rawPath, aggregatePath, runID string, fresh bool) (*CSVSink, error) {
	s := &CSVSink{runID: runID}
	var err error

	if rawPath != "" {
		if s.raw, err = openCSV(rawPath, rawHeader, fresh); err != nil {
			return nil, err
		}
	}
	if aggregatePath != "" {
		if s.agg, err = openCSV(aggregatePath, aggregateHeader(), fresh); err != nil {
			s.Close()
			return nil, err
		}
	}

	return s, nil
}

func openCSV(path string, header []string, fresh bool) (*csvFile, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if fresh {
		flags |= os.O_TRUNC
	} else if err := checkHeader(path, header); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	f := &csvFile{path: path, file: file, writer: csv.NewWriter(file)}
	if info.Size() == 0 {
		if err := f.write([][]string{header}); err != nil {
			file.Close()
			return nil, err
		}
	}
	return f, nil
}

// checkHeader refuses to append to a non-empty file with other columns.
func checkHeader(path string, header []string) error {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	existing, err := csv.NewReader(file).Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	if !slices.Equal(existing, header) {
		return fmt.Errorf("%w: %s", ErrHeaderMismatch, path)
	}
	return nil
}

func (f *csvFile) write(records [][]string) error {
	if err := f.writer.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.path, err)
	}
	return nil
}

func (s *CSVSink) WriteSamples(samples []benchmark.Sample) error {
	if s.raw == nil || len(samples) == 0 {
		return nil
	}
	records := make([][]string, 0, len(samples))
	for _, sample := range samples {
		records = append(records, rawRecord(s.runID, sample))
	}
	return s.raw.write(records)
}

func (s *CSVSink) WriteAggregates(results []benchmark.AggregateResult) error {
	if s.agg == nil || len(results) == 0 {
		return nil
	}
	records := make([][]string, 0, len(results))
	for _, r := range results {
		records = append(records, aggregateRecord(s.runID, r))
	}
	return s.agg.write(records)
}

func (s *CSVSink) Close() error {
	var errs []error
	for _, f := range []*csvFile{s.raw, s.agg} {
		if f == nil {
			continue
		}
		f.writer.Flush()
		if err := f.writer.Error(); err != nil {
			errs = append(errs, err)
		}
		if err := f.file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
