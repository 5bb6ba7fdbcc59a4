package output

import (
	"errors"

	"github.com/user/cipherbench/internal/benchmark"
)

// Sink is a closable result destination.
type Sink interface {
	benchmark.ResultSink
	Close() error
}

// MultiSink writes every batch to all sinks, even after one of them fails.
type MultiSink []Sink

func (m MultiSink) WriteSamples(samples []benchmark.Sample) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteSamples(samples); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) WriteAggregates(results []benchmark.AggregateResult) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteAggregates(results); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenSinks builds the sinks named by cfg. Paths left empty are skipped; the
// result may be an empty MultiSink.
func OpenSinks(cfg benchmark.OutputConfig, runID string) (MultiSink, error) {
	var sinks MultiSink

	if cfg.RawPath != "" || cfg.AggregatePath != "" {
		csvSink, err := NewCSVSink(cfg.RawPath, cfg.AggregatePath, runID, cfg.Fresh)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, csvSink)
	}

	if cfg.SQLitePath != "" {
		sqliteSink, err := NewSQLiteSink(cfg.SQLitePath, runID)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, sqliteSink)
	}

	return sinks, nil
}
