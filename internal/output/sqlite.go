package output

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/user/cipherbench/internal/benchmark"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS samples (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT NOT NULL,
	profile         TEXT NOT NULL,
	file_size       INTEGER NOT NULL,
	generation      INTEGER NOT NULL,
	iteration       INTEGER NOT NULL,
	encryption_us   REAL,
	decryption_us   REAL,
	hash_us         REAL,
	verification_us REAL
);

CREATE INDEX IF NOT EXISTS idx_samples_run ON samples(run_id, profile, file_size);

CREATE TABLE IF NOT EXISTS aggregates (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT NOT NULL,
	profile         TEXT NOT NULL,
	file_size       INTEGER NOT NULL,
	operation       TEXT NOT NULL,
	sample_count    INTEGER NOT NULL,
	warmup_excluded INTEGER NOT NULL,
	valid           INTEGER NOT NULL,
	error           TEXT,
	mean_us         REAL,
	median_us       REAL,
	min_us          REAL,
	max_us          REAL,
	stddev_us       REAL,
	p95_us          REAL
);
`

// SQLiteSink stores rows tagged with the run they belong to. Each batch is
// one transaction, so a group is either fully stored or not at all.
type SQLiteSink struct {
	db    *sql.DB
	runID string
}

func NewSQLiteSink(path, runID string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO runs (run_id, created_at) VALUES (?, ?)`, runID, time.Now().Unix()); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to register run: %w", err)
	}

	return &SQLiteSink{db: db, runID: runID}, nil
}

func (s *SQLiteSink) WriteSamples(samples []benchmark.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	return s.inTx(`
		INSERT INTO samples (
			run_id, profile, file_size, generation, iteration,
			encryption_us, decryption_us, hash_us, verification_us
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		func(stmt *sql.Stmt) error {
			for _, smp := range samples {
				_, err := stmt.Exec(
					s.runID, smp.Profile, smp.FileSize, smp.Generation, smp.Iteration,
					nullable(smp, benchmark.OpEncrypt),
					nullable(smp, benchmark.OpDecrypt),
					nullable(smp, benchmark.OpDigest),
					nullable(smp, benchmark.OpVerify),
				)
				if err != nil {
					return err
				}
			}
			return nil
		})
}

func (s *SQLiteSink) WriteAggregates(results []benchmark.AggregateResult) error {
	if len(results) == 0 {
		return nil
	}
	return s.inTx(`
		INSERT INTO aggregates (
			run_id, profile, file_size, operation, sample_count, warmup_excluded, valid, error,
			mean_us, median_us, min_us, max_us, stddev_us, p95_us
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		func(stmt *sql.Stmt) error {
			for _, a := range results {
				if !a.Valid {
					_, err := stmt.Exec(s.runID, a.Profile, a.FileSize, "", a.SampleCount, a.WarmupExcluded, false, a.Error,
						nil, nil, nil, nil, nil, nil)
					if err != nil {
						return err
					}
					continue
				}
				for _, op := range benchmark.OperationsFor(a.Kind) {
					st, ok := a.Stat(op)
					if !ok {
						continue
					}
					_, err := stmt.Exec(s.runID, a.Profile, a.FileSize, string(op), a.SampleCount, a.WarmupExcluded, true, nil,
						st.Mean, st.Median, st.Min, st.Max, st.StdDev, st.P95)
					if err != nil {
						return err
					}
				}
			}
			return nil
		})
}

func (s *SQLiteSink) inTx(query string, fn func(*sql.Stmt) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: insert failed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit: %w", err)
	}
	return nil
}

// Samples reads back the raw rows of one run in insertion order.
func (s *SQLiteSink) Samples(ctx context.Context, runID string) ([]benchmark.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT profile, file_size, generation, iteration,
		       encryption_us, decryption_us, hash_us, verification_us
		FROM samples WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query failed: %w", err)
	}
	defer rows.Close()

	var out []benchmark.Sample
	for rows.Next() {
		var (
			smp                    benchmark.Sample
			enc, dec, hash, verify sql.NullFloat64
		)
		if err := rows.Scan(&smp.Profile, &smp.FileSize, &smp.Generation, &smp.Iteration, &enc, &dec, &hash, &verify); err != nil {
			return nil, fmt.Errorf("sqlite: scan failed: %w", err)
		}
		if hash.Valid {
			smp.Kind = benchmark.CapDigest
			smp.Digest, smp.Verify = hash.Float64, verify.Float64
		} else {
			smp.Kind = benchmark.CapEncrypt | benchmark.CapDecrypt
			smp.Encrypt, smp.Decrypt = enc.Float64, dec.Float64
		}
		out = append(out, smp)
	}
	return out, rows.Err()
}

// AggregateRows counts stored aggregate rows for a run.
func (s *SQLiteSink) AggregateRows(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM aggregates WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count failed: %w", err)
	}
	return n, nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func nullable(smp benchmark.Sample, op benchmark.Operation) any {
	if v, ok := smp.Elapsed(op); ok {
		return v
	}
	return nil
}
