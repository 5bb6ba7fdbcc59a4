package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/user/cipherbench/internal/archive"
	"github.com/user/cipherbench/internal/benchmark"
	"github.com/user/cipherbench/internal/logging"
	"github.com/user/cipherbench/internal/output"
	"github.com/user/cipherbench/internal/server"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitConfig      = 2
	exitInterrupted = 130
)

var (
	flags        runFlags
	outputFormat string
	outputFile   string
	serveAddr    string
)

var rootCmd = &cobra.Command{
	Use:   "cipherbench",
	Short: "Measure encryption, decryption and hashing times over generated files",
	Long: `CipherBench generates a corpus of files of fixed sizes and times every
selected cryptographic profile over it, one operation at a time.

Each iteration is checked for correctness: ciphertext must decrypt back to the
original bytes and digests must be reproducible. Raw samples are appended to
CSV (and optionally SQLite) after every completed profile and size, and
per-group statistics are written when the run finishes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBenchmark,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP/websocket API; runs are executed one at a time",
	RunE:  runServer,
}

func init() {
	flags.register(rootCmd.PersistentFlags())
	rootCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "Report format (table, json, csv)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Report file (default: stdout)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	rootCmd.AddCommand(serveCmd)
}

func newLogger(cfg benchmark.Config) (*slog.Logger, io.Closer, error) {
	logger, closer, err := logging.New(flags.logSettings(cfg.Verbose))
	if err != nil {
		return nil, nil, &benchmark.Error{Kind: benchmark.KindInvalidConfig, Stage: benchmark.StateIdle, Message: "bad logging settings", Cause: err}
	}
	return logger, closer, nil
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, &flags)
	if err != nil {
		return err
	}

	formatter, err := output.NewFormatter(outputFormat)
	if err != nil {
		return &benchmark.Error{Kind: benchmark.KindInvalidConfig, Stage: benchmark.StateIdle, Message: "invalid output format", Cause: err}
	}

	logger, closer, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.New().String()
	sinks, err := output.OpenSinks(cfg.Output, runID)
	if err != nil {
		return &benchmark.Error{Kind: benchmark.KindIOFailure, Stage: benchmark.StateIdle, Message: "cannot open result files", Cause: err}
	}

	if cfg.Verbose {
		fmt.Fprintln(os.Stderr, "CipherBench - Cryptographic Throughput Benchmark")
		fmt.Fprintln(os.Stderr, "================================================")
		fmt.Fprintln(os.Stderr, describe(cfg))
		fmt.Fprintln(os.Stderr)
	}

	report, runErr := benchmark.NewRunner(cfg,
		benchmark.WithRunID(runID),
		benchmark.WithLogger(logger),
		benchmark.WithSink(sinks),
	).Run(ctx)
	if err := sinks.Close(); err != nil && runErr == nil {
		runErr = &benchmark.Error{Kind: benchmark.KindIOFailure, Stage: benchmark.StateDone, Message: "failed to close result files", Cause: err}
	}

	if err := writeReport(formatter, report); err != nil {
		logger.Error("failed to write report", "error", err)
	}
	if runErr != nil {
		return runErr
	}

	if cfg.Output.SplitDir != "" && cfg.Output.RawPath != "" {
		paths, err := output.SplitByProfile(cfg.Output.RawPath, cfg.Output.SplitDir, report.RunID, false)
		if err != nil {
			return &benchmark.Error{Kind: benchmark.KindIOFailure, Stage: benchmark.StateDone, Message: "split by profile failed", Cause: err}
		}
		logger.Info("raw samples split by profile", "files", len(paths), "dir", cfg.Output.SplitDir)
	}

	return archiveResults(ctx, cfg, report.RunID, logger)
}

func writeReport(formatter output.Formatter, report *benchmark.Report) error {
	if outputFile == "" {
		return formatter.Format(os.Stdout, report)
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := formatter.Format(f, report); err != nil {
		f.Close()
		return fmt.Errorf("failed to format output: %w", err)
	}
	return f.Close()
}

// archiveResults uploads after the run is complete; a failed upload is
// reported but the local files stay as they are.
func archiveResults(ctx context.Context, cfg benchmark.Config, runID string, logger *slog.Logger) error {
	archiver, err := archive.New(ctx, cfg.Output.Archive)
	if err != nil {
		return &benchmark.Error{Kind: benchmark.KindIOFailure, Stage: benchmark.StateDone, Message: "cannot open archive", Cause: err}
	}
	if archiver == nil {
		return nil
	}

	paths := []string{cfg.Output.RawPath, cfg.Output.AggregatePath, cfg.Output.SQLitePath, outputFile}
	uploaded, err := archiver.UploadRun(ctx, runID, paths)
	if err != nil {
		return err
	}
	logger.Info("results archived", "run_id", runID, "objects", uploaded)
	return nil
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, &flags)
	if err != nil {
		return err
	}

	logger, closer, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	srv, err := server.NewServer(server.Options{Addr: serveAddr, Base: cfg, Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var be *benchmark.Error
	if errors.As(err, &be) {
		switch be.Kind {
		case benchmark.KindInvalidConfig:
			return exitConfig
		case benchmark.KindInterrupted:
			return exitInterrupted
		}
	}
	return exitFailure
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}
