package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/user/cipherbench/internal/benchmark"
	"github.com/user/cipherbench/internal/logging"
)

// runFlags mirror benchmark.Config. Only flags set on the command line
// override file and environment values.
type runFlags struct {
	configPath    string
	profiles      []string
	sizes         []int
	iterations    int
	generations   int
	warmup        int
	fill          string
	backend       string
	corpusDir     string
	aesBits       int
	rsaBits       int
	timing        string
	rawPath       string
	aggregatePath string
	sqlitePath    string
	splitDir      string
	fresh         bool
	progress      bool
	verbose       bool
	logLevel      string
	logFile       string
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	def := benchmark.DefaultConfig()

	fs.StringVarP(&f.configPath, "config", "c", "", "YAML or JSON configuration file")
	fs.StringSliceVarP(&f.profiles, "profiles", "p", def.Profiles, "Profiles to measure (aes-cbc, aes-cfb, aes-ofb, aes-ctr, rsa, sha256, sha3-256, aes, all)")
	fs.IntSliceVarP(&f.sizes, "sizes", "s", def.FileSizes, "File sizes in bytes; replaces per-profile size overrides")
	fs.IntVarP(&f.iterations, "iterations", "i", def.Iterations, "Iterations per corpus item")
	fs.IntVarP(&f.generations, "generations", "g", def.Generations, "Corpus items generated per size")
	fs.IntVar(&f.warmup, "warmup", def.WarmupExclude, "Leading samples per group excluded from statistics")
	fs.StringVar(&f.fill, "fill", string(def.FillPolicy), "Corpus fill policy (random, text)")
	fs.StringVar(&f.backend, "backend", string(def.CorpusBackend), "Corpus backend (disk, memory)")
	fs.StringVar(&f.corpusDir, "corpus-dir", def.CorpusDir, "Parent directory for on-disk corpus items")
	fs.IntVar(&f.aesBits, "aes-bits", def.AESKeyBits, "AES key size (128, 192, 256)")
	fs.IntVar(&f.rsaBits, "rsa-bits", def.RSAKeyBits, "RSA modulus size")
	fs.StringVar(&f.timing, "timing", string(def.TimingPolicy), "Timing policy (include-setup, exclude-setup)")
	fs.StringVar(&f.rawPath, "raw", def.Output.RawPath, "Raw sample CSV path (empty disables)")
	fs.StringVar(&f.aggregatePath, "aggregate", def.Output.AggregatePath, "Aggregate CSV path (empty disables)")
	fs.StringVar(&f.sqlitePath, "sqlite", def.Output.SQLitePath, "SQLite database path (empty disables)")
	fs.StringVar(&f.splitDir, "split-dir", def.Output.SplitDir, "Write one raw CSV per profile into this directory")
	fs.BoolVar(&f.fresh, "fresh", def.Output.Fresh, "Truncate result files instead of appending")
	fs.BoolVar(&f.progress, "progress", def.ShowProgress, "Show progress bar")
	fs.BoolVarP(&f.verbose, "verbose", "v", def.Verbose, "Verbose output")
	fs.StringVar(&f.logLevel, "log-level", logging.LevelInfo, "Log level (debug, info, warning, error)")
	fs.StringVar(&f.logFile, "log-file", "", "Write JSON logs to a rotating file instead of stderr")
}

// loadConfig applies defaults < file < environment < flags.
func loadConfig(cmd *cobra.Command, f *runFlags) (benchmark.Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := benchmark.DefaultConfig()
	if f.configPath != "" {
		loaded, err := benchmark.LoadConfig(f.configPath)
		if err != nil {
			return cfg, &benchmark.Error{Kind: benchmark.KindInvalidConfig, Stage: benchmark.StateIdle, Message: "cannot load " + f.configPath, Cause: err}
		}
		cfg = loaded
	}
	if err := benchmark.ApplyEnv(&cfg); err != nil {
		return cfg, &benchmark.Error{Kind: benchmark.KindInvalidConfig, Stage: benchmark.StateIdle, Message: "bad environment", Cause: err}
	}

	fs := cmd.Flags()
	changed := fs.Changed

	if changed("profiles") {
		cfg.Profiles = f.profiles
	}
	if changed("sizes") {
		cfg.FileSizes = f.sizes
		cfg.SizeOverrides = nil
	}
	if changed("iterations") {
		cfg.Iterations = f.iterations
	}
	if changed("generations") {
		cfg.Generations = f.generations
	}
	if changed("warmup") {
		cfg.WarmupExclude = f.warmup
	}
	if changed("fill") {
		cfg.FillPolicy = benchmark.FillPolicy(f.fill)
	}
	if changed("backend") {
		cfg.CorpusBackend = benchmark.CorpusBackend(f.backend)
	}
	if changed("corpus-dir") {
		cfg.CorpusDir = f.corpusDir
	}
	if changed("aes-bits") {
		cfg.AESKeyBits = f.aesBits
	}
	if changed("rsa-bits") {
		cfg.RSAKeyBits = f.rsaBits
	}
	if changed("timing") {
		cfg.TimingPolicy = benchmark.TimingPolicy(f.timing)
	}
	if changed("raw") {
		cfg.Output.RawPath = f.rawPath
	}
	if changed("aggregate") {
		cfg.Output.AggregatePath = f.aggregatePath
	}
	if changed("sqlite") {
		cfg.Output.SQLitePath = f.sqlitePath
	}
	if changed("split-dir") {
		cfg.Output.SplitDir = f.splitDir
	}
	if changed("fresh") {
		cfg.Output.Fresh = f.fresh
	}
	if changed("progress") {
		cfg.ShowProgress = f.progress
	}
	if changed("verbose") {
		cfg.Verbose = f.verbose
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (f *runFlags) logSettings(verbose bool) logging.Settings {
	s := logging.DefaultSettings()
	s.Level = f.logLevel
	if verbose && s.Level == logging.LevelInfo {
		s.Level = logging.LevelDebug
	}
	if f.logFile != "" {
		s.Type = logging.TypeFile
		s.FilePath = f.logFile
		s.MaxSize = 10
		s.MaxBackups = 3
		s.MaxAge = 28
	}
	return s
}

func describe(cfg benchmark.Config) string {
	return fmt.Sprintf("profiles=%v sizes=%v iterations=%d generations=%d timing=%s",
		cfg.Profiles, cfg.FileSizes, cfg.Iterations, cfg.Generations, cfg.TimingPolicy)
}
