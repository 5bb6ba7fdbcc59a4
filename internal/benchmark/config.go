package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FillPolicy selects how corpus content is produced. It changes the entropy
// of what is measured, so it is always explicit.
type FillPolicy string

const (
	FillRandom FillPolicy = "random"
	FillText   FillPolicy = "text"
)

// CorpusBackend selects where corpus items live while they are measured.
type CorpusBackend string

const (
	BackendDisk   CorpusBackend = "disk"
	BackendMemory CorpusBackend = "memory"
)

// TimingPolicy decides whether constructing a fresh operation context is
// part of the timed region. One policy applies to every profile in a run.
type TimingPolicy string

const (
	TimingIncludeSetup TimingPolicy = "include-setup"
	TimingExcludeSetup TimingPolicy = "exclude-setup"
)

type Config struct {
	Profiles  []string `json:"profiles" yaml:"profiles" validate:"required,min=1,dive,required"`
	FileSizes []int    `json:"file_sizes" yaml:"file_sizes" validate:"required,min=1,dive,gt=0"`
	// SizeOverrides replaces FileSizes for the named registry profiles.
	SizeOverrides map[string][]int `json:"size_overrides" yaml:"size_overrides" validate:"omitempty,dive,min=1,dive,gt=0"`
	Iterations    int              `json:"iterations" yaml:"iterations" validate:"gt=0"`
	Generations   int              `json:"generations" yaml:"generations" validate:"gt=0"`
	WarmupExclude int              `json:"warmup_exclude" yaml:"warmup_exclude" validate:"gte=0"`
	FillPolicy    FillPolicy       `json:"fill_policy" yaml:"fill_policy" validate:"oneof=random text"`
	CorpusBackend CorpusBackend    `json:"corpus_backend" yaml:"corpus_backend" validate:"oneof=disk memory"`
	CorpusDir     string           `json:"corpus_dir" yaml:"corpus_dir"`
	AESKeyBits    int              `json:"aes_key_bits" yaml:"aes_key_bits" validate:"oneof=128 192 256"`
	RSAKeyBits    int              `json:"rsa_key_bits" yaml:"rsa_key_bits" validate:"gte=1024"`
	TimingPolicy  TimingPolicy     `json:"timing_policy" yaml:"timing_policy" validate:"oneof=include-setup exclude-setup"`
	ShowProgress  bool             `json:"show_progress" yaml:"show_progress"`
	Verbose       bool             `json:"verbose" yaml:"verbose"`
	Output        OutputConfig     `json:"output" yaml:"output"`
}

// OutputConfig lists the persisted destinations. Empty paths are skipped.
type OutputConfig struct {
	RawPath       string        `json:"raw_path" yaml:"raw_path"`
	AggregatePath string        `json:"aggregate_path" yaml:"aggregate_path"`
	SQLitePath    string        `json:"sqlite_path" yaml:"sqlite_path"`
	SplitDir      string        `json:"split_dir" yaml:"split_dir"`
	Fresh         bool          `json:"fresh" yaml:"fresh"`
	Archive       ArchiveConfig `json:"archive" yaml:"archive"`
}

type ArchiveConfig struct {
	// Type is one of "", local, s3
	Type     string `json:"type" yaml:"type" validate:"omitempty,oneof=local s3"`
	Path     string `json:"path" yaml:"path" validate:"required_if=Type local"`
	Bucket   string `json:"bucket" yaml:"bucket" validate:"required_if=Type s3"`
	Prefix   string `json:"prefix" yaml:"prefix"`
	Region   string `json:"region" yaml:"region"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig measures seven sizes from 8 bytes to 2 MiB, 100 iterations
// per file, every built-in profile. RSA gets the small payloads a single
// OAEP block can carry.
func DefaultConfig() Config {
	return Config{
		Profiles:      []string{"all"},
		FileSizes:     []int{8, 64, 512, 4096, 32768, 262144, 2097152},
		SizeOverrides: map[string][]int{"rsa": {2, 4, 8, 16, 32, 64, 128}},
		Iterations:    100,
		Generations:   1,
		WarmupExclude: 0,
		FillPolicy:    FillRandom,
		CorpusBackend: BackendDisk,
		AESKeyBits:    256,
		RSAKeyBits:    2048,
		TimingPolicy:  TimingIncludeSetup,
		ShowProgress:  true,
		Output: OutputConfig{
			RawPath:       filepath.Join("stats", "samples.csv"),
			AggregatePath: filepath.Join("stats", "aggregates.csv"),
		},
	}
}

func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return &Error{Kind: KindInvalidConfig, Stage: StateIdle, Message: "invalid configuration", Cause: err}
	}

	if _, err := ResolveProfileNames(c.Profiles); err != nil {
		return &Error{Kind: KindInvalidConfig, Stage: StateIdle, Message: "invalid profile selection", Cause: err}
	}

	for name := range c.SizeOverrides {
		if !isKnownProfile(name) {
			return &Error{Kind: KindInvalidConfig, Stage: StateIdle, Message: "size override for unknown profile " + name}
		}
	}

	return nil
}

// SizesFor returns the file sizes measured for a registry profile name.
func (c *Config) SizesFor(name string) []int {
	if sizes, ok := c.SizeOverrides[name]; ok {
		return sizes
	}
	return c.FileSizes
}

// LoadConfig reads a YAML or JSON file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// ApplyEnv overlays CIPHERBENCH_* environment variables.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("CIPHERBENCH_PROFILES"); v != "" {
		cfg.Profiles = splitList(v)
	}
	if v := os.Getenv("CIPHERBENCH_FILE_SIZES"); v != "" {
		sizes, err := parseIntList(v)
		if err != nil {
			return fmt.Errorf("CIPHERBENCH_FILE_SIZES: %w", err)
		}
		cfg.FileSizes = sizes
		// Explicit sizes apply to every profile.
		cfg.SizeOverrides = nil
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"CIPHERBENCH_ITERATIONS", &cfg.Iterations},
		{"CIPHERBENCH_GENERATIONS", &cfg.Generations},
		{"CIPHERBENCH_WARMUP_EXCLUDE", &cfg.WarmupExclude},
		{"CIPHERBENCH_AES_KEY_BITS", &cfg.AESKeyBits},
		{"CIPHERBENCH_RSA_KEY_BITS", &cfg.RSAKeyBits},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", e.name, err)
		}
		*e.dst = n
	}

	if v := os.Getenv("CIPHERBENCH_FILL_POLICY"); v != "" {
		cfg.FillPolicy = FillPolicy(v)
	}
	if v := os.Getenv("CIPHERBENCH_CORPUS_BACKEND"); v != "" {
		cfg.CorpusBackend = CorpusBackend(v)
	}
	if v := os.Getenv("CIPHERBENCH_CORPUS_DIR"); v != "" {
		cfg.CorpusDir = v
	}
	if v := os.Getenv("CIPHERBENCH_TIMING_POLICY"); v != "" {
		cfg.TimingPolicy = TimingPolicy(v)
	}
	if v := os.Getenv("CIPHERBENCH_RAW_PATH"); v != "" {
		cfg.Output.RawPath = v
	}
	if v := os.Getenv("CIPHERBENCH_AGGREGATE_PATH"); v != "" {
		cfg.Output.AggregatePath = v
	}
	if v := os.Getenv("CIPHERBENCH_SQLITE_PATH"); v != "" {
		cfg.Output.SQLitePath = v
	}

	// Archive credentials come from the regular AWS chain.
	if v := os.Getenv("CIPHERBENCH_ARCHIVE_TYPE"); v != "" {
		cfg.Output.Archive.Type = v
	}
	if v := os.Getenv("CIPHERBENCH_ARCHIVE_PATH"); v != "" {
		cfg.Output.Archive.Path = v
	}
	if v := os.Getenv("CIPHERBENCH_S3_BUCKET"); v != "" {
		cfg.Output.Archive.Bucket = v
	}
	if v := os.Getenv("CIPHERBENCH_S3_REGION"); v != "" {
		cfg.Output.Archive.Region = v
	}
	if v := os.Getenv("CIPHERBENCH_S3_ENDPOINT"); v != "" {
		cfg.Output.Archive.Endpoint = v
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIntList(s string) ([]int, error) {
	var out []int
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
