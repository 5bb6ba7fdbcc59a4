package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/user/cipherbench/internal/benchmark"
	"github.com/user/cipherbench/pkg/sysinfo"
)

func testReport() *benchmark.Report {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &benchmark.Report{
		RunID: "run-1",
		SystemInfo: &sysinfo.SystemInfo{
			OS:           "linux",
			Architecture: "amd64",
			CPUModel:     "Test CPU",
			CPUCores:     8,
			HardwareAES:  true,
			TotalMemory:  16 * 1024 * 1024 * 1024,
		},
		Config:   benchmark.DefaultConfig(),
		Profiles: []string{"aes-cbc", "sha256"},
		Samples: []benchmark.Sample{
			{Profile: "aes-cbc", Kind: benchmark.CapEncrypt | benchmark.CapDecrypt, FileSize: 4096, Generation: 1, Iteration: 1, Encrypt: 12.5, Decrypt: 10},
			{Profile: "sha256", Kind: benchmark.CapDigest, FileSize: 8, Generation: 1, Iteration: 1, Digest: 1.5, Verify: 2},
		},
		Aggregates: []benchmark.AggregateResult{
			{
				Profile:     "aes-cbc",
				Kind:        benchmark.CapEncrypt | benchmark.CapDecrypt,
				FileSize:    4096,
				SampleCount: 10,
				Valid:       true,
				Stats: map[benchmark.Operation]benchmark.Stats{
					benchmark.OpEncrypt: {Mean: 12.5, Median: 12, Min: 10, Max: 15, StdDev: 1.25, P95: 14.5},
					benchmark.OpDecrypt: {Mean: 10, Median: 10, Min: 9, Max: 11, StdDev: 0.5, P95: 11},
				},
			},
			{
				Profile:        "sha256",
				Kind:           benchmark.CapDigest,
				FileSize:       8,
				SampleCount:    2,
				WarmupExcluded: 2,
				Error:          "no samples left after warm-up exclusion",
			},
		},
		FinalState: benchmark.StateDone,
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format    string
		expectErr bool
	}{
		{"table", false},
		{"json", false},
		{"csv", false},
		{"xml", true},
		{"invalid", true},
	}

	for _, test := range tests {
		_, err := NewFormatter(test.format)
		if test.expectErr && err == nil {
			t.Errorf("Expected error for format %s", test.format)
		}
		if !test.expectErr && err != nil {
			t.Errorf("Unexpected error for format %s: %v", test.format, err)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	formatter := &JSONFormatter{}
	buf := &bytes.Buffer{}

	if err := formatter.Format(buf, testReport()); err != nil {
		t.Fatalf("JSON formatting failed: %v", err)
	}

	var result struct {
		Report struct {
			RunID      string           `json:"run_id"`
			SystemInfo map[string]any   `json:"system_info"`
			Aggregates []map[string]any `json:"aggregates"`
		} `json:"report"`
		Summary struct {
			Samples       int `json:"samples"`
			ValidGroups   int `json:"valid_groups"`
			InvalidGroups int `json:"invalid_groups"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}

	if result.Report.RunID != "run-1" {
		t.Errorf("Expected run_id run-1, got %q", result.Report.RunID)
	}
	if result.Report.SystemInfo == nil {
		t.Error("Missing system_info in JSON output")
	}
	if len(result.Report.Aggregates) != 2 {
		t.Errorf("Expected 2 aggregates, got %d", len(result.Report.Aggregates))
	}
	if result.Summary.Samples != 2 || result.Summary.ValidGroups != 1 || result.Summary.InvalidGroups != 1 {
		t.Errorf("Unexpected summary: %+v", result.Summary)
	}
}

func TestCSVFormatter(t *testing.T) {
	formatter := &CSVFormatter{}
	buf := &bytes.Buffer{}

	if err := formatter.Format(buf, testReport()); err != nil {
		t.Fatalf("CSV formatting failed: %v", err)
	}

	records, err := csv.NewReader(buf).ReadAll()
	if err != nil {
		t.Fatalf("Invalid CSV output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected header and two rows, got %d records", len(records))
	}

	header := records[0]
	if header[0] != "run_id" || header[1] != "profile_name" {
		t.Errorf("Expected run_id then profile_name, got %v", header[:2])
	}
	if header[len(header)-1] != "total_memory_gb" {
		t.Errorf("Expected last column total_memory_gb, got %s", header[len(header)-1])
	}

	row := records[1]
	if row[0] != "run-1" || row[1] != "aes-cbc" || row[2] != "4096" {
		t.Errorf("Unexpected first row: %v", row)
	}
	if row[len(row)-1] != "16.00" {
		t.Errorf("Expected memory 16.00, got %s", row[len(row)-1])
	}
	if records[2][5] != "false" {
		t.Errorf("Expected invalid group to be marked, got %s", records[2][5])
	}
}

func TestTableFormatter(t *testing.T) {
	formatter := &TableFormatter{}
	buf := &bytes.Buffer{}

	if err := formatter.Format(buf, testReport()); err != nil {
		t.Fatalf("Table formatting failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"Benchmark Results",
		"aes-cbc",
		"4 KiB",
		"encryption",
		"decryption",
		"12.50µs",
		"invalid:",
		"Summary",
		"Samples collected: 2",
		"Total time: 1.50s",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Table output missing %q", want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Nanosecond, "0.50µs"},
		{1500 * time.Microsecond, "1.50ms"},
		{2500 * time.Millisecond, "2.50s"},
		{150 * time.Second, "2.50m"},
	}

	for _, test := range tests {
		result := formatDuration(test.duration)
		if result != test.expected {
			t.Errorf("For duration %v, expected %s, got %s", test.duration, test.expected, result)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n        int
		expected string
	}{
		{8, "8 B"},
		{1000, "1000 B"},
		{4096, "4 KiB"},
		{2097152, "2 MiB"},
	}

	for _, test := range tests {
		if got := formatBytes(test.n); got != test.expected {
			t.Errorf("formatBytes(%d) = %s, want %s", test.n, got, test.expected)
		}
	}
}
