package sysinfo

import (
	"runtime"
	"strings"
	"testing"
)

func TestCollect(t *testing.T) {
	info, err := Collect()
	if err != nil {
		t.Fatalf("Failed to collect system info: %v", err)
	}

	if info.OS != runtime.GOOS {
		t.Errorf("OS mismatch: expected %s, got %s", runtime.GOOS, info.OS)
	}

	if info.Architecture != runtime.GOARCH {
		t.Errorf("Architecture mismatch: expected %s, got %s", runtime.GOARCH, info.Architecture)
	}

	if info.GoVersion != runtime.Version() {
		t.Errorf("Go version mismatch: expected %s, got %s", runtime.Version(), info.GoVersion)
	}

	if info.CPUCores != runtime.NumCPU() {
		t.Errorf("CPU cores mismatch: expected %d, got %d", runtime.NumCPU(), info.CPUCores)
	}

	if info.LoadAverage < 0 {
		t.Error("LoadAverage should not be negative")
	}

	if info.HardwareAES != hasAES(info.CryptoExtensions) {
		t.Error("HardwareAES disagrees with detected extensions")
	}
}

func TestCryptoExtensions(t *testing.T) {
	tests := []struct {
		flags    []string
		expected []string
		aes      bool
	}{
		{[]string{"fpu", "sse2", "aes", "pclmulqdq", "avx2", "AES"}, []string{"aes", "avx2", "pclmulqdq"}, true},
		{[]string{"fp", "asimd", "pmull", "sha2"}, []string{"pmull", "sha2"}, false},
		{[]string{"vaes", "sha_ni"}, []string{"sha_ni", "vaes"}, true},
		{nil, nil, false},
	}

	for _, test := range tests {
		got := CryptoExtensions(test.flags)
		if strings.Join(got, ",") != strings.Join(test.expected, ",") {
			t.Errorf("For %v expected %v, got %v", test.flags, test.expected, got)
		}
		if hasAES(got) != test.aes {
			t.Errorf("For %v expected hardware AES %v", test.flags, test.aes)
		}
	}
}

func TestSummary(t *testing.T) {
	info := &SystemInfo{
		OS:           "linux",
		Architecture: "amd64",
		CPUModel:     "Test CPU",
		CPUCores:     8,
		TotalMemory:  16 * 1024 * 1024 * 1024,
		HardwareAES:  true,
	}

	summary := info.Summary()
	for _, want := range []string{"linux/amd64", "Test CPU", "8 cores", "16.0 GB", "hardware AES: yes"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary %q missing %q", summary, want)
		}
	}

	var nilInfo *SystemInfo
	if nilInfo.Summary() != "unknown system" {
		t.Error("nil SystemInfo should summarise as unknown")
	}
}
