package sysinfo

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// cryptoFlags are CPU feature flags that change cipher and hash throughput.
var cryptoFlags = map[string]bool{
	"aes":       true,
	"pclmulqdq": true,
	"sha_ni":    true,
	"avx2":      true,
	"avx512f":   true,
	"vaes":      true,
	// arm64
	"pmull": true,
	"sha1":  true,
	"sha2":  true,
	"sha3":  true,
}

type SystemInfo struct {
	OS               string   `json:"os"`
	Architecture     string   `json:"architecture"`
	CPUModel         string   `json:"cpu_model"`
	CPUMhz           float64  `json:"cpu_mhz"`
	CPUCores         int      `json:"cpu_cores"`
	CPUThreads       int      `json:"cpu_threads"`
	CryptoExtensions []string `json:"crypto_extensions"`
	HardwareAES      bool     `json:"hardware_aes"`
	TotalMemory      uint64   `json:"total_memory"`
	AvailableMemory  uint64   `json:"available_memory"`
	GoVersion        string   `json:"go_version"`
	Hostname         string   `json:"hostname"`
	Platform         string   `json:"platform"`
	KernelVersion    string   `json:"kernel_version"`
	LoadAverage      float64  `json:"load_average"`
}

// Collect gathers what it can. Missing gopsutil data leaves fields zero
// rather than failing, since a run is still meaningful without it.
func Collect() (*SystemInfo, error) {
	info := &SystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		GoVersion:    runtime.Version(),
		CPUCores:     runtime.NumCPU(),
	}

	cpuInfo, err := cpu.Info()
	if err == nil && len(cpuInfo) > 0 {
		info.CPUModel = strings.TrimSpace(cpuInfo[0].ModelName)
		info.CPUMhz = cpuInfo[0].Mhz
		info.CryptoExtensions = CryptoExtensions(cpuInfo[0].Flags)
		info.HardwareAES = hasAES(info.CryptoExtensions)
	}

	if threads, err := cpu.Counts(true); err == nil {
		info.CPUThreads = threads
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = memInfo.Total
		info.AvailableMemory = memInfo.Available
	}

	if hostInfo, err := host.Info(); err == nil {
		info.Hostname = hostInfo.Hostname
		info.Platform = hostInfo.Platform
		info.KernelVersion = hostInfo.KernelVersion
	}

	if loadAvg, err := load.Avg(); err == nil {
		info.LoadAverage = loadAvg.Load1
	}

	return info, nil
}

// CryptoExtensions filters raw CPU flags down to the crypto-relevant ones,
// sorted and deduplicated.
func CryptoExtensions(flags []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range flags {
		f = strings.ToLower(strings.TrimSpace(f))
		if cryptoFlags[f] && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

func hasAES(ext []string) bool {
	for _, e := range ext {
		if e == "aes" || e == "vaes" {
			return true
		}
	}
	return false
}

// Summary is a one-line description for report headers.
func (s *SystemInfo) Summary() string {
	if s == nil {
		return "unknown system"
	}
	aes := "no"
	if s.HardwareAES {
		aes = "yes"
	}
	return fmt.Sprintf("%s/%s, %s, %d cores, %.1f GB RAM, hardware AES: %s",
		s.OS, s.Architecture, s.CPUModel, s.CPUCores, float64(s.TotalMemory)/(1024*1024*1024), aes)
}
