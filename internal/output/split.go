package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SplitByProfile writes one CSV per distinct profile_name found in a raw
// sample file, named after the profile, and returns the written paths in
// order of first appearance. A non-empty runID keeps only that run's rows.
// The source file is removed when removeSource is set and every split file
// was written.
func SplitByProfile(rawPath, dir, runID string, removeSource bool) ([]string, error) {
	in, err := os.Open(rawPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", rawPath, err)
	}
	records, err := csv.NewReader(in).ReadAll()
	in.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", rawPath, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s is empty", rawPath)
	}

	header := records[0]
	col := slices.Index(header, profileColumn)
	if col < 0 {
		return nil, fmt.Errorf("%s has no %s column", rawPath, profileColumn)
	}
	runCol := -1
	if runID != "" {
		if runCol = slices.Index(header, runColumn); runCol < 0 {
			return nil, fmt.Errorf("%s has no %s column", rawPath, runColumn)
		}
	}

	var order []string
	groups := make(map[string][][]string)
	for _, rec := range records[1:] {
		if runCol >= 0 && rec[runCol] != runID {
			continue
		}
		name := rec[col]
		if _, ok := groups[name]; !ok {
			order = append(order, name)
		}
		groups[name] = append(groups[name], rec)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	paths := make([]string, 0, len(order))
	for _, name := range order {
		path := filepath.Join(dir, fileSafe(name)+".csv")
		if err := writeCSV(path, append([][]string{header}, groups[name]...)); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	if removeSource {
		if err := os.Remove(rawPath); err != nil {
			return paths, fmt.Errorf("failed to remove %s: %w", rawPath, err)
		}
	}
	return paths, nil
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := csv.NewWriter(f).WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func fileSafe(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
}
