package output

import (
	"fmt"
	"io"

	"github.com/user/cipherbench/internal/benchmark"
)

// Formatter renders a finished run report for humans or other tools.
type Formatter interface {
	Format(w io.Writer, report *benchmark.Report) error
}

func NewFormatter(format string) (Formatter, error) {
	switch format {
	case "table":
		return &TableFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "csv":
		return &CSVFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
