package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/user/cipherbench/internal/benchmark"
)

type JSONFormatter struct{}

type JSONOutput struct {
	Timestamp time.Time         `json:"timestamp"`
	Report    *benchmark.Report `json:"report"`
	Summary   struct {
		Profiles        int    `json:"profiles"`
		Samples         int    `json:"samples"`
		ValidGroups     int    `json:"valid_groups"`
		InvalidGroups   int    `json:"invalid_groups"`
		TotalTime       int64  `json:"total_time_ns"`
		TotalTimeString string `json:"total_time_string"`
	} `json:"summary"`
}

func (j *JSONFormatter) Format(w io.Writer, report *benchmark.Report) error {
	output := JSONOutput{
		Timestamp: time.Now(),
		Report:    report,
	}

	output.Summary.Profiles = len(report.Profiles)
	output.Summary.Samples = len(report.Samples)
	for _, a := range report.Aggregates {
		if a.Valid {
			output.Summary.ValidGroups++
		} else {
			output.Summary.InvalidGroups++
		}
	}
	output.Summary.TotalTime = int64(report.Duration())
	output.Summary.TotalTimeString = report.Duration().String()

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
