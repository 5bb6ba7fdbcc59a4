package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/user/cipherbench/internal/benchmark"
)

// CSVFormatter prints the aggregate rows with the machine description
// appended to every row, so files from different hosts can be concatenated.
type CSVFormatter struct{}

var systemColumns = []string{
	"os",
	"architecture",
	"cpu_model",
	"cpu_cores",
	"hardware_aes",
	"total_memory_gb",
}

func (c *CSVFormatter) Format(w io.Writer, report *benchmark.Report) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := append(aggregateHeader(), systemColumns...)
	if err := writer.Write(header); err != nil {
		return err
	}

	system := []string{"", "", "", "", "", ""}
	if si := report.SystemInfo; si != nil {
		system = []string{
			si.OS,
			si.Architecture,
			si.CPUModel,
			fmt.Sprintf("%d", si.CPUCores),
			fmt.Sprintf("%t", si.HardwareAES),
			fmt.Sprintf("%.2f", float64(si.TotalMemory)/(1024*1024*1024)),
		}
	}

	for _, a := range report.Aggregates {
		if err := writer.Write(append(aggregateRecord(report.RunID, a), system...)); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
