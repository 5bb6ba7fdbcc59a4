package output

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/user/cipherbench/internal/benchmark"
)

type TableFormatter struct{}

// Format prints one row per (profile, size, operation). Invalid groups get a
// single row carrying the reason.
func (t *TableFormatter) Format(w io.Writer, report *benchmark.Report) error {
	fmt.Fprintln(w, "\nBenchmark Results")
	fmt.Fprintln(w, "================")
	if report.SystemInfo != nil {
		fmt.Fprintln(w, report.SystemInfo.Summary())
	}
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{
		"Profile",
		"Size",
		"Operation",
		"Samples",
		"Mean",
		"Median",
		"Min",
		"Max",
		"StdDev",
		"P95",
		"Throughput",
	})

	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, a := range report.Aggregates {
		if !a.Valid {
			table.Append([]string{
				a.Profile,
				formatBytes(a.FileSize),
				"-",
				strconv.Itoa(a.SampleCount),
				"invalid: " + a.Error,
				"", "", "", "", "", "",
			})
			continue
		}
		for _, op := range benchmark.OperationsFor(a.Kind) {
			st, ok := a.Stat(op)
			if !ok {
				continue
			}
			table.Append([]string{
				a.Profile,
				formatBytes(a.FileSize),
				opLabels[op],
				strconv.Itoa(a.SampleCount),
				formatMicrosDuration(st.Mean),
				formatMicrosDuration(st.Median),
				formatMicrosDuration(st.Min),
				formatMicrosDuration(st.Max),
				formatMicrosDuration(st.StdDev),
				formatMicrosDuration(st.P95),
				formatThroughput(a.FileSize, st.Mean),
			})
		}
	}

	table.Render()

	fmt.Fprintln(w, "\nSummary")
	fmt.Fprintln(w, "-------")
	fmt.Fprintf(w, "Run: %s\n", report.RunID)
	fmt.Fprintf(w, "State: %s\n", report.FinalState)
	fmt.Fprintf(w, "Profiles: %d\n", len(report.Profiles))
	fmt.Fprintf(w, "Samples collected: %d\n", len(report.Samples))
	fmt.Fprintf(w, "Total time: %s\n", formatDuration(report.Duration()))
	if report.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", report.Error)
	}

	return nil
}

func formatMicrosDuration(us float64) string {
	return formatDuration(time.Duration(us * float64(time.Microsecond)))
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1000)
	} else if d < time.Second {
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
	} else if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.2fm", d.Minutes())
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MiB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%d KiB", n>>10)
	}
	return fmt.Sprintf("%d B", n)
}

// formatThroughput reports MB/s for a mean elapsed time in microseconds.
func formatThroughput(size int, meanMicros float64) string {
	if meanMicros <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f MB/s", float64(size)/meanMicros)
}
