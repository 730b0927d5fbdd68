package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/isd-archive-fetch/internal/domain"
)

// printSummary writes the per-year batch outcome as a table.
func printSummary(w io.Writer, summary domain.BatchSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "YEAR\tSTATUS\tSTAGE\tEXTRACTED\tMOVED\tSKIPPED\tDURATION")
	for _, r := range summary.Results {
		status := "ok"
		if !r.Succeeded {
			status = "failed"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.Year, status, r.Stage, r.Extracted,
			r.Classification.Moved, r.Classification.Skipped,
			r.Duration.Round(displayPrecision(r.Duration)))
		if r.Error != "" {
			fmt.Fprintf(tw, "\t\t\t\t\t\t%s\n", r.Error)
		}
	}
	tw.Flush()
}

// displayPrecision picks a rounding unit proportional to the duration.
func displayPrecision(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return 100 * time.Millisecond
	case d >= time.Millisecond:
		return 100 * time.Microsecond
	default:
		return time.Microsecond
	}
}
