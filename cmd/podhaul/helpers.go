package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"podhaul/internal/pipeline"
)

// printSummary reports one run's outcome on the command's stdout. The log
// stream carries the per-episode detail; this is the terminal-facing recap.
func printSummary(out io.Writer, summary *pipeline.Summary, opts pipeline.Options) {
	if summary == nil {
		return
	}
	if s := summary.Scan; s != nil {
		fmt.Fprintf(out, "Scanned %d pages (%d already done): %d episodes seen, %d new\n",
			s.PagesScanned, s.PagesSkipped, s.EpisodesSeen, s.EpisodesNew)
	}
	if opts.ScanOnly {
		return
	}
	if summary.Processed == 0 {
		fmt.Fprintln(out, "Nothing to download")
		return
	}
	if opts.DryRun {
		fmt.Fprintf(out, "Would download %d episodes\n", summary.Processed)
		return
	}

	fmt.Fprintf(out, "Processed %d episodes: %d downloaded", summary.Processed, summary.Downloaded)
	if summary.Adopted > 0 {
		fmt.Fprintf(out, " (%d already on disk)", summary.Adopted)
	}
	if summary.NoMedia > 0 {
		fmt.Fprintf(out, ", %d without media", summary.NoMedia)
	}
	if summary.Failed > 0 {
		fmt.Fprintf(out, ", %d failed", summary.Failed)
	}
	fmt.Fprintln(out)
	if summary.Bytes > 0 {
		fmt.Fprintf(out, "Fetched %s in %s\n", formatBytes(summary.Bytes), summary.Duration.Round(time.Second))
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// truncate shortens s to at most max runes for table cells.
func truncate(s string, max int) string {
	if max <= 3 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// intOverride prefers a flag the user actually set over the configured value.
func intOverride(cmd *cobra.Command, name string, flagValue, configValue int) int {
	if cmd.Flags().Changed(name) {
		return flagValue
	}
	return configValue
}
