package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"podhaul/internal/ledger"
	"podhaul/internal/preflight"
)

const maxRecentFailures = 5

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show ledger totals, recent failures, and environment checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			return ctx.withStore(func(store *ledger.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				printSectionHeader(out, "Ledger", colorize)
				total := 0
				rows := make([][]string, 0, len(stats))
				for _, status := range ledger.AllStatuses() {
					count := stats[status]
					total += count
					if count == 0 {
						continue
					}
					rows = append(rows, []string{string(status), strconv.Itoa(count)})
				}
				if total == 0 {
					fmt.Fprintln(out, "Ledger is empty")
				} else {
					footer := []string{"total", strconv.Itoa(total)}
					fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows, footer, 1))
				}

				pages, err := store.PagesScanned(cmd.Context())
				if err != nil {
					return err
				}
				if len(pages) > 0 {
					sources := make([]string, 0, len(pages))
					for source := range pages {
						sources = append(sources, source)
					}
					sort.Strings(sources)
					for _, source := range sources {
						message := fmt.Sprintf("%d pages checkpointed", pages[source])
						fmt.Fprintln(out, renderStatusLine(source, statusInfo, message, colorize))
					}
				}

				failures, err := store.List(cmd.Context(), ledger.StatusError, ledger.StatusNoMedia)
				if err != nil {
					return err
				}
				if len(failures) > 0 {
					if len(failures) > maxRecentFailures {
						failures = failures[len(failures)-maxRecentFailures:]
					}
					fmt.Fprintln(out)
					printSectionHeader(out, "Recent failures", colorize)
					for _, episode := range failures {
						kind := statusError
						if episode.Status == ledger.StatusNoMedia {
							kind = statusWarn
						}
						message := truncate(episode.DisplayTitle(), 40)
						if episode.Error != "" {
							message += ": " + truncate(episode.Error, 60)
						}
						fmt.Fprintln(out, renderStatusLine(ledger.ShortKey(episode.Key), kind, message, colorize))
					}
				}

				fmt.Fprintln(out)
				printSectionHeader(out, "Environment", colorize)
				for _, result := range preflight.RunAll(cfg, true) {
					kind := statusOK
					if !result.OK {
						// yt-dlp only matters for links mode.
						if result.Name == "yt-dlp" {
							kind = statusWarn
						} else {
							kind = statusError
						}
					}
					fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
				}
				return nil
			})
		},
	}
}
