package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"podhaul/internal/ledger"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger episodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]ledger.Status, 0, len(statusFilters))
			for _, raw := range statusFilters {
				status, ok := ledger.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q (expected one of %s)", raw, knownStatusList())
				}
				statuses = append(statuses, status)
			}
			return ctx.withStore(func(store *ledger.Store) error {
				episodes, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(episodes) == 0 {
					if len(statuses) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "Ledger is empty")
					} else {
						fmt.Fprintln(cmd.OutOrStdout(), "No matching episodes")
					}
					return nil
				}

				rows := make([][]string, 0, len(episodes))
				for _, episode := range episodes {
					file := episode.Filename
					if file == "" {
						file = "-"
					}
					rows = append(rows, []string{
						ledger.ShortKey(episode.Key),
						truncate(episode.DisplayTitle(), 48),
						string(episode.Status),
						episode.AddedAt.Format("2006-01-02"),
						truncate(file, 40),
					})
				}
				table := renderTable([]string{"Key", "Episode", "Status", "Added", "File"}, rows, nil)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by status (queued, downloaded, no_media, error); repeatable")

	return cmd
}

func knownStatusList() string {
	names := make([]string, 0, len(ledger.AllStatuses()))
	for _, status := range ledger.AllStatuses() {
		names = append(names, string(status))
	}
	return strings.Join(names, ", ")
}
