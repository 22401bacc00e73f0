package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podhaul/internal/ledger"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var includeNoMedia bool

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Requeue errored episodes for the next run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *ledger.Store) error {
				count, err := store.RetryErrored(cmd.Context(), includeNoMedia)
				if err != nil {
					return err
				}
				if count == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No episodes to retry")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d episodes\n", count)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&includeNoMedia, "include-no-media", false, "Also requeue episodes that resolved to no media")

	return cmd
}
