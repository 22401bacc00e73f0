package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podhaul/internal/logging"
	"podhaul/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var tailLines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the podhaul log file",
		Long:  "Print the trailing lines of the log file, optionally following new output as runs append to it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			opts := logs.TailOptions{Limit: tailLines, Follow: follow}
			return logs.Tail(cmd.Context(), logging.FilePath(cfg), opts, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&tailLines, "tail", "n", 50, "Number of trailing lines to print (0 prints the whole file)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as they are appended")

	return cmd
}
