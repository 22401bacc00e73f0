package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string

	ctx := newCommandContext(&configFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "podhaul",
		Short:         "Archive podcast listings to local disk",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			// Fail here so no subcommand runs against a broken config.
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFlag, "config", "c", "", "path to the config file")
	flags.StringVar(&logLevelFlag, "log-level", "", "override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newRunCommand(ctx),
		newScanCommand(ctx),
		newDownloadCommand(ctx),
		newFeedsCommand(ctx),
		newLinksCommand(ctx),
		newStatusCommand(ctx),
		newListCommand(ctx),
		newRetryCommand(ctx),
		newExportCommand(ctx),
		newLogsCommand(ctx),
		newTestNotifyCommand(ctx),
		newConfigCommand(ctx),
	)

	return rootCmd
}
