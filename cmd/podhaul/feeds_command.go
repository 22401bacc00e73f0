package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podhaul/internal/config"
	"podhaul/internal/pipeline"
	"podhaul/internal/preflight"
	"podhaul/internal/scan"
	"podhaul/internal/sites/feeds"
)

func newFeedsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var scanOnly, dryRun bool

	cmd := &cobra.Command{
		Use:   "feeds [file]",
		Short: "Scan RSS feeds from the feeds file, then download",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				expanded, err := config.ExpandPath(args[0])
				if err != nil {
					return fmt.Errorf("resolve feeds file: %w", err)
				}
				clone := *cfg
				clone.Paths.FeedsFile = expanded
				cfg = &clone
			}
			if err := preflight.Check(cfg, false); err != nil {
				return err
			}
			return ctx.withRunEnv(cfg, "", func(env *runEnv) error {
				source, err := feeds.New(env.cfg, env.logger)
				if err != nil {
					return err
				}
				opts := pipeline.Options{
					Scan:     scan.Options{StartPage: 1},
					ScanOnly: scanOnly,
					Limit:    intOverride(cmd, "limit", limit, env.cfg.Download.Limit),
					DryRun:   dryRun,
				}
				runner := pipeline.NewRunner(env.cfg, env.store, source, env.logger)
				summary, err := runner.Run(cmd.Context(), opts)
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), summary, opts)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Cap downloads this run; 0 means no cap (overrides download.limit)")
	cmd.Flags().BoolVar(&scanOnly, "scan-only", false, "Record feed entries without downloading")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List pending downloads without touching the network")

	return cmd
}
