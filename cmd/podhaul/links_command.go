package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podhaul/internal/config"
	"podhaul/internal/pipeline"
	"podhaul/internal/services/ytdlp"
)

func newLinksCommand(ctx *commandContext) *cobra.Command {
	var overrides runOverrides
	var limit int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "links <file>",
		Short: "Fetch media-platform links from a file via yt-dlp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve links file: %w", err)
			}
			return withPipelineEnv(ctx, cmd, &overrides, true, func(env *runEnv) error {
				opts := pipeline.Options{
					Limit:  intOverride(cmd, "limit", limit, env.cfg.Download.Limit),
					DryRun: dryRun,
				}
				runner := pipeline.NewRunner(env.cfg, env.store, nil, env.logger)
				summary, err := runner.Links(cmd.Context(), path, ytdlp.New(env.cfg, env.logger), opts)
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), summary, opts)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&overrides.outDir, "out", "", "Output directory (overrides paths.out_dir)")
	cmd.Flags().StringVar(&overrides.ledger, "ledger", "", "Ledger database path (overrides the state directory default)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Cap downloads this run; 0 means no cap (overrides download.limit)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List pending links without invoking yt-dlp")

	return cmd
}
