package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"podhaul/internal/config"
	"podhaul/internal/httpx"
	"podhaul/internal/pipeline"
	"podhaul/internal/preflight"
	"podhaul/internal/scan"
	"podhaul/internal/sites"
	"podhaul/internal/sites/feeds"
	"podhaul/internal/sites/podkaszt"
)

// runOverrides holds the per-invocation config overrides shared by the
// pipeline commands.
type runOverrides struct {
	baseURL string
	outDir  string
	ledger  string
	delay   float64
}

func (o *runOverrides) ledgerPath() (string, error) {
	path := strings.TrimSpace(o.ledger)
	if path == "" {
		return "", nil
	}
	return config.ExpandPath(path)
}

// apply folds the overrides into a copy of cfg, leaving the loaded config
// untouched for other commands.
func (o *runOverrides) apply(cmd *cobra.Command, cfg *config.Config) (*config.Config, error) {
	clone := *cfg
	if v := strings.TrimSpace(o.baseURL); v != "" {
		clone.Scan.BaseURL = v
	}
	if v := strings.TrimSpace(o.outDir); v != "" {
		expanded, err := config.ExpandPath(v)
		if err != nil {
			return nil, fmt.Errorf("resolve output directory: %w", err)
		}
		clone.Paths.OutDir = expanded
	}
	if cmd.Flags().Changed("delay") {
		if o.delay < 0 {
			return nil, errors.New("--delay must be >= 0")
		}
		clone.Download.DelaySeconds = o.delay
	}
	if err := clone.EnsureDirectories(); err != nil {
		return nil, err
	}
	return &clone, nil
}

// withPipelineEnv runs the shared preamble for pipeline commands: fold flag
// overrides into the config, run preflight checks, then hand over a logger
// and an open ledger.
func withPipelineEnv(ctx *commandContext, cmd *cobra.Command, o *runOverrides, needYtDlp bool, fn func(*runEnv) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	cfg, err = o.apply(cmd, cfg)
	if err != nil {
		return err
	}
	if err := preflight.Check(cfg, needYtDlp); err != nil {
		return err
	}
	ledgerPath, err := o.ledgerPath()
	if err != nil {
		return err
	}
	return ctx.withRunEnv(cfg, ledgerPath, fn)
}

// buildSource selects the configured listing adapter. The second return
// reports whether page checkpoints apply: scraped listing pages are stable
// once recorded, feed contents are not.
func buildSource(cfg *config.Config, logger *slog.Logger) (sites.Source, bool, error) {
	switch cfg.Scan.Source {
	case "", "podkaszt":
		return podkaszt.New(httpx.NewScrapeClient(cfg), cfg.Scan.BaseURL, logger), true, nil
	case "feeds":
		source, err := feeds.New(cfg, logger)
		if err != nil {
			return nil, false, err
		}
		return source, false, nil
	default:
		return nil, false, fmt.Errorf("unknown scan source %q (expected podkaszt or feeds)", cfg.Scan.Source)
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var overrides runOverrides
	var startPage, endPage, limit int
	var forceRescan, scanOnly, dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scan the listing, then download everything pending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipelineEnv(ctx, cmd, &overrides, false, func(env *runEnv) error {
				source, checkpoint, err := buildSource(env.cfg, env.logger)
				if err != nil {
					return err
				}
				opts := pipeline.Options{
					Scan: scan.Options{
						StartPage:       intOverride(cmd, "start-page", startPage, env.cfg.Scan.StartPage),
						EndPage:         intOverride(cmd, "end-page", endPage, env.cfg.Scan.EndPage),
						ForceRescan:     forceRescan,
						CheckpointPages: checkpoint,
					},
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

	cmd.Flags().StringVar(&overrides.baseURL, "base-url", "", "Listing base URL (overrides scan.base_url)")
	cmd.Flags().StringVar(&overrides.outDir, "out", "", "Output directory (overrides paths.out_dir)")
	cmd.Flags().StringVar(&overrides.ledger, "ledger", "", "Ledger database path (overrides the state directory default)")
	cmd.Flags().Float64Var(&overrides.delay, "delay", 0, "Seconds between requests (overrides download.delay_seconds)")
	cmd.Flags().IntVar(&startPage, "start-page", 0, "First listing page to scan (overrides scan.start_page)")
	cmd.Flags().IntVar(&endPage, "end-page", 0, "Last listing page to scan; 0 walks to the end (overrides scan.end_page)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Cap downloads this run; 0 means no cap (overrides download.limit)")
	cmd.Flags().BoolVar(&forceRescan, "force-rescan", false, "Refetch listing pages that are already checkpointed")
	cmd.Flags().BoolVar(&scanOnly, "scan-only", false, "Record discovered episodes without downloading")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List pending downloads without touching the network")

	return cmd
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var overrides runOverrides
	var startPage, endPage int
	var forceRescan bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Record listing episodes without downloading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipelineEnv(ctx, cmd, &overrides, false, func(env *runEnv) error {
				source, checkpoint, err := buildSource(env.cfg, env.logger)
				if err != nil {
					return err
				}
				opts := scan.Options{
					StartPage:       intOverride(cmd, "start-page", startPage, env.cfg.Scan.StartPage),
					EndPage:         intOverride(cmd, "end-page", endPage, env.cfg.Scan.EndPage),
					ForceRescan:     forceRescan,
					CheckpointPages: checkpoint,
				}
				runner := pipeline.NewRunner(env.cfg, env.store, source, env.logger)
				summary, err := runner.Scan(cmd.Context(), opts)
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), summary, pipeline.Options{ScanOnly: true})
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&overrides.baseURL, "base-url", "", "Listing base URL (overrides scan.base_url)")
	cmd.Flags().StringVar(&overrides.ledger, "ledger", "", "Ledger database path (overrides the state directory default)")
	cmd.Flags().Float64Var(&overrides.delay, "delay", 0, "Seconds between requests (overrides download.delay_seconds)")
	cmd.Flags().IntVar(&startPage, "start-page", 0, "First listing page to scan (overrides scan.start_page)")
	cmd.Flags().IntVar(&endPage, "end-page", 0, "Last listing page to scan; 0 walks to the end (overrides scan.end_page)")
	cmd.Flags().BoolVar(&forceRescan, "force-rescan", false, "Refetch listing pages that are already checkpointed")

	return cmd
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var overrides runOverrides
	var limit int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download pending episodes without scanning first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipelineEnv(ctx, cmd, &overrides, false, func(env *runEnv) error {
				source, _, err := buildSource(env.cfg, env.logger)
				if err != nil {
					return err
				}
				opts := pipeline.Options{
					Limit:  intOverride(cmd, "limit", limit, env.cfg.Download.Limit),
					DryRun: dryRun,
				}
				runner := pipeline.NewRunner(env.cfg, env.store, source, env.logger)
				summary, err := runner.Download(cmd.Context(), opts)
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
	cmd.Flags().Float64Var(&overrides.delay, "delay", 0, "Seconds between requests (overrides download.delay_seconds)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Cap downloads this run; 0 means no cap (overrides download.limit)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List pending downloads without touching the network")

	return cmd
}
