package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"podhaul/internal/config"
	"podhaul/internal/feedexport"
	"podhaul/internal/ledger"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var baseURL string
	var maxItems int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an RSS feed of the downloaded archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *ledger.Store) error {
				episodes, err := store.List(cmd.Context(), ledger.StatusDownloaded)
				if err != nil {
					return err
				}

				opts := feedexport.Options{
					BaseURL:     cfg.Export.BaseURL,
					Title:       cfg.Export.Title,
					Description: cfg.Export.Description,
					OutDir:      cfg.Paths.OutDir,
					MaxItems:    intOverride(cmd, "max-items", maxItems, cfg.Export.MaxItems),
				}
				if v := strings.TrimSpace(baseURL); v != "" {
					opts.BaseURL = v
				}

				feed, err := feedexport.Build(episodes, opts)
				if err != nil {
					return err
				}

				target := strings.TrimSpace(outPath)
				if target == "" {
					target = filepath.Join(cfg.Paths.OutDir, "feed.xml")
				} else {
					expanded, err := config.ExpandPath(target)
					if err != nil {
						return fmt.Errorf("resolve feed path: %w", err)
					}
					target = expanded
				}
				if err := os.WriteFile(target, feed, 0o644); err != nil {
					return fmt.Errorf("write feed: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Wrote RSS feed to %s (%s)\n", target, formatBytes(int64(len(feed))))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "Destination file (default: <out_dir>/feed.xml)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Public URL the archive is served from (overrides export.base_url)")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "Cap feed items, newest first; 0 includes everything (overrides export.max_items)")

	return cmd
}
