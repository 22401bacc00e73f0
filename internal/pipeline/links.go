package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"podhaul/internal/ledger"
	"podhaul/internal/logging"
	"podhaul/internal/services/ytdlp"
)

// Links downloads media-platform page URLs from a links file through the
// provided downloader. Links are keyed like any other episode, so finished
// ones are skipped on re-runs and failures stay visible in the ledger.
func (r *Runner) Links(ctx context.Context, path string, downloader ytdlp.Downloader, opts Options) (*Summary, error) {
	release, err := r.acquireLock()
	if err != nil {
		return nil, err
	}
	defer release()

	summary := &Summary{}
	start := time.Now()
	err = r.linksPhase(ctx, summary, path, downloader, opts)
	summary.Duration = time.Since(start)
	return summary, err
}

func (r *Runner) linksPhase(ctx context.Context, summary *Summary, path string, downloader ytdlp.Downloader, opts Options) error {
	urls, err := ytdlp.ReadLinksFile(path)
	if err != nil {
		return err
	}

	var pending []string
	for _, link := range urls {
		key := ledger.KeyFromURL(link)
		terminal, err := r.store.IsTerminal(ctx, key)
		if err != nil {
			return fmt.Errorf("check link state: %w", err)
		}
		if terminal {
			r.logger.Debug("link already archived", logging.FieldEpisodeKey, key, "url", link)
			continue
		}
		if _, err := r.store.Upsert(ctx, &ledger.Episode{
			Key:        key,
			EpisodeURL: link,
			Source:     "links",
		}); err != nil {
			return fmt.Errorf("record link %s: %w", ledger.ShortKey(key), err)
		}
		pending = append(pending, link)
	}
	if opts.Limit > 0 && len(pending) > opts.Limit {
		pending = pending[:opts.Limit]
	}
	if len(pending) == 0 {
		r.logger.Info("no links to fetch", "path", path)
		return nil
	}

	if opts.DryRun {
		for _, link := range pending {
			r.logger.Info("would fetch link", logging.FieldEpisodeKey, ledger.KeyFromURL(link), "url", link)
		}
		summary.Processed = len(pending)
		return nil
	}

	r.notify(func() error { return r.notifier.RunStarted(ctx, "links", len(pending)) })
	started := time.Now()

	for i, link := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			if err := r.pacer.Wait(ctx); err != nil {
				return err
			}
		}

		summary.Processed++
		episode := &ledger.Episode{Key: ledger.KeyFromURL(link), EpisodeURL: link}

		result, err := downloader.Download(ctx, link)
		if err != nil {
			if isCanceled(err) {
				return err
			}
			r.failEpisode(ctx, summary, episode, Wrap(ErrTransfer, err))
			continue
		}

		var marks []ledger.MarkOption
		if result != nil && result.Filename != "" {
			if info, serr := os.Stat(result.Filename); serr == nil {
				summary.Bytes += info.Size()
			}
			marks = append(marks, ledger.WithFilename(r.relToOut(result.Filename)))
		}
		updated, err := r.store.Mark(ctx, episode.Key, ledger.StatusDownloaded, marks...)
		if err != nil {
			r.failEpisode(ctx, summary, episode, fmt.Errorf("record download: %w", err))
			continue
		}
		if !updated {
			r.logger.Warn("mark on unknown episode key", logging.FieldEpisodeKey, episode.Key)
		}
		summary.Downloaded++
		r.logger.Info("link downloaded", logging.FieldEpisodeKey, episode.Key, "url", link)
	}

	r.logger.Info("links finished",
		"processed", summary.Processed,
		"downloaded", summary.Downloaded,
		"failed", summary.Failed,
		"bytes", summary.Bytes,
	)
	r.notify(func() error {
		return r.notifier.RunCompleted(ctx, "links", summary.Downloaded, summary.NoMedia, summary.Failed, summary.Bytes, time.Since(started))
	})
	return nil
}

// relToOut rewrites an absolute download path relative to the output
// directory for ledger storage, falling back to the bare filename for paths
// outside it.
func (r *Runner) relToOut(path string) string {
	rel, err := filepath.Rel(r.cfg.Paths.OutDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(path)
	}
	return rel
}
