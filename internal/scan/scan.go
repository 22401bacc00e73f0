// Package scan walks a source's listing pages and feeds the ledger.
//
// The driver is source-agnostic: it only sequences pages, upserts what
// they contain, and records checkpoints. A page's cursor is written only
// after every episode stub on it landed in the ledger, so an aborted run
// can safely refetch the page it died on without skipping or duplicating
// episodes.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"podhaul/internal/ledger"
	"podhaul/internal/logging"
	"podhaul/internal/pacing"
	"podhaul/internal/sites"
)

// Options bound and shape one scan.
type Options struct {
	// StartPage is the first page to visit (minimum 1).
	StartPage int
	// EndPage is the last page to visit; 0 walks until the listing ends.
	EndPage int
	// ForceRescan refetches pages that already have cursors.
	ForceRescan bool
	// CheckpointPages skips pages whose cursor is already recorded. The
	// scraped listing sets it; feeds mode leaves it off because feed
	// contents change between runs.
	CheckpointPages bool
}

// Summary reports what one scan did.
type Summary struct {
	PagesScanned int
	PagesSkipped int
	EpisodesSeen int
	EpisodesNew  int
}

// Driver walks one source.
type Driver struct {
	store  *ledger.Store
	source sites.Source
	pacer  *pacing.Pacer
	logger *slog.Logger
}

// New builds a Driver for source.
func New(store *ledger.Store, source sites.Source, pacer *pacing.Pacer, logger *slog.Logger) *Driver {
	return &Driver{
		store:  store,
		source: source,
		pacer:  pacer,
		logger: logging.NewComponentLogger(logger, "scan"),
	}
}

// Run scans pages until EndPage, the end of the listing, or a failure.
// Listing failures abort the whole scan: page numbering is the only way to
// navigate, so skipping a broken page would risk missed or duplicated
// episodes on resume. Pages processed before the failure keep their
// checkpoints either way.
func (d *Driver) Run(ctx context.Context, opts Options) (*Summary, error) {
	start := opts.StartPage
	if start < 1 {
		start = 1
	}

	summary := &Summary{}
	sourceName := d.source.Name()
	fetches := 0

	for page := start; opts.EndPage == 0 || page <= opts.EndPage; page++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if opts.CheckpointPages && !opts.ForceRescan {
			scanned, err := d.store.PageScanned(ctx, sourceName, page)
			if err != nil {
				return summary, err
			}
			if scanned {
				d.logger.Debug("page already scanned", logging.FieldSource, sourceName, logging.FieldPage, page)
				summary.PagesSkipped++
				continue
			}
		}

		if fetches > 0 {
			if err := d.pacer.Wait(ctx); err != nil {
				return summary, err
			}
		}
		fetches++

		listing, err := d.source.ListPage(ctx, page)
		if errors.Is(err, sites.ErrNoMorePages) {
			d.logger.Info("listing exhausted", logging.FieldSource, sourceName, logging.FieldPage, page)
			break
		}
		if err != nil {
			return summary, fmt.Errorf("page %d: %w", page, err)
		}

		newCount := 0
		for _, candidate := range listing.Candidates {
			created, err := d.store.Upsert(ctx, &ledger.Episode{
				Key:         candidate.Key,
				EpisodeURL:  candidate.EpisodeURL,
				ProducerURL: candidate.ProducerURL,
				Title:       candidate.Title,
				Producer:    candidate.Producer,
				PubDate:     candidate.PubDate,
				Source:      sourceName,
				Subdir:      candidate.Subdir,
				MediaURL:    candidate.MediaURL,
			})
			if err != nil {
				return summary, fmt.Errorf("record episode %s: %w", ledger.ShortKey(candidate.Key), err)
			}
			if created {
				newCount++
			}
		}

		if err := d.store.MarkPageScanned(ctx, sourceName, page, listing.ListingURL); err != nil {
			return summary, fmt.Errorf("checkpoint page %d: %w", page, err)
		}

		summary.PagesScanned++
		summary.EpisodesSeen += len(listing.Candidates)
		summary.EpisodesNew += newCount
		d.logger.Info("page scanned",
			logging.FieldSource, sourceName,
			logging.FieldPage, page,
			"episodes", len(listing.Candidates),
			"new", newCount,
		)
	}

	d.logger.Info("scan finished",
		logging.FieldSource, sourceName,
		"pages", summary.PagesScanned,
		"skipped", summary.PagesSkipped,
		"seen", summary.EpisodesSeen,
		"new", summary.EpisodesNew,
	)
	return summary, nil
}
