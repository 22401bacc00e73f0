package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"podhaul/internal/config"
	"podhaul/internal/fetch"
	"podhaul/internal/httpx"
	"podhaul/internal/ledger"
	"podhaul/internal/logging"
	"podhaul/internal/notifications"
	"podhaul/internal/pacing"
	"podhaul/internal/resolve"
	"podhaul/internal/safename"
	"podhaul/internal/scan"
	"podhaul/internal/sites"
)

// shrinkAttempts bounds the filename shrink-and-retry loop.
const shrinkAttempts = 3

// Options control one run.
type Options struct {
	Scan     scan.Options
	ScanOnly bool
	Limit    int  // max episodes to download this run; 0 means no cap
	DryRun   bool // list pending work without touching the network
}

// Summary aggregates what one run did. Adopted counts downloads satisfied by
// a file already on disk; those episodes are included in Downloaded but add
// no bytes.
type Summary struct {
	Scan       *scan.Summary
	Processed  int
	Downloaded int
	Adopted    int
	NoMedia    int
	Failed     int
	Bytes      int64
	Duration   time.Duration
}

// Runner executes scan and download phases for one source with a shared
// politeness pacer and a single-instance lock.
type Runner struct {
	cfg        *config.Config
	store      *ledger.Store
	source     sites.Source
	resolver   *resolve.Resolver
	fetcher    *fetch.Fetcher
	encoder    safename.Encoder
	pacer      *pacing.Pacer
	notifier   notifications.Service
	logger     *slog.Logger
	baseLogger *slog.Logger
	runID      string

	lockPath string
	lock     *flock.Flock
}

// NewRunner wires a Runner for source. source may be nil when the Runner is
// used for links mode only.
func NewRunner(cfg *config.Config, store *ledger.Store, source sites.Source, logger *slog.Logger) *Runner {
	return NewRunnerWithNotifier(cfg, store, source, logger, notifications.NewService(cfg))
}

// NewRunnerWithNotifier wires a Runner with a custom notifier (used in tests).
func NewRunnerWithNotifier(cfg *config.Config, store *ledger.Store, source sites.Source, logger *slog.Logger, notifier notifications.Service) *Runner {
	runID := uuid.NewString()
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.FieldRunID, runID)

	pacer := pacing.New(cfg.Delay(), cfg.Download.Jitter)
	idleTimeout := time.Duration(cfg.HTTP.IdleReadTimeout) * time.Second
	lockPath := cfg.LockPath()

	return &Runner{
		cfg:        cfg,
		store:      store,
		source:     source,
		resolver:   resolve.New(store, source, pacer, cfg.HTTP.UserAgent, logger),
		fetcher:    fetch.New(httpx.NewStreamClient(cfg), idleTimeout, logger),
		encoder:    safename.Default(),
		pacer:      pacer,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		baseLogger: logger,
		runID:      runID,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
}

// RunID identifies this Runner's run in logs.
func (r *Runner) RunID() string { return r.runID }

// Run scans the listing and then downloads everything pending.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	release, err := r.acquireLock()
	if err != nil {
		return nil, err
	}
	defer release()

	summary := &Summary{}
	start := time.Now()

	summary.Scan, err = r.scanPhase(ctx, opts.Scan)
	if err != nil {
		summary.Duration = time.Since(start)
		return summary, err
	}
	if !opts.ScanOnly {
		err = r.downloadPhase(ctx, summary, opts)
	}
	summary.Duration = time.Since(start)
	return summary, err
}

// Scan runs the enumeration phase only.
func (r *Runner) Scan(ctx context.Context, opts scan.Options) (*Summary, error) {
	release, err := r.acquireLock()
	if err != nil {
		return nil, err
	}
	defer release()

	summary := &Summary{}
	start := time.Now()
	summary.Scan, err = r.scanPhase(ctx, opts)
	summary.Duration = time.Since(start)
	return summary, err
}

// Download downloads pending episodes without scanning first.
func (r *Runner) Download(ctx context.Context, opts Options) (*Summary, error) {
	release, err := r.acquireLock()
	if err != nil {
		return nil, err
	}
	defer release()

	summary := &Summary{}
	start := time.Now()
	err = r.downloadPhase(ctx, summary, opts)
	summary.Duration = time.Since(start)
	return summary, err
}

// acquireLock takes the single-instance lock, failing fast when another
// podhaul process holds it.
func (r *Runner) acquireLock() (func(), error) {
	ok, err := r.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another podhaul instance holds %s", r.lockPath)
	}
	return func() {
		if err := r.lock.Unlock(); err != nil {
			r.logger.Warn("release run lock failed", "error", err)
		}
	}, nil
}

func (r *Runner) scanPhase(ctx context.Context, opts scan.Options) (*scan.Summary, error) {
	if r.source == nil {
		return nil, errors.New("no listing source configured")
	}
	driver := scan.New(r.store, r.source, r.pacer, r.baseLogger)
	summary, err := driver.Run(ctx, opts)
	if err != nil && !isCanceled(err) {
		err = Wrap(ErrEnumeration, err)
	}
	return summary, err
}

func (r *Runner) downloadPhase(ctx context.Context, summary *Summary, opts Options) error {
	episodes, err := r.store.Pending(ctx, opts.Limit)
	if err != nil {
		return fmt.Errorf("list pending episodes: %w", err)
	}
	if len(episodes) == 0 {
		r.logger.Info("nothing pending")
		return nil
	}

	if opts.DryRun {
		for _, episode := range episodes {
			r.logger.Info("would download",
				logging.FieldEpisodeKey, episode.Key,
				"title", episode.DisplayTitle(),
				"status", string(episode.Status),
				"media_url", episode.MediaURL,
			)
		}
		summary.Processed = len(episodes)
		return nil
	}

	r.notify(func() error { return r.notifier.RunStarted(ctx, r.sourceName(), len(episodes)) })
	started := time.Now()

	for i, episode := range episodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			if err := r.pacer.Wait(ctx); err != nil {
				return err
			}
		}

		summary.Processed++
		written, adopted, err := r.downloadOne(ctx, episode)
		if err != nil {
			if isCanceled(err) {
				return err
			}
			r.failEpisode(ctx, summary, episode, err)
			continue
		}

		summary.Downloaded++
		summary.Bytes += written
		if adopted {
			summary.Adopted++
		}
	}

	r.logger.Info("download phase finished",
		"processed", summary.Processed,
		"downloaded", summary.Downloaded,
		"adopted", summary.Adopted,
		"no_media", summary.NoMedia,
		"failed", summary.Failed,
		"bytes", summary.Bytes,
	)
	r.notify(func() error {
		return r.notifier.RunCompleted(ctx, r.sourceName(), summary.Downloaded, summary.NoMedia, summary.Failed, summary.Bytes, time.Since(started))
	})
	return nil
}

// downloadOne resolves and transfers a single episode. adopted is true when
// the final file was already on disk and only the ledger needed updating.
func (r *Runner) downloadOne(ctx context.Context, episode *ledger.Episode) (written int64, adopted bool, err error) {
	mediaURL, probe, err := r.resolver.Resolve(ctx, episode)
	if err != nil {
		if isCanceled(err) {
			return 0, false, err
		}
		if errors.Is(err, resolve.ErrNoMedia) {
			return 0, false, Wrap(ErrResolution, err)
		}
		return 0, false, Wrap(ErrTransfer, err)
	}
	r.logger.Debug("episode resolved", logging.FieldEpisodeKey, episode.Key, "media_url", mediaURL, "probe", probe.Summary())

	destDir := r.cfg.Paths.OutDir
	if episode.Subdir != "" {
		destDir = filepath.Join(destDir, episode.Subdir)
	}
	stem := episodeStem(episode)
	tail := " [" + ledger.ShortKey(episode.Key) + "]" + mediaExt(mediaURL)

	name, err := r.encoder.Encode(destDir, stem, tail)
	if err != nil {
		return 0, false, Wrap(ErrNaming, err)
	}
	destPath := filepath.Join(destDir, name)

	if info, serr := os.Stat(destPath); serr == nil && info.Size() > 0 {
		r.logger.Info("file already archived", logging.FieldEpisodeKey, episode.Key, "filename", name)
		if err := r.markDownloaded(ctx, episode, mediaURL, destPath); err != nil {
			return 0, false, err
		}
		return 0, true, nil
	}

	written, err = r.fetcher.Fetch(ctx, mediaURL, destPath, fetch.WithReferer(episode.EpisodeURL))
	if err != nil && errors.Is(err, syscall.ENAMETOOLONG) {
		written, destPath, err = r.fetchShrunk(ctx, episode, mediaURL, destDir, stem, tail, err)
	}
	if err != nil {
		if isCanceled(err) || errors.Is(err, ErrNaming) {
			return 0, false, err
		}
		return 0, false, Wrap(ErrTransfer, err)
	}

	if err := r.markDownloaded(ctx, episode, mediaURL, destPath); err != nil {
		return written, false, err
	}
	r.logger.Info("episode downloaded",
		logging.FieldEpisodeKey, episode.Key,
		"filename", filepath.Base(destPath),
		"bytes", written,
	)
	return written, false, nil
}

// fetchShrunk retries the transfer with progressively shorter stems after
// the filesystem rejected the name.
func (r *Runner) fetchShrunk(ctx context.Context, episode *ledger.Episode, mediaURL, destDir, stem, tail string, cause error) (int64, string, error) {
	budget := r.encoder.StemBudget(destDir, tail)
	lastErr := cause
	for attempt := 1; attempt <= shrinkAttempts; attempt++ {
		budget /= 2
		name, err := r.encoder.EncodeBounded(destDir, stem, tail, budget)
		if err != nil {
			return 0, "", Wrap(ErrNaming, err)
		}
		destPath := filepath.Join(destDir, name)
		r.logger.Info("retrying with shorter filename",
			logging.FieldEpisodeKey, episode.Key,
			"attempt", attempt,
			"filename", name,
		)

		written, err := r.fetcher.Fetch(ctx, mediaURL, destPath, fetch.WithReferer(episode.EpisodeURL))
		if err == nil {
			return written, destPath, nil
		}
		if !errors.Is(err, syscall.ENAMETOOLONG) {
			return 0, "", err
		}
		lastErr = err
	}
	return 0, "", Wrap(ErrNaming, lastErr)
}

func (r *Runner) markDownloaded(ctx context.Context, episode *ledger.Episode, mediaURL, destPath string) error {
	relName, err := filepath.Rel(r.cfg.Paths.OutDir, destPath)
	if err != nil {
		relName = filepath.Base(destPath)
	}
	updated, err := r.store.Mark(ctx, episode.Key, ledger.StatusDownloaded,
		ledger.WithMediaURL(mediaURL), ledger.WithFilename(relName))
	if err != nil {
		return fmt.Errorf("record download: %w", err)
	}
	if !updated {
		r.logger.Warn("mark on unknown episode key", logging.FieldEpisodeKey, episode.Key)
	}
	return nil
}

// failEpisode records a per-episode failure and keeps the run going.
func (r *Runner) failEpisode(ctx context.Context, summary *Summary, episode *ledger.Episode, cause error) {
	status := FailureStatus(cause)
	if status == ledger.StatusNoMedia {
		summary.NoMedia++
		r.logger.Info("no media for episode",
			logging.FieldEpisodeKey, episode.Key,
			"title", episode.DisplayTitle(),
			"detail", cause.Error(),
		)
	} else {
		summary.Failed++
		r.logger.Warn("episode failed",
			logging.FieldEpisodeKey, episode.Key,
			"title", episode.DisplayTitle(),
			"error", cause.Error(),
		)
		r.notify(func() error { return r.notifier.EpisodeFailed(ctx, episode.DisplayTitle(), cause) })
	}

	updated, err := r.store.Mark(ctx, episode.Key, status, ledger.WithError(cause.Error()))
	if err != nil {
		r.logger.Error("record failure in ledger", logging.FieldEpisodeKey, episode.Key, "error", err)
		return
	}
	if !updated {
		r.logger.Warn("mark on unknown episode key", logging.FieldEpisodeKey, episode.Key)
	}
}

func (r *Runner) notify(send func() error) {
	if err := send(); err != nil {
		r.logger.Warn("notification failed", "error", err)
	}
}

func (r *Runner) sourceName() string {
	if r.source == nil {
		return "links"
	}
	return r.source.Name()
}

// episodeStem builds the filename stem "title - producer"; either half may
// be missing.
func episodeStem(episode *ledger.Episode) string {
	title := strings.TrimSpace(episode.Title)
	producer := strings.TrimSpace(episode.Producer)
	switch {
	case title != "" && producer != "":
		return title + " - " + producer
	case title != "":
		return title
	default:
		return producer
	}
}

// mediaExt picks the archive extension for a media URL. Unknown or
// extension-less URLs default to .mp3, the dominant podcast format.
func mediaExt(mediaURL string) string {
	if ext := sites.AudioExt(mediaURL); ext != "" {
		return ext
	}
	return ".mp3"
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
