// Package resolve turns queued episodes into direct media URLs.
//
// Resolution runs a fixed ladder: the media URL already recorded in the
// ledger, the episode page's own audio candidates, then the producer's RSS
// feed matched by normalized title. Feed lookups are memoised in the
// ledger so each producer page is visited once. "Nothing found" and
// "transport failed" stay distinct outcomes throughout: only the former is
// ErrNoMedia, so a flaky network can never mislabel an episode as having
// no media.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"

	"podhaul/internal/ledger"
	"podhaul/internal/logging"
	"podhaul/internal/pacing"
	"podhaul/internal/sites"
	"podhaul/internal/sites/feeds"
)

// ErrNoMedia reports that every resolution step ran and came up empty.
// The pipeline maps it to the no_media status.
var ErrNoMedia = errors.New("no media found")

// Probe records what one resolution attempt tried and saw. It is scoped
// to a single Resolve call, so failure explanations can name exactly the
// steps that ran without any state shared across episodes.
type Probe struct {
	Steps      []string
	Candidates []string
}

func (p *Probe) note(step string) {
	p.Steps = append(p.Steps, step)
}

// Summary renders the probe for logs and no_media explanations.
func (p *Probe) Summary() string {
	if len(p.Steps) == 0 {
		return "nothing tried"
	}
	return strings.Join(p.Steps, "; ")
}

// Resolver resolves media URLs for one source, caching producer feed
// lookups in the ledger.
type Resolver struct {
	store    *ledger.Store
	episodes sites.EpisodeSource
	pacer    *pacing.Pacer
	parser   *gofeed.Parser
	logger   *slog.Logger
}

// New builds a Resolver for source. Sources without detail pages (the
// feeds adapter) simply never get past the recorded-media step.
func New(store *ledger.Store, source sites.Source, pacer *pacing.Pacer, userAgent string, logger *slog.Logger) *Resolver {
	parser := gofeed.NewParser()
	if userAgent != "" {
		parser.UserAgent = userAgent
	}
	episodes, _ := source.(sites.EpisodeSource)
	return &Resolver{
		store:    store,
		episodes: episodes,
		pacer:    pacer,
		parser:   parser,
		logger:   logging.NewComponentLogger(logger, "resolve"),
	}
}

// Resolve finds the direct media URL for episode. A nil error means the
// returned URL is usable; ErrNoMedia (carrying the probe summary) means
// every step ran clean and found nothing. Any other error is a transport
// or persistence failure and leaves the episode retryable.
func (r *Resolver) Resolve(ctx context.Context, episode *ledger.Episode) (string, *Probe, error) {
	probe := &Probe{}

	if mediaURL := strings.TrimSpace(episode.MediaURL); mediaURL != "" {
		probe.note("recorded media_url")
		r.logger.Debug("media already recorded", logging.FieldEpisodeKey, episode.Key, "media_url", mediaURL)
		return mediaURL, probe, nil
	}

	if r.episodes != nil && strings.TrimSpace(episode.EpisodeURL) != "" {
		if err := r.pacer.Wait(ctx); err != nil {
			return "", probe, err
		}
		urls, err := r.episodes.EpisodeMedia(ctx, episode.EpisodeURL)
		if err != nil {
			return "", probe, fmt.Errorf("episode page: %w", err)
		}
		probe.note(fmt.Sprintf("episode page: %d audio candidates", len(urls)))
		probe.Candidates = append(probe.Candidates, urls...)
		if len(urls) > 0 {
			r.logger.Debug("media from episode page", logging.FieldEpisodeKey, episode.Key, "media_url", urls[0], "candidates", len(urls))
			return urls[0], probe, nil
		}
	} else {
		probe.note("episode page: not available")
	}

	mediaURL, err := r.resolveViaFeed(ctx, episode, probe)
	if err != nil {
		return "", probe, err
	}
	if mediaURL != "" {
		r.logger.Debug("media from producer feed", logging.FieldEpisodeKey, episode.Key, "media_url", mediaURL)
		return mediaURL, probe, nil
	}

	r.logger.Debug("no media found", logging.FieldEpisodeKey, episode.Key, "probe", probe.Summary())
	return "", probe, fmt.Errorf("%w (%s)", ErrNoMedia, probe.Summary())
}

func (r *Resolver) resolveViaFeed(ctx context.Context, episode *ledger.Episode, probe *Probe) (string, error) {
	feedURL, err := r.feedURL(ctx, episode, probe)
	if err != nil || feedURL == "" {
		return "", err
	}

	if err := r.pacer.Wait(ctx); err != nil {
		return "", err
	}
	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return "", fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	enclosure := matchEnclosure(feed, episode.Title)
	if enclosure == "" {
		probe.note(fmt.Sprintf("feed: no item matched %q", episode.Title))
		return "", nil
	}
	probe.note("feed: matched enclosure")
	probe.Candidates = append(probe.Candidates, enclosure)
	return enclosure, nil
}

// feedURL returns the producer's feed location, consulting the ledger
// cache first. Failed discoveries are cached as errors and retried on the
// next run; a producer that advertises no feed is cached as a durable
// negative so the page is not refetched every episode.
func (r *Resolver) feedURL(ctx context.Context, episode *ledger.Episode, probe *Probe) (string, error) {
	producerURL := strings.TrimSpace(episode.ProducerURL)
	if producerURL == "" {
		probe.note("feed: no producer page")
		return "", nil
	}

	cached, err := r.store.FeedForProducer(ctx, producerURL)
	if err != nil {
		return "", err
	}
	if cached != nil {
		switch cached.Status {
		case ledger.FeedFound:
			probe.note("feed: cached " + cached.RSSURL)
			return cached.RSSURL, nil
		case ledger.FeedNone:
			probe.note("feed: cached none")
			return "", nil
		}
	}

	if r.episodes == nil {
		probe.note("feed: discovery not available")
		return "", nil
	}

	if err := r.pacer.Wait(ctx); err != nil {
		return "", err
	}
	feedURL, err := r.episodes.ProducerFeed(ctx, producerURL)
	if err != nil {
		r.saveFeed(ctx, &ledger.FeedRecord{ProducerURL: producerURL, Status: ledger.FeedError, Error: err.Error()})
		return "", fmt.Errorf("producer page: %w", err)
	}

	record := &ledger.FeedRecord{ProducerURL: producerURL, RSSURL: feedURL, Status: ledger.FeedFound}
	if feedURL == "" {
		record.Status = ledger.FeedNone
		probe.note("feed: none advertised")
	} else {
		probe.note("feed: discovered " + feedURL)
	}
	r.saveFeed(ctx, record)
	return feedURL, nil
}

func (r *Resolver) saveFeed(ctx context.Context, record *ledger.FeedRecord) {
	if err := r.store.SaveFeed(ctx, record); err != nil {
		r.logger.Warn("feed cache write failed", "producer_url", record.ProducerURL, "error", err)
	}
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9 ]+`)

// normTitle maps a title onto the loose alphabet used for feed matching:
// lowercase, non-alphanumerics stripped, whitespace collapsed.
func normTitle(value string) string {
	value = nonAlnumRe.ReplaceAllString(strings.ToLower(value), "")
	return strings.Join(strings.Fields(value), " ")
}

// matchEnclosure picks the feed item for a title: exact normalized match
// first, containment either way second. An untitled episode resolves only
// when the feed has exactly one usable item; a titled episode that matches
// nothing resolves to nothing rather than to an arbitrary item, so a stale
// feed cannot attach the wrong audio.
func matchEnclosure(feed *gofeed.Feed, title string) string {
	type itemMedia struct {
		norm      string
		enclosure string
	}

	var usable []itemMedia
	for _, item := range feed.Items {
		enclosure := feeds.BestEnclosure(item)
		if enclosure == "" {
			continue
		}
		usable = append(usable, itemMedia{normTitle(item.Title), enclosure})
	}

	want := normTitle(title)
	if want == "" {
		if len(usable) == 1 {
			return usable[0].enclosure
		}
		return ""
	}

	for _, candidate := range usable {
		if candidate.norm != "" && candidate.norm == want {
			return candidate.enclosure
		}
	}
	for _, candidate := range usable {
		if candidate.norm == "" {
			continue
		}
		if strings.Contains(candidate.norm, want) || strings.Contains(want, candidate.norm) {
			return candidate.enclosure
		}
	}
	return ""
}
