// Package feeds adapts a subscription file of RSS feeds to the sites
// contracts. Each feed is its own listing page, so the regular scan driver
// can walk a feed list the same way it walks a scraped archive. Unlike the
// scraped listing, feed entries already know their media URL, so episodes
// from this source skip detail-page resolution entirely.
package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"

	"podhaul/internal/config"
	"podhaul/internal/ledger"
	"podhaul/internal/logging"
	"podhaul/internal/safename"
	"podhaul/internal/sites"
)

// maxFolderBytes bounds the per-feed directory name.
const maxFolderBytes = 120

// Entry is one subscription line from the feeds file.
type Entry struct {
	Name string
	URL  string
}

// ParseFile reads a feeds file: one feed per line, either "Name|URL" or a
// bare URL. Blank lines and # comments are ignored.
func ParseFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}

	var entries []Entry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if name, feedURL, ok := strings.Cut(line, "|"); ok {
			entries = append(entries, Entry{
				Name: strings.TrimSpace(name),
				URL:  strings.TrimSpace(feedURL),
			})
			continue
		}
		entries = append(entries, Entry{URL: line})
	}
	return entries, nil
}

// Source walks a fixed list of RSS feeds, one feed per listing page.
type Source struct {
	parser  *gofeed.Parser
	entries []Entry
	outDir  string
	logger  *slog.Logger
}

// New builds a Source from the feeds file named in the configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Source, error) {
	path := strings.TrimSpace(cfg.Paths.FeedsFile)
	if path == "" {
		return nil, errors.New("feeds mode requires a feeds file (paths.feeds_file)")
	}
	entries, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("feeds file %s lists no feeds", path)
	}

	parser := gofeed.NewParser()
	if cfg.HTTP.UserAgent != "" {
		parser.UserAgent = cfg.HTTP.UserAgent
	}
	return &Source{
		parser:  parser,
		entries: entries,
		outDir:  cfg.Paths.OutDir,
		logger:  logging.NewComponentLogger(logger, "feeds"),
	}, nil
}

// Name implements sites.Source.
func (s *Source) Name() string { return "feeds" }

// Len returns the number of subscribed feeds.
func (s *Source) Len() int { return len(s.entries) }

// ListPage implements sites.Source: page N is the Nth feed from the file.
// Entries without any media URL are skipped. A metadata snapshot is written
// into the feed's output directory after each successful parse.
func (s *Source) ListPage(ctx context.Context, page int) (*sites.Page, error) {
	if page < 1 || page > len(s.entries) {
		return nil, sites.ErrNoMorePages
	}
	entry := s.entries[page-1]

	feed, err := s.parser.ParseURLWithContext(entry.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", entry.URL, err)
	}

	feedTitle := strings.TrimSpace(feed.Title)
	if feedTitle == "" {
		feedTitle = entry.Name
	}
	if feedTitle == "" {
		feedTitle = entry.URL
	}
	producer := entry.Name
	if producer == "" {
		producer = feedTitle
	}
	folder := folderName(producer)

	seen := make(map[string]struct{})
	var candidates []sites.Candidate
	for _, item := range feed.Items {
		mediaURL := BestEnclosure(item)
		if mediaURL == "" {
			continue
		}
		key := ledger.KeyFromFeedEntry(entry.URL, item.GUID, mediaURL, item.Link, item.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		pubDate := ""
		if item.PublishedParsed != nil {
			pubDate = item.PublishedParsed.UTC().Format("2006-01-02")
		}
		candidates = append(candidates, sites.Candidate{
			Key:         key,
			Title:       strings.TrimSpace(item.Title),
			Producer:    producer,
			PubDate:     pubDate,
			EpisodeURL:  strings.TrimSpace(item.Link),
			MediaURL:    mediaURL,
			Subdir:      folder,
		})
	}

	if err := s.writeMeta(folder, entry.URL, feedTitle, len(feed.Items)); err != nil {
		return nil, err
	}
	s.logger.Debug("feed parsed", "url", entry.URL, "entries", len(feed.Items), "with_media", len(candidates))

	return &sites.Page{Number: page, ListingURL: entry.URL, Candidates: candidates}, nil
}

type feedMeta struct {
	FeedURL   string `json:"feed_url"`
	Title     string `json:"title"`
	Entries   int    `json:"entries"`
	FetchedAt string `json:"fetched_at"`
}

func (s *Source) writeMeta(folder, feedURL, title string, entries int) error {
	dir := filepath.Join(s.outDir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure feed directory: %w", err)
	}
	data, err := json.MarshalIndent(feedMeta{
		FeedURL:   feedURL,
		Title:     title,
		Entries:   entries,
		FetchedAt: time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode feed metadata: %w", err)
	}
	path := filepath.Join(dir, "feed_meta.json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write feed metadata: %w", err)
	}
	return nil
}

// BestEnclosure returns a feed entry's media URL: the first enclosure with
// a URL, else the first plain link that looks like an audio file (minimal
// feeds sometimes publish the media as the item link). Shared with the
// resolver's feed-fallback path.
func BestEnclosure(item *gofeed.Item) string {
	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}
		if mediaURL := strings.TrimSpace(enclosure.URL); mediaURL != "" {
			return mediaURL
		}
	}
	for _, link := range item.Links {
		link = strings.TrimSpace(link)
		if sites.IsAudioURL(link) {
			return link
		}
	}
	return ""
}

// folderName maps a feed's display name onto a bounded directory name.
func folderName(name string) string {
	cleaned := safename.Sanitize(name)
	if cleaned == "" {
		cleaned = "feed"
	}
	if len(cleaned) <= maxFolderBytes {
		return cleaned
	}
	cut := cleaned[:maxFolderBytes]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return strings.TrimRight(cut, " ._-")
}
