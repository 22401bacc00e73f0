// Package feedexport renders the downloaded archive as an RSS feed so any
// podcast client can replay it. Only the ledger is consulted for item
// metadata; the output directory is only touched to read enclosure sizes.
package feedexport

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/eduncan911/podcast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"podhaul/internal/ledger"
)

// Options control feed generation.
type Options struct {
	// BaseURL is the public URL prefix under which the output directory is
	// served. Required.
	BaseURL string
	// Title and Description fill the channel header.
	Title       string
	Description string
	// OutDir is consulted for enclosure sizes. Items whose file is missing
	// are kept with a zero length rather than dropped.
	OutDir string
	// MaxItems caps the feed to the newest downloads. 0 means every
	// downloaded episode.
	MaxItems int
}

// Build renders downloaded episodes as RSS 2.0 with iTunes extensions, one
// item per episode, newest completion first. Episodes that are not
// downloaded or have no recorded filename are skipped.
func Build(episodes []*ledger.Episode, opts Options) ([]byte, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("export base url not configured")
	}

	items := make([]*ledger.Episode, 0, len(episodes))
	for _, e := range episodes {
		if e.Status == ledger.StatusDownloaded && strings.TrimSpace(e.Filename) != "" {
			items = append(items, e)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return completedAt(items[i]).After(completedAt(items[j]))
	})
	if opts.MaxItems > 0 && len(items) > opts.MaxItems {
		items = items[:opts.MaxItems]
	}

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "Podhaul Archive"
	}
	description := strings.TrimSpace(opts.Description)
	if description == "" {
		description = "Episodes archived by podhaul."
	}

	now := time.Now()
	feed := podcast.New(title, base, description, nil, &now)

	producerCaser := cases.Title(language.Und, cases.NoLower)
	for _, e := range items {
		item := podcast.Item{
			Title:       itemTitle(e),
			Description: itemDescription(e),
			GUID:        e.Key,
		}
		if link := strings.TrimSpace(e.EpisodeURL); link != "" {
			item.Link = link
		}
		if producer := strings.TrimSpace(e.Producer); producer != "" {
			item.IAuthor = producerCaser.String(producer)
		}
		if when := pubDate(e); when != nil {
			item.PubDate = when
		}
		item.AddEnclosure(enclosureURL(base, e.Filename), enclosureType(e.Filename), fileSize(opts.OutDir, e.Filename))

		if _, err := feed.AddItem(item); err != nil {
			return nil, fmt.Errorf("add item %s: %w", ledger.ShortKey(e.Key), err)
		}
	}

	return feed.Bytes(), nil
}

func completedAt(e *ledger.Episode) time.Time {
	if e.CompletedAt != nil {
		return *e.CompletedAt
	}
	return e.AddedAt
}

func itemTitle(e *ledger.Episode) string {
	if title := strings.TrimSpace(e.Title); title != "" {
		return title
	}
	return e.DisplayTitle()
}

func itemDescription(e *ledger.Episode) string {
	description := e.DisplayTitle()
	if date := strings.TrimSpace(e.PubDate); date != "" {
		description += " (" + date + ")"
	}
	return description
}

// pubDate prefers the listing's publication date over the archive
// timestamp, so re-downloading an old episode does not bump it to the top
// of subscribers' players.
func pubDate(e *ledger.Episode) *time.Time {
	if date := strings.TrimSpace(e.PubDate); date != "" {
		if when, err := time.Parse("2006-01-02", date); err == nil {
			return &when
		}
	}
	return e.CompletedAt
}

// enclosureURL joins base and the output-relative filename, escaping each
// path segment while keeping directory separators intact.
func enclosureURL(base, filename string) string {
	segments := strings.Split(filepath.ToSlash(filename), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return base + "/" + strings.Join(segments, "/")
}

func enclosureType(filename string) podcast.EnclosureType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".m4a":
		return podcast.M4A
	case ".mp4":
		return podcast.MP4
	default:
		return podcast.MP3
	}
}

func fileSize(outDir, filename string) int64 {
	if outDir == "" {
		return 0
	}
	info, err := os.Stat(filepath.Join(outDir, filepath.FromSlash(filename)))
	if err != nil {
		return 0
	}
	return info.Size()
}
