package ledger

import (
	"slices"
	"strings"
	"time"
)

// Status represents the lifecycle of an episode record.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusDownloaded Status = "downloaded"
	StatusNoMedia    Status = "no_media"
	StatusError      Status = "error"
)

var allStatuses = []Status{StatusQueued, StatusDownloaded, StatusNoMedia, StatusError}

// Known reports whether the status is one the ledger writes.
func (s Status) Known() bool {
	switch s {
	case StatusQueued, StatusDownloaded, StatusNoMedia, StatusError:
		return true
	}
	return false
}

// AllStatuses lists every known status in display order.
func AllStatuses() []Status {
	return slices.Clone(allStatuses)
}

// ParseStatus normalizes user input such as "  Queued" into a Status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	return status, status.Known()
}

// Episode represents one discovered episode persisted in SQLite.
type Episode struct {
	Key         string
	EpisodeURL  string
	ProducerURL string
	Title       string
	Producer    string
	PubDate     string
	Source      string
	Subdir      string
	MediaURL    string
	Status      Status
	Filename    string
	Error       string
	AddedAt     time.Time
	CompletedAt *time.Time
}

// Terminal reports whether the episode needs no further processing.
// Only downloaded suppresses reprocessing; no_media and error episodes are
// re-examined on later runs.
func (e Episode) Terminal() bool {
	return e.Status == StatusDownloaded
}

// DisplayTitle returns a human-readable label for logs and tables.
func (e Episode) DisplayTitle() string {
	title := strings.TrimSpace(e.Title)
	producer := strings.TrimSpace(e.Producer)
	switch {
	case title != "" && producer != "":
		return title + " - " + producer
	case title != "":
		return title
	case producer != "":
		return producer
	case e.EpisodeURL != "":
		return e.EpisodeURL
	default:
		return ShortKey(e.Key)
	}
}

// FeedStatus records the outcome of RSS discovery for a producer page.
type FeedStatus string

const (
	FeedFound FeedStatus = "found"
	FeedNone  FeedStatus = "none"
	FeedError FeedStatus = "error"
)

// FeedRecord memoises the RSS feed lookup for one producer page.
type FeedRecord struct {
	ProducerURL string
	RSSURL      string
	Status      FeedStatus
	Error       string
	UpdatedAt   time.Time
}

// PageCursor marks a listing page whose episode stubs are fully recorded.
type PageCursor struct {
	Source     string
	Page       int
	ListingURL string
	ScannedAt  time.Time
}
