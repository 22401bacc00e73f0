// Package sites defines the listing sources the scan driver can walk.
//
// A Source exposes a paginated listing one page at a time; sources whose
// rows need a detail-page visit to locate media additionally implement
// EpisodeSource. Adapters live in subpackages and stay free of ledger and
// pipeline concerns so new sites only have to translate markup.
package sites

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
)

// ErrNoMorePages signals the natural end of a listing. The scan driver
// treats it as a clean stop, not a failure.
var ErrNoMorePages = errors.New("no more listing pages")

// Candidate is one episode row discovered on a listing page. Key is the
// stable ledger key; MediaURL is set only when the listing itself already
// knows where the media lives, and Subdir only when the episode should land
// in a per-producer directory under the output root.
type Candidate struct {
	Key         string
	Title       string
	Producer    string
	PubDate     string
	EpisodeURL  string
	ProducerURL string
	MediaURL    string
	Subdir      string
}

// Page is the outcome of enumerating one listing page.
type Page struct {
	Number     int
	ListingURL string
	Candidates []Candidate
}

// Source enumerates a paginated listing. ListPage returns ErrNoMorePages
// once the listing is exhausted.
type Source interface {
	Name() string
	ListPage(ctx context.Context, page int) (*Page, error)
}

// EpisodeSource resolves media for sources whose listing rows only carry
// page links. EpisodeMedia returns every direct audio URL found on an
// episode page, in stable order. ProducerFeed returns the RSS feed a
// producer page advertises, or "" when it advertises none.
type EpisodeSource interface {
	EpisodeMedia(ctx context.Context, episodeURL string) ([]string, error)
	ProducerFeed(ctx context.Context, producerURL string) (string, error)
}

var audioExtensions = []string{".mp3", ".m4a", ".aac", ".ogg", ".opus", ".wav"}

// AudioExt returns the lowercase audio extension of rawURL (query string
// ignored), or "" when the URL does not point at a recognized audio file.
func AudioExt(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	for _, known := range audioExtensions {
		if ext == known {
			return ext
		}
	}
	return ""
}

// IsAudioURL reports whether rawURL points at a recognized audio file.
func IsAudioURL(rawURL string) bool {
	return AudioExt(rawURL) != ""
}

// Absolutize resolves href against base the way a browser would. Malformed
// input yields "".
func Absolutize(base, href string) string {
	parsedBase, err := url.Parse(base)
	if err != nil {
		return ""
	}
	parsedHref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return parsedBase.ResolveReference(parsedHref).String()
}
