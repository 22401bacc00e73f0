package feedexport_test

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"podhaul/internal/feedexport"
	"podhaul/internal/ledger"
	"podhaul/internal/testsupport"
)

func archived(urlSuffix, title, producer, pubDate, filename string, completed time.Time) *ledger.Episode {
	return &ledger.Episode{
		Key:         ledger.KeyFromURL("https://listing.example/adas/" + urlSuffix),
		EpisodeURL:  "https://listing.example/adas/" + urlSuffix,
		Title:       title,
		Producer:    producer,
		PubDate:     pubDate,
		Status:      ledger.StatusDownloaded,
		Filename:    filename,
		CompletedAt: &completed,
	}
}

func TestBuildProducesArchiveFeed(t *testing.T) {
	out := t.TempDir()
	older := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	morning := archived("1", "Reggeli adas", "morning show", "2024-03-15", "Reggeli adas [abcd1234].mp3", older)
	evening := archived("2", "Esti adas", "", "2024-03-16", "Esti adas [ef567890].mp3", newer)
	queued := &ledger.Episode{
		Key:    ledger.KeyFromURL("https://listing.example/adas/3"),
		Title:  "Still Queued",
		Status: ledger.StatusQueued,
	}
	nameless := &ledger.Episode{
		Key:         ledger.KeyFromURL("https://listing.example/adas/4"),
		Title:       "Lost Filename",
		Status:      ledger.StatusDownloaded,
		CompletedAt: &newer,
	}
	testsupport.WriteFile(t, filepath.Join(out, morning.Filename), 1234)

	payload, err := feedexport.Build([]*ledger.Episode{morning, evening, queued, nameless}, feedexport.Options{
		BaseURL:     "https://archive.example/podhaul/",
		Title:       "Archived Mornings",
		Description: "Everything the scraper has pulled down.",
		OutDir:      out,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	xml := string(payload)

	if got := strings.Count(xml, "<item>"); got != 2 {
		t.Fatalf("item count = %d, want 2\n%s", got, xml)
	}
	if strings.Contains(xml, "Still Queued") || strings.Contains(xml, "Lost Filename") {
		t.Fatal("feed leaked a non-archived episode")
	}
	if strings.Index(xml, "Esti adas") > strings.Index(xml, "Reggeli adas") {
		t.Fatal("items are not newest-first")
	}
	if !strings.Contains(xml, `length="1234"`) {
		t.Fatal("enclosure size not read from disk")
	}
	if !strings.Contains(xml, `length="0"`) {
		t.Fatal("missing file should fall back to zero length")
	}
	if !strings.Contains(xml, "Reggeli%20adas%20%5Babcd1234%5D.mp3") {
		t.Fatalf("enclosure path not escaped:\n%s", xml)
	}
	if !strings.Contains(xml, `type="audio/mpeg"`) {
		t.Fatal("mp3 enclosure type missing")
	}
	if !strings.Contains(xml, "Morning Show") {
		t.Fatal("producer name not title-cased into the item author")
	}
	if !strings.Contains(xml, "16 Mar 2024") {
		t.Fatal("listing publication date not used for pubDate")
	}
	if strings.Contains(xml, "Jun 2024") {
		t.Fatal("archive timestamp leaked into pubDate")
	}
	if !strings.Contains(xml, morning.Key) {
		t.Fatal("episode key not used as GUID")
	}
}

func TestBuildKeepsSubdirSeparators(t *testing.T) {
	completed := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	episode := archived("sub", "Nested", "Morning Show", "", "Morning Show/ep1.mp3", completed)

	payload, err := feedexport.Build([]*ledger.Episode{episode}, feedexport.Options{
		BaseURL: "https://archive.example",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(string(payload), "https://archive.example/Morning%20Show/ep1.mp3") {
		t.Fatalf("subdir separator mangled:\n%s", payload)
	}
}

func TestBuildHonorsMaxItems(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var episodes []*ledger.Episode
	for i, title := range []string{"First", "Second", "Third"} {
		episodes = append(episodes, archived(title, title, "", "", title+".mp3", base.Add(time.Duration(i)*time.Hour)))
	}

	payload, err := feedexport.Build(episodes, feedexport.Options{
		BaseURL:  "https://archive.example",
		MaxItems: 2,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	xml := string(payload)
	if got := strings.Count(xml, "<item>"); got != 2 {
		t.Fatalf("item count = %d, want 2", got)
	}
	if strings.Contains(xml, "First.mp3") {
		t.Fatal("oldest item survived the cap")
	}
}

func TestBuildRequiresBaseURL(t *testing.T) {
	if _, err := feedexport.Build(nil, feedexport.Options{}); err == nil {
		t.Fatal("expected error without a base url")
	}
}

func TestBuildEmptyArchive(t *testing.T) {
	payload, err := feedexport.Build(nil, feedexport.Options{BaseURL: "https://archive.example"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	xml := string(payload)
	if !strings.Contains(xml, "<channel>") {
		t.Fatalf("no channel emitted:\n%s", xml)
	}
	if strings.Contains(xml, "<item>") {
		t.Fatal("empty archive produced items")
	}
}
