package feeds_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"podhaul/internal/config"
	"podhaul/internal/ledger"
	"podhaul/internal/logging"
	"podhaul/internal/sites"
	"podhaul/internal/sites/feeds"
)

const rssBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Reggeli Rádió</title>
<item>
  <title>Episode One</title>
  <guid>ep-1</guid>
  <link>https://example.test/ep1</link>
  <enclosure url="https://cdn.example.test/ep1.mp3" length="123" type="audio/mpeg"/>
  <pubDate>Fri, 15 Mar 2024 06:00:00 +0000</pubDate>
</item>
<item><title>No Media</title><guid>ep-2</guid><link>https://example.test/ep2</link></item>
<item><title>Direct Link</title><guid>ep-3</guid><link>https://cdn.example.test/direct.m4a</link></item>
</channel></rss>`

func newSource(t *testing.T, feedLines string) (*feeds.Source, string) {
	t.Helper()
	dir := t.TempDir()
	feedsPath := filepath.Join(dir, "feeds.txt")
	if err := os.WriteFile(feedsPath, []byte(feedLines), 0o644); err != nil {
		t.Fatalf("write feeds file: %v", err)
	}
	outDir := filepath.Join(dir, "out")

	cfg := config.Default()
	cfg.Paths.FeedsFile = feedsPath
	cfg.Paths.OutDir = outDir
	source, err := feeds.New(&cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return source, outDir
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feeds.txt")
	content := "# subscriptions\n\nMorning|https://example.test/a.xml\nhttps://example.test/b.xml\n  Weird Spacing | https://example.test/c.xml  \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write feeds file: %v", err)
	}

	entries, err := feeds.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	want := []feeds.Entry{
		{Name: "Morning", URL: "https://example.test/a.xml"},
		{URL: "https://example.test/b.xml"},
		{Name: "Weird Spacing", URL: "https://example.test/c.xml"},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d: %+v", len(want), len(entries), entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Fatalf("entry %d mismatch: got %+v want %+v", i, entries[i], want[i])
		}
	}
}

func TestNewRejectsMissingOrEmptyFeedsFile(t *testing.T) {
	cfg := config.Default()
	if _, err := feeds.New(&cfg, logging.NewNop()); err == nil {
		t.Fatal("expected error without a feeds file")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "feeds.txt")
	if err := os.WriteFile(path, []byte("# nothing here\n"), 0o644); err != nil {
		t.Fatalf("write feeds file: %v", err)
	}
	cfg.Paths.FeedsFile = path
	if _, err := feeds.New(&cfg, logging.NewNop()); err == nil {
		t.Fatal("expected error for a feeds file without feeds")
	}
}

func TestListPageParsesFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssBody))
	}))
	defer server.Close()

	feedURL := server.URL + "/feed.xml"
	source, outDir := newSource(t, "Morning|"+feedURL+"\n")

	page, err := source.ListPage(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListPage failed: %v", err)
	}
	if page.ListingURL != feedURL {
		t.Fatalf("unexpected listing url: %q", page.ListingURL)
	}
	if len(page.Candidates) != 2 {
		t.Fatalf("expected 2 candidates (one entry has no media), got %d: %+v", len(page.Candidates), page.Candidates)
	}

	first := page.Candidates[0]
	if first.Title != "Episode One" || first.Producer != "Morning" || first.Subdir != "Morning" {
		t.Fatalf("unexpected first candidate: %+v", first)
	}
	if first.MediaURL != "https://cdn.example.test/ep1.mp3" {
		t.Fatalf("enclosure not captured: %q", first.MediaURL)
	}
	if first.PubDate != "2024-03-15" {
		t.Fatalf("pub date not normalized: %q", first.PubDate)
	}
	wantKey := ledger.KeyFromFeedEntry(feedURL, "ep-1", "https://cdn.example.test/ep1.mp3", "https://example.test/ep1", "Episode One")
	if first.Key != wantKey {
		t.Fatalf("key mismatch: got %q want %q", first.Key, wantKey)
	}

	second := page.Candidates[1]
	if second.MediaURL != "https://cdn.example.test/direct.m4a" {
		t.Fatalf("audio item link not used as media: %+v", second)
	}

	metaPath := filepath.Join(outDir, "Morning", "feed_meta.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatalf("feed_meta.json not written: %v", err)
	}
	var meta struct {
		FeedURL string `json:"feed_url"`
		Title   string `json:"title"`
		Entries int    `json:"entries"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("feed_meta.json malformed: %v", err)
	}
	if meta.FeedURL != feedURL || meta.Title != "Reggeli Rádió" || meta.Entries != 3 {
		t.Fatalf("unexpected metadata snapshot: %+v", meta)
	}

	if _, err := source.ListPage(context.Background(), 2); !errors.Is(err, sites.ErrNoMorePages) {
		t.Fatalf("expected ErrNoMorePages past the last feed, got %v", err)
	}
}

func TestListPageBareURLUsesChannelTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(rssBody))
	}))
	defer server.Close()

	source, outDir := newSource(t, server.URL+"/feed.xml\n")
	page, err := source.ListPage(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListPage failed: %v", err)
	}
	if page.Candidates[0].Producer != "Reggeli Rádió" {
		t.Fatalf("channel title not used as producer: %q", page.Candidates[0].Producer)
	}
	if _, err := os.Stat(filepath.Join(outDir, "Reggeli Rádió", "feed_meta.json")); err != nil {
		t.Fatalf("per-feed directory not derived from channel title: %v", err)
	}
}

func TestListPageFeedErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	source, _ := newSource(t, server.URL+"/feed.xml\n")
	_, err := source.ListPage(context.Background(), 1)
	if err == nil || errors.Is(err, sites.ErrNoMorePages) {
		t.Fatalf("expected a feed fetch error, got %v", err)
	}
}
