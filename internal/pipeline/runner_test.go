package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"podhaul/internal/ledger"
	"podhaul/internal/safename"
	"podhaul/internal/scan"
	"podhaul/internal/sites"
	"podhaul/internal/testsupport"
)

type pipeSource struct {
	name  string
	pages map[int]*sites.Page
	fail  map[int]error
}

func (s *pipeSource) Name() string { return s.name }

func (s *pipeSource) ListPage(_ context.Context, page int) (*sites.Page, error) {
	if err := s.fail[page]; err != nil {
		return nil, err
	}
	if listing, ok := s.pages[page]; ok {
		return listing, nil
	}
	return nil, sites.ErrNoMorePages
}

type completedEvent struct {
	downloaded int
	noMedia    int
	failed     int
	bytes      int64
}

type captureNotifier struct {
	started   []int
	completed []completedEvent
	failed    []string
}

func (c *captureNotifier) RunStarted(_ context.Context, _ string, pending int) error {
	c.started = append(c.started, pending)
	return nil
}

func (c *captureNotifier) RunCompleted(_ context.Context, _ string, downloaded, noMedia, failed int, bytes int64, _ time.Duration) error {
	c.completed = append(c.completed, completedEvent{downloaded, noMedia, failed, bytes})
	return nil
}

func (c *captureNotifier) EpisodeFailed(_ context.Context, title string, _ error) error {
	c.failed = append(c.failed, title)
	return nil
}

func (c *captureNotifier) TestNotification(context.Context) error { return nil }

func TestRunScanAndDownload(t *testing.T) {
	payload := []byte("ID3 fake mp3 payload for the morning show")
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t)
	mediaURL := server.URL + "/media/ep1.mp3"
	episodeURL := "https://listing.example/adas/1"
	key := ledger.KeyFromURL(episodeURL)
	source := &pipeSource{
		name: "podkaszt",
		pages: map[int]*sites.Page{
			1: {
				Number:     1,
				ListingURL: "https://listing.example/adasok/uj/",
				Candidates: []sites.Candidate{{
					Key:        key,
					Title:      "Episode 1",
					Producer:   "Morning Show",
					PubDate:    "2024-03-15",
					EpisodeURL: episodeURL,
					MediaURL:   mediaURL,
				}},
			},
		},
	}
	notifier := &captureNotifier{}
	runner := NewRunnerWithNotifier(cfg, store, source, nil, notifier)

	summary, err := runner.Run(context.Background(), Options{Scan: scan.Options{CheckpointPages: true}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Scan == nil || summary.Scan.PagesScanned != 1 {
		t.Fatalf("unexpected scan summary: %+v", summary.Scan)
	}
	if summary.Downloaded != 1 || summary.Failed != 0 || summary.NoMedia != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Bytes != int64(len(payload)) {
		t.Fatalf("bytes = %d, want %d", summary.Bytes, len(payload))
	}
	if requests != 1 {
		t.Fatalf("media requests = %d, want 1", requests)
	}

	tail := " [" + ledger.ShortKey(key) + "].mp3"
	wantName, err := safename.Default().Encode(cfg.Paths.OutDir, "Episode 1 - Morning Show", tail)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(cfg.Paths.OutDir, wantName))
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatal("downloaded content does not match served payload")
	}

	episode, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if episode == nil || episode.Status != ledger.StatusDownloaded {
		t.Fatalf("episode = %+v, want downloaded", episode)
	}
	if episode.Filename != wantName {
		t.Fatalf("filename = %q, want %q", episode.Filename, wantName)
	}
	if episode.MediaURL != mediaURL {
		t.Fatalf("media url = %q, want %q", episode.MediaURL, mediaURL)
	}

	if len(notifier.started) != 1 || notifier.started[0] != 1 {
		t.Fatalf("run started events = %v", notifier.started)
	}
	if len(notifier.completed) != 1 || notifier.completed[0].downloaded != 1 {
		t.Fatalf("run completed events = %+v", notifier.completed)
	}
}

func TestRunScanOnlyLeavesEpisodesQueued(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("scan-only run must not touch media")
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t)
	episodeURL := "https://listing.example/adas/2"
	key := ledger.KeyFromURL(episodeURL)
	source := &pipeSource{
		name: "podkaszt",
		pages: map[int]*sites.Page{
			1: {
				Number:     1,
				ListingURL: "https://listing.example/adasok/uj/",
				Candidates: []sites.Candidate{{
					Key:        key,
					Title:      "Episode 2",
					EpisodeURL: episodeURL,
					MediaURL:   server.URL + "/ep2.mp3",
				}},
			},
		},
	}
	runner := NewRunnerWithNotifier(cfg, store, source, nil, &captureNotifier{})

	summary, err := runner.Run(context.Background(), Options{ScanOnly: true, Scan: scan.Options{CheckpointPages: true}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 0 || summary.Downloaded != 0 {
		t.Fatalf("scan-only summary touched downloads: %+v", summary)
	}

	episode, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if episode == nil || episode.Status != ledger.StatusQueued {
		t.Fatalf("episode = %+v, want queued", episode)
	}
}

func TestRunWrapsEnumerationFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t)
	source := &pipeSource{
		name: "podkaszt",
		fail: map[int]error{1: errors.New("status 500")},
	}
	notifier := &captureNotifier{}
	runner := NewRunnerWithNotifier(cfg, store, source, nil, notifier)

	_, err := runner.Run(context.Background(), Options{Scan: scan.Options{CheckpointPages: true}})
	if err == nil {
		t.Fatal("expected enumeration failure")
	}
	if !errors.Is(err, ErrEnumeration) {
		t.Fatalf("error not classified as enumeration: %v", err)
	}
	if len(notifier.started) != 0 {
		t.Fatal("download phase ran despite aborted scan")
	}
}

func TestDownloadMarksNoMedia(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t)
	key := ledger.KeyFromURL("https://listing.example/eloado/silent")
	if _, err := store.Upsert(context.Background(), &ledger.Episode{
		Key:      key,
		Title:    "Silent Episode",
		Producer: "Quiet FM",
		Source:   "podkaszt",
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	notifier := &captureNotifier{}
	runner := NewRunnerWithNotifier(cfg, store, &pipeSource{name: "podkaszt"}, nil, notifier)

	summary, err := runner.Download(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if summary.NoMedia != 1 || summary.Failed != 0 || summary.Downloaded != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	episode, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if episode.Status != ledger.StatusNoMedia {
		t.Fatalf("status = %q, want %q", episode.Status, ledger.StatusNoMedia)
	}
	if !strings.Contains(episode.Error, "no media found") {
		t.Fatalf("error detail = %q, want no-media explanation", episode.Error)
	}
	if len(notifier.failed) != 0 {
		t.Fatal("no_media outcome must not raise a failure notification")
	}
}

func TestDownloadMarksErrorOnTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t)
	key := ledger.KeyFromURL("https://listing.example/adas/503")
	if _, err := store.Upsert(context.Background(), &ledger.Episode{
		Key:      key,
		Title:    "Unlucky Episode",
		Source:   "podkaszt",
		MediaURL: server.URL + "/gone.mp3",
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	notifier := &captureNotifier{}
	runner := NewRunnerWithNotifier(cfg, store, &pipeSource{name: "podkaszt"}, nil, notifier)

	summary, err := runner.Download(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if summary.Failed != 1 || summary.Downloaded != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	episode, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if episode.Status != ledger.StatusError {
		t.Fatalf("status = %q, want %q", episode.Status, ledger.StatusError)
	}
	if !strings.Contains(episode.Error, "503") {
		t.Fatalf("error detail = %q, want status code", episode.Error)
	}
	if len(notifier.failed) != 1 {
		t.Fatalf("failure notifications = %v, want one", notifier.failed)
	}
}

func TestDownloadAdoptsExistingFile(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = w.Write([]byte("should not be fetched"))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t)
	key := ledger.KeyFromURL("https://listing.example/adas/7")
	if _, err := store.Upsert(context.Background(), &ledger.Episode{
		Key:      key,
		Title:    "Archived Episode",
		Source:   "podkaszt",
		MediaURL: server.URL + "/ep7.mp3",
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	tail := " [" + ledger.ShortKey(key) + "].mp3"
	name, err := safename.Default().Encode(cfg.Paths.OutDir, "Archived Episode", tail)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.OutDir, name), 2048)

	runner := NewRunnerWithNotifier(cfg, store, &pipeSource{name: "podkaszt"}, nil, &captureNotifier{})
	summary, err := runner.Download(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if summary.Adopted != 1 || summary.Downloaded != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Bytes != 0 {
		t.Fatalf("adopted file added bytes: %d", summary.Bytes)
	}
	if requests != 0 {
		t.Fatalf("adoption still fetched media %d times", requests)
	}

	episode, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if episode.Status != ledger.StatusDownloaded || episode.Filename != name {
		t.Fatalf("episode = %+v, want downloaded with filename %q", episode, name)
	}
}

func TestDownloadDryRunTouchesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("dry run must not touch the network")
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t)
	key := ledger.KeyFromURL("https://listing.example/adas/9")
	if _, err := store.Upsert(context.Background(), &ledger.Episode{
		Key:      key,
		Title:    "Planned Episode",
		Source:   "podkaszt",
		MediaURL: server.URL + "/ep9.mp3",
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	notifier := &captureNotifier{}
	runner := NewRunnerWithNotifier(cfg, store, &pipeSource{name: "podkaszt"}, nil, notifier)

	summary, err := runner.Download(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if summary.Processed != 1 || summary.Downloaded != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(notifier.started) != 0 {
		t.Fatal("dry run sent notifications")
	}

	episode, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if episode.Status != ledger.StatusQueued {
		t.Fatalf("status = %q, want %q", episode.Status, ledger.StatusQueued)
	}
}

func TestDownloadRespectsLimit(t *testing.T) {
	payload := []byte("audio")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t)
	for _, n := range []string{"a", "b", "c"} {
		episodeURL := "https://listing.example/adas/" + n
		if _, err := store.Upsert(context.Background(), &ledger.Episode{
			Key:      ledger.KeyFromURL(episodeURL),
			Title:    "Episode " + n,
			Source:   "podkaszt",
			MediaURL: server.URL + "/" + n + ".mp3",
		}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	runner := NewRunnerWithNotifier(cfg, store, &pipeSource{name: "podkaszt"}, nil, &captureNotifier{})

	summary, err := runner.Download(context.Background(), Options{Limit: 2})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if summary.Processed != 2 || summary.Downloaded != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[ledger.StatusQueued] != 1 {
		t.Fatalf("queued after limited run = %d, want 1", stats[ledger.StatusQueued])
	}
}

func TestRunnerFailsFastWhenLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t)

	other := flock.New(cfg.LockPath())
	locked, err := other.TryLock()
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !locked {
		t.Fatal("test could not take the lock")
	}
	defer func() {
		if err := other.Unlock(); err != nil {
			t.Fatalf("Unlock: %v", err)
		}
	}()

	runner := NewRunnerWithNotifier(cfg, store, &pipeSource{name: "podkaszt"}, nil, &captureNotifier{})
	if _, err := runner.Download(context.Background(), Options{}); err == nil {
		t.Fatal("expected second instance to fail fast")
	}
}

func TestDownloadNamingFailureMarksError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t)
	key := ledger.KeyFromURL("https://listing.example/adas/deep")
	if _, err := store.Upsert(context.Background(), &ledger.Episode{
		Key:      key,
		Title:    "Deep Episode",
		Source:   "feeds",
		Subdir:   strings.Repeat("d", 5000),
		MediaURL: "https://cdn.example/deep.mp3",
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	runner := NewRunnerWithNotifier(cfg, store, &pipeSource{name: "feeds"}, nil, &captureNotifier{})

	summary, err := runner.Download(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	episode, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if episode.Status != ledger.StatusError {
		t.Fatalf("status = %q, want %q", episode.Status, ledger.StatusError)
	}
	if !strings.Contains(episode.Error, "filename construction failed") {
		t.Fatalf("error detail = %q, want naming failure", episode.Error)
	}
}
