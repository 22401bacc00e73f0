// Package ytdlp wraps the go-ytdlp bindings for media-platform links.
//
// Links mode hands whole page URLs to the external yt-dlp tool instead of
// scraping them; the wrapper only fixes the output template, format, and
// filename restrictions, and reports what yt-dlp extracted so the ledger can
// record the final filename.
package ytdlp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	goytdlp "github.com/lrstanley/go-ytdlp"

	"podhaul/internal/config"
	"podhaul/internal/logging"
)

// Result describes one completed link download.
type Result struct {
	Filename string
	Title    string
}

// Downloader is the surface the pipeline depends on.
type Downloader interface {
	Download(ctx context.Context, url string) (*Result, error)
}

// Client drives the yt-dlp binary through go-ytdlp.
type Client struct {
	outDir   string
	format   string
	restrict bool
	logger   *slog.Logger
}

// New builds a Client from the [ytdlp] config section.
func New(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		outDir:   cfg.Paths.OutDir,
		format:   cfg.YtDlp.Format,
		restrict: cfg.YtDlp.RestrictFilenames,
		logger:   logging.NewComponentLogger(logger, "ytdlp"),
	}
}

// Download fetches one platform link into the output directory. The platform
// ID in the output template keeps re-uploads with identical titles from
// colliding, mirroring the short-key tag on scraped episodes.
func (c *Client) Download(ctx context.Context, url string) (*Result, error) {
	cmd := goytdlp.New().
		Format(c.format).
		ForceOverwrites().
		Output(filepath.Join(c.outDir, "%(title)s [%(id)s].%(ext)s"))
	if c.restrict {
		cmd = cmd.RestrictFilenames()
	}
	cmd.ProgressFunc(time.Second, func(update goytdlp.ProgressUpdate) {
		if update.TotalBytes > 0 {
			percent := float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
			c.logger.Debug("transfer progress", "url", url, "percent", int(percent))
		}
	})

	result, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp %s: %w", url, err)
	}

	out := &Result{}
	if info, ierr := result.GetExtractedInfo(); ierr == nil && len(info) > 0 {
		if info[0].Filename != nil {
			out.Filename = *info[0].Filename
		}
		if info[0].Title != nil {
			out.Title = *info[0].Title
		}
	}
	return out, nil
}

// ReadLinksFile reads a links file: one page URL per line, blank lines and
// # comments ignored.
func ReadLinksFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read links file: %w", err)
	}

	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, nil
}
