package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScan()
	c.normalizeDownload()
	c.normalizeHTTP()
	c.normalizeYtDlp()
	c.normalizeExport()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	for _, p := range []struct {
		key      string
		field    *string
		fallback string
	}{
		{"paths.out_dir", &c.Paths.OutDir, defaultOutDir},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.feeds_file", &c.Paths.FeedsFile, ""},
	} {
		raw := trimOr(*p.field, p.fallback)
		if raw == "" {
			// feeds_file is optional and stays empty unless configured.
			*p.field = ""
			continue
		}
		expanded, err := expandPath(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", p.key, err)
		}
		*p.field = expanded
	}
	return nil
}

func (c *Config) normalizeScan() {
	c.Scan.BaseURL = trimOr(c.Scan.BaseURL, defaultBaseURL)
	c.Scan.Source = strings.ToLower(trimOr(c.Scan.Source, defaultSource))
}

func (c *Config) normalizeDownload() {
	if c.Download.MinFreeGiB <= 0 {
		c.Download.MinFreeGiB = defaultMinFreeGiB
	}
}

func (c *Config) normalizeHTTP() {
	c.HTTP.UserAgent = trimOr(c.HTTP.UserAgent, defaultUserAgent)
}

func (c *Config) normalizeYtDlp() {
	c.YtDlp.Format = trimOr(c.YtDlp.Format, defaultYtDlpFormat)
}

func (c *Config) normalizeExport() {
	c.Export.BaseURL = strings.TrimSpace(c.Export.BaseURL)
	c.Export.Title = trimOr(c.Export.Title, defaultExportTitle)
	c.Export.Description = strings.TrimSpace(c.Export.Description)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = strings.TrimSpace(os.Getenv("PODHAUL_NTFY_TOPIC"))
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format != "json" {
		format = "console"
	}
	c.Logging.Format = format
	c.Logging.Level = strings.ToLower(trimOr(c.Logging.Level, defaultLogLevel))
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// trimOr returns value with surrounding whitespace removed, or fallback when
// nothing is left.
func trimOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
