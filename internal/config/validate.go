package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate rejects configurations podhaul cannot run with. The error names
// the offending field by its TOML key.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateScan,
		c.validateDownload,
		c.validateHTTP,
		c.validateExport,
		c.validateNotifications,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateScan() error {
	if err := checkHTTPURL("scan.base_url", c.Scan.BaseURL); err != nil {
		return err
	}
	if c.Scan.StartPage < 1 {
		return errors.New("scan.start_page must be >= 1")
	}
	if c.Scan.EndPage != 0 && c.Scan.EndPage < c.Scan.StartPage {
		return errors.New("scan.end_page must be 0 (no limit) or >= scan.start_page")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.DelaySeconds < 0 {
		return errors.New("download.delay_seconds must be >= 0")
	}
	if c.Download.Jitter < 0 || c.Download.Jitter > 1 {
		return errors.New("download.jitter must be between 0 and 1")
	}
	if c.Download.Limit < 0 {
		return errors.New("download.limit must be >= 0")
	}
	return nil
}

func (c *Config) validateHTTP() error {
	if c.HTTP.RequestTimeout <= 0 {
		return errors.New("http.request_timeout must be positive")
	}
	if c.HTTP.IdleReadTimeout <= 0 {
		return errors.New("http.idle_read_timeout must be positive")
	}
	if c.HTTP.Retries < 0 {
		return errors.New("http.retries must be >= 0")
	}
	return nil
}

func (c *Config) validateExport() error {
	if c.Export.MaxItems < 0 {
		return errors.New("export.max_items must be >= 0")
	}
	if c.Export.BaseURL == "" {
		return nil
	}
	return checkHTTPURL("export.base_url", c.Export.BaseURL)
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func checkHTTPURL(key, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("%s must be an http(s) URL, got %q", key, raw)
	}
	return nil
}
