package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths holds where podhaul writes media, state, and logs.
type Paths struct {
	OutDir    string `toml:"out_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
	FeedsFile string `toml:"feeds_file"`
}

// Scan selects the listing to enumerate and the page range to walk.
type Scan struct {
	BaseURL   string `toml:"base_url"`
	Source    string `toml:"source"`
	StartPage int    `toml:"start_page"`
	EndPage   int    `toml:"end_page"` // 0 means scan until the listing is exhausted
}

// Download paces transfers and bounds what a single run may fetch.
type Download struct {
	DelaySeconds float64 `toml:"delay_seconds"`
	Jitter       float64 `toml:"jitter"`
	Limit        int     `toml:"limit"` // 0 means no per-run cap
	MinFreeGiB   int     `toml:"min_free_gib"`
}

// HTTP tunes the shared scrape and stream clients.
type HTTP struct {
	UserAgent       string `toml:"user_agent"`
	RequestTimeout  int    `toml:"request_timeout"`
	IdleReadTimeout int    `toml:"idle_read_timeout"`
	Retries         int    `toml:"retries"`
}

// YtDlp shapes the handoff of media-platform links to yt-dlp.
type YtDlp struct {
	Format            string `toml:"format"`
	RestrictFilenames bool   `toml:"restrict_filenames"`
}

// Export describes the RSS feed generated from downloaded episodes.
type Export struct {
	BaseURL     string `toml:"base_url"`
	Title       string `toml:"title"`
	Description string `toml:"description"`
	MaxItems    int    `toml:"max_items"` // 0 means include every downloaded episode
}

// Notifications wires run summaries and failure reports to an ntfy topic.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Runs           bool   `toml:"runs"`
	Errors         bool   `toml:"errors"`
}

// Logging selects log format, verbosity, and file retention.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config is the root of the podhaul TOML file; every field is one [section].
// Load fills it from defaults overlaid with the file, then normalizes and
// validates before handing it out.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Scan          Scan          `toml:"scan"`
	Download      Download      `toml:"download"`
	HTTP          HTTP          `toml:"http"`
	YtDlp         YtDlp         `toml:"ytdlp"`
	Export        Export        `toml:"export"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns ~/.config/podhaul/config.toml with the tilde
// resolved. It is where config init writes and where Load looks first.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/podhaul/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. It reports the path the
// file resolved to and whether it existed; a missing file is not an error,
// the defaults simply apply.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		raw, err := os.ReadFile(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// resolveConfigPath picks the config file to read: an explicit path wins even
// when absent, otherwise the default location and then a podhaul.toml in the
// working directory are probed.
func resolveConfigPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		switch {
		case err == nil && info.IsDir():
			return "", false, fmt.Errorf("config path %s is a directory", expanded)
		case err == nil:
			return expanded, true, nil
		case errors.Is(err, fs.ErrNotExist):
			return expanded, false, nil
		default:
			return "", false, fmt.Errorf("stat config: %w", err)
		}
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	candidates := []string{defaultPath}
	if projectPath, err := filepath.Abs("podhaul.toml"); err == nil {
		candidates = append(candidates, projectPath)
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the output, state, and log directories. The
// feeds file is the user's to manage and is deliberately left alone.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the SQLite ledger location under the state directory.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "podhaul.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "podhaul.lock")
}

// Delay returns the politeness delay between network requests.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.Download.DelaySeconds * float64(time.Second))
}

// YtDlpBinary returns the yt-dlp executable name.
func (c *Config) YtDlpBinary() string {
	return "yt-dlp"
}

// expandPath turns a user-supplied path into an absolute one, resolving a
// leading tilde against the home directory.
func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("find home directory: %w", err)
		}
		value = filepath.Join(home, strings.TrimPrefix(value, "~"))
	}
	absolute, err := filepath.Abs(filepath.Clean(value))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return absolute, nil
}

// ExpandPath applies the same tilde and absolute-path rules Load uses, for
// callers that accept paths on the command line.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

// CreateSample writes the annotated sample configuration to path, creating
// parent directories as needed.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}
