package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupOldLogs deletes files under dir matching pattern once they age past
// retentionDays. Zero or negative retention disables pruning, and paths named
// in keep survive regardless of age.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, dir, pattern string, keep ...string) {
	dir = strings.TrimSpace(dir)
	if retentionDays <= 0 || dir == "" {
		return
	}
	if strings.TrimSpace(pattern) == "" {
		pattern = "*"
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return
	}

	protected := make(map[string]struct{}, len(keep))
	for _, path := range keep {
		if abs := absOrSelf(strings.TrimSpace(path)); abs != "" {
			protected[abs] = struct{}{}
		}
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, match := range matches {
		path := absOrSelf(match)
		if _, skip := protected[path]; skip {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			if logger != nil {
				logger.Warn("old log not removed", slog.String("path", path), slog.Any("error", err))
			}
			continue
		}
		if logger != nil {
			logger.Info("old log pruned", slog.String("path", path))
		}
	}
}

func absOrSelf(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
