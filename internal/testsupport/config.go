package testsupport

import (
	"path/filepath"
	"testing"

	"podhaul/internal/config"
)

// NewConfig produces a config rooted in a per-test temp directory.
// Politeness delays and HTTP retries are zeroed so tests run at full speed;
// tweak the returned value directly for anything else.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutDir = filepath.Join(base, "out")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Download.DelaySeconds = 0
	cfg.Download.Jitter = 0
	cfg.HTTP.Retries = 0

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure config directories: %v", err)
	}
	return &cfg
}
