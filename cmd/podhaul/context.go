package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"podhaul/internal/config"
	"podhaul/internal/ledger"
	"podhaul/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	ensureConfig func() (*config.Config, error)
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	c := &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
	// Load once per invocation so every command sees one consistent view,
	// including the directories EnsureDirectories created.
	c.ensureConfig = sync.OnceValues(c.loadConfig)
	return c
}

func (c *commandContext) loadConfig() (*config.Config, error) {
	path := ""
	if c.configFlag != nil {
		path = strings.TrimSpace(*c.configFlag)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildLogger constructs the console and file logger used by commands that
// run the pipeline, honoring the --log-level override, then prunes log files
// past the retention window.
func (c *commandContext) buildLogger(cfg *config.Config) (*slog.Logger, error) {
	if c.logLevelFlag != nil {
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			clone := *cfg
			clone.Logging.Level = level
			cfg = &clone
		}
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, "*.log", logging.FilePath(cfg))
	return logger, nil
}

// withStore opens the ledger for read-mostly commands that do not need the
// pipeline logger.
func (c *commandContext) withStore(fn func(*ledger.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// runEnv bundles everything a pipeline command needs once flags have been
// folded into the configuration.
type runEnv struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *ledger.Store
}

func (c *commandContext) withRunEnv(cfg *config.Config, ledgerPath string, fn func(*runEnv) error) error {
	logger, err := c.buildLogger(cfg)
	if err != nil {
		return err
	}
	if strings.TrimSpace(ledgerPath) == "" {
		ledgerPath = cfg.LedgerPath()
	}
	store, err := ledger.Open(ledgerPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()
	return fn(&runEnv{cfg: cfg, logger: logger, store: store})
}

// shouldSkipConfig reports whether the command or any of its parents opted
// out of config loading, as config init must before a config exists.
func shouldSkipConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
