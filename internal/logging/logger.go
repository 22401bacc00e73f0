package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"podhaul/internal/config"
)

// Options selects the level, output format, and sink paths for a new logger.
// The zero value yields info-level console output on stdout and stderr.
type Options struct {
	Level        string
	Format       string
	Outputs      []string
	ErrorOutputs []string
}

// New constructs a slog logger writing to the configured sinks. The console
// format produces single-line "TS LEVEL component: msg key=value" output;
// json produces one JSON object per line with ts/level/msg keys. Debug level
// additionally records the caller.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	leveler := new(slog.LevelVar)
	leveler.Set(level)

	sink, err := buildSink(opts)
	if err != nil {
		return nil, err
	}
	withCaller := level <= slog.LevelDebug

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		return slog.New(newConsoleHandler(sink, leveler, withCaller)), nil
	case "json":
		return slog.New(newJSONHandler(sink, leveler, withCaller)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", opts.Format)
}

// FilePath returns the log file location for the given config.
func FilePath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "podhaul.log")
}

// NewFromConfig creates a logger that mirrors output to the terminal and,
// when a log directory is configured, to the podhaul log file.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{})
	}
	opts := Options{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Outputs:      []string{"stdout"},
		ErrorOutputs: []string{"stderr"},
	}
	if cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		logPath := FilePath(cfg)
		opts.Outputs = append(opts.Outputs, logPath)
		opts.ErrorOutputs = append(opts.ErrorOutputs, logPath)
	}
	return New(opts)
}

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
	"fatal":   slog.LevelError,
}

// parseLevel maps a config level name to a slog level. Unknown names fall
// back to info rather than failing startup.
func parseLevel(name string) slog.Level {
	if level, ok := levelNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return level
	}
	return slog.LevelInfo
}

// buildSink opens every configured output exactly once and fans each record
// out to all of them.
func buildSink(opts Options) (io.Writer, error) {
	outputs := opts.Outputs
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	errOutputs := opts.ErrorOutputs
	if len(errOutputs) == 0 {
		errOutputs = []string{"stderr"}
	}

	seen := make(map[string]bool)
	var writers []io.Writer
	for _, list := range [][]string{outputs, errOutputs} {
		for _, path := range list {
			path = strings.TrimSpace(path)
			if path == "" || seen[path] {
				continue
			}
			seen[path] = true
			w, err := openSink(path)
			if err != nil {
				return nil, err
			}
			writers = append(writers, w)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func openSink(path string) (io.Writer, error) {
	switch path {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}
