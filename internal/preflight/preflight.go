package preflight

import (
	"fmt"
	"strings"

	"podhaul/internal/config"
)

// Result is one preflight check's verdict.
type Result struct {
	Name   string
	OK     bool
	Detail string
}

// RunAll executes the checks a run depends on: output and state directories
// accessible, enough free space on the output volume, and the yt-dlp binary
// when links mode will need it.
func RunAll(cfg *config.Config, needYtDlp bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Output directory", cfg.Paths.OutDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckFreeSpace("Output volume", cfg.Paths.OutDir, cfg.Download.MinFreeGiB),
	}
	if needYtDlp {
		results = append(results, CheckBinary("yt-dlp", cfg.YtDlpBinary()))
	}
	return results
}

// Check runs RunAll and folds any failures into a single error. It returns
// nil when every check passed.
func Check(cfg *config.Config, needYtDlp bool) error {
	var failures []string
	for _, r := range RunAll(cfg, needYtDlp) {
		if !r.OK {
			failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("preflight failed: %s", strings.Join(failures, "; "))
	}
	return nil
}
