package preflight

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podhaul/internal/config"
	"podhaul/internal/testsupport"
)

func swapStatfs(t *testing.T, fn func(string) (uint64, uint64, error)) {
	t.Helper()
	orig := statfs
	statfs = fn
	t.Cleanup(func() { statfs = orig })
}

func plentyOfSpace(string) (uint64, uint64, error) {
	return 500 << 30, 200 << 30, nil
}

func stubBinary(t *testing.T, name string) {
	t.Helper()
	dir := t.TempDir()
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", dir)
}

func TestCheckDirectoryAccess(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name   string
		path   string
		wantOK bool
	}{
		{"writable directory", t.TempDir(), true},
		{"missing path", filepath.Join(t.TempDir(), "nope"), false},
		{"plain file", filePath, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := CheckDirectoryAccess("test", tc.path)
			if result.OK != tc.wantOK {
				t.Fatalf("OK = %v for %s, detail: %s", result.OK, tc.path, result.Detail)
			}
			if !tc.wantOK && result.Detail == "" {
				t.Fatal("failure carries no detail")
			}
		})
	}
}

func TestCheckFreeSpace_OK(t *testing.T) {
	swapStatfs(t, plentyOfSpace)
	result := CheckFreeSpace("test", t.TempDir(), 1)
	if !result.OK {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "GiB free") {
		t.Fatalf("detail missing free-space figure: %s", result.Detail)
	}
}

func TestCheckFreeSpace_Insufficient(t *testing.T) {
	swapStatfs(t, func(string) (uint64, uint64, error) {
		return 500 << 30, 1 << 29, nil
	})
	result := CheckFreeSpace("test", t.TempDir(), 1)
	if result.OK {
		t.Fatal("expected failure with half a GiB free")
	}
	if !strings.Contains(result.Detail, "need 1 GiB") {
		t.Fatalf("detail missing required floor: %s", result.Detail)
	}
}

func TestCheckFreeSpace_StatfsError(t *testing.T) {
	swapStatfs(t, func(string) (uint64, uint64, error) {
		return 0, 0, errors.New("mount gone")
	})
	result := CheckFreeSpace("test", t.TempDir(), 1)
	if result.OK {
		t.Fatal("expected failure when statfs errors")
	}
}

func TestCheckBinary_Found(t *testing.T) {
	stubBinary(t, "yt-dlp")
	result := CheckBinary("yt-dlp", "yt-dlp")
	if !result.OK {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.HasSuffix(result.Detail, "yt-dlp") {
		t.Fatalf("detail should carry the resolved path: %s", result.Detail)
	}
}

func TestCheckBinary_Missing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	result := CheckBinary("yt-dlp", "yt-dlp")
	if result.OK {
		t.Fatal("expected failure for absent binary")
	}
}

func TestCheckBinary_Unconfigured(t *testing.T) {
	result := CheckBinary("yt-dlp", "")
	if result.OK {
		t.Fatal("expected failure for empty command")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(nil, false); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ChecksDirsAndSpace(t *testing.T) {
	swapStatfs(t, plentyOfSpace)
	cfg := testsupport.NewConfig(t)

	results := RunAll(cfg, false)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.OK {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestRunAll_IncludesYtDlpWhenNeeded(t *testing.T) {
	swapStatfs(t, plentyOfSpace)
	stubBinary(t, "yt-dlp")
	cfg := testsupport.NewConfig(t)

	results := RunAll(cfg, true)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	last := results[len(results)-1]
	if last.Name != "yt-dlp" || !last.OK {
		t.Fatalf("expected passing yt-dlp check, got %+v", last)
	}
}

func TestCheck_FoldsFailuresIntoError(t *testing.T) {
	swapStatfs(t, plentyOfSpace)
	cfg := config.Default()
	cfg.Paths.OutDir = filepath.Join(t.TempDir(), "missing")
	cfg.Paths.StateDir = t.TempDir()

	err := Check(&cfg, false)
	if err == nil {
		t.Fatal("expected failure for missing output dir")
	}
	if !strings.Contains(err.Error(), "Output directory") {
		t.Fatalf("error does not name the failed check: %v", err)
	}
}

func TestCheck_PassesOnHealthyConfig(t *testing.T) {
	swapStatfs(t, plentyOfSpace)
	cfg := testsupport.NewConfig(t)
	if err := Check(cfg, false); err != nil {
		t.Fatalf("Check: %v", err)
	}
}
