package logs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"podhaul/internal/logs"
)

func collectTail(t *testing.T, path string, opts logs.TailOptions) []string {
	t.Helper()
	var lines []string
	if err := logs.Tail(context.Background(), path, opts, func(line string) {
		lines = append(lines, line)
	}); err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	return lines
}

func TestTailLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "podhaul.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	lines := collectTail(t, path, logs.TailOptions{Limit: 2})
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
}

func TestTailWholeFileWhenLimitZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "podhaul.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	lines := collectTail(t, path, logs.TailOptions{})
	if len(lines) != 3 || lines[0] != "a" || lines[2] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
}

func TestTailMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "podhaul.log")

	lines := collectTail(t, path, logs.TailOptions{Limit: 10})
	if len(lines) != 0 {
		t.Fatalf("expected no lines, got %#v", lines)
	}
}

func TestTailRejectsDirectory(t *testing.T) {
	dir := t.TempDir()

	err := logs.Tail(context.Background(), dir, logs.TailOptions{Limit: 1}, func(string) {})
	if err == nil {
		t.Fatal("expected error for directory path")
	}
}

func TestTailFollowStreamsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "podhaul.log")
	if err := os.WriteFile(path, []byte("first\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lines := make(chan string, 16)
	done := make(chan error, 1)
	go func() {
		done <- logs.Tail(ctx, path, logs.TailOptions{Limit: 1, Follow: true, Poll: 10 * time.Millisecond}, func(line string) {
			lines <- line
		})
	}()

	waitFor := func(want string) {
		t.Helper()
		select {
		case got := <-lines:
			if got != want {
				t.Fatalf("line = %q, want %q", got, want)
			}
		case <-time.After(10 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	waitFor("first")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("second\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	waitFor("second")

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("tail returned %v, want context.Canceled", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tail did not stop after cancel")
	}
}
