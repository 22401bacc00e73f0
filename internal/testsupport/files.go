package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"podhaul/internal/safename"
)

// WriteFile creates path (and its parents) holding size bytes of filler so
// tests can stage already-downloaded media. A size <= 0 writes one byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if size <= 0 {
		size = 1
	}
	mustWrite(t, path, bytes.Repeat([]byte{0x42}, int(size)))
}

// WritePartial stages an interrupted transfer: the .part sibling of path
// holding the first size bytes of payload.
func WritePartial(t testing.TB, path string, payload []byte, size int) {
	t.Helper()
	if size > len(payload) {
		size = len(payload)
	}
	mustWrite(t, path+safename.PartSuffix, payload[:size])
}

func mustWrite(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create parent of %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
