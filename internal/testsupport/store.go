package testsupport

import (
	"path/filepath"
	"testing"

	"podhaul/internal/ledger"
)

// MustOpenStore opens a ledger against a fresh temp database and registers
// cleanup.
func MustOpenStore(t testing.TB) *ledger.Store {
	t.Helper()
	return MustOpenStoreAt(t, filepath.Join(t.TempDir(), "podhaul.db"))
}

// MustOpenStoreAt opens a ledger at the given path and registers cleanup.
// Pipeline tests use it to share a database with a config's state dir.
func MustOpenStoreAt(t testing.TB, path string) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("open ledger at %s: %v", path, err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
