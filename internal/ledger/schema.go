package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stamped into PRAGMA user_version when the schema is
// applied. The ledger is long-lived archive state, so releases that change
// the schema must migrate existing databases rather than recreate them.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by an incompatible release.
var ErrSchemaMismatch = errors.New("ledger schema mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read ledger version: %w", err)
	}

	switch {
	case version == schemaVersion:
		return nil
	case version == 0:
		// Fresh database, or a partially applied schema from an
		// interrupted first run. schema.sql is idempotent, so applying
		// it again covers both.
		return s.applySchema(ctx)
	default:
		return fmt.Errorf("%w: database reports version %d, this build expects %d",
			ErrSchemaMismatch, version, schemaVersion)
	}
}

// applySchema runs schema.sql and then stamps the version. The stamp comes
// last so an interrupted application leaves user_version at 0 and the next
// open finishes the job; idempotent DDL makes the un-transacted replay safe.
func (s *Store) applySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	stamp := fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)
	if _, err := s.db.ExecContext(ctx, stamp); err != nil {
		return fmt.Errorf("stamp ledger version: %w", err)
	}
	return nil
}
