package journal

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in the SQLite user_version header field.
const schemaVersion = 1

// journalTables must exist in every journal with a current version.
var journalTables = []string{"jobs", "reports"}

// ErrSchemaMismatch reports a journal this build cannot use.
var ErrSchemaMismatch = errors.New("journal schema mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read journal version: %w", err)
	}
	switch {
	case version == 0:
		return s.createSchema(ctx)
	case version > schemaVersion:
		return fmt.Errorf("%w: %s was written by a newer weft (version %d, this build reads %d)",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	case version < schemaVersion:
		return fmt.Errorf("%w: %s has version %d, expected %d; move it aside to start a fresh journal",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
	return s.verifyTables(ctx)
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	// PRAGMA arguments cannot be bound.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("record journal version: %w", err)
	}
	return tx.Commit()
}

func (s *Store) verifyTables(ctx context.Context) error {
	for _, table := range journalTables {
		var n int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("inspect journal: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s is missing table %q", ErrSchemaMismatch, s.path, table)
		}
	}
	return nil
}
