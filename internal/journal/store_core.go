package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"weft/internal/config"
)

// Store is the worker's SQLite journal of claimed jobs and sent reports.
type Store struct {
	db   *sql.DB
	path string
}

// The worker writes while `weft jobs` reads from another process, so a
// locked database is expected and retried briefly before giving up.
const (
	lockedRetries     = 5
	lockedBackoff     = 10 * time.Millisecond
	lockedMaxBackoff  = 200 * time.Millisecond
	busyTimeoutMillis = 5000
)

// journalPragmas are applied to every connection opened by Open.
var journalPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = ON",
	fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMillis),
}

// Open opens the journal at the configured state directory, creating the
// directory and schema on first use.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("journal: config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return openPath(context.Background(), cfg.JournalPath())
}

func openPath(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// One writer per process; reads share the same connection so the
	// pragmas above hold for every statement.
	db.SetMaxOpenConns(1)

	for _, pragma := range journalPragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal %s: %s: %w", path, pragma, err)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the journal file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the journal.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isLocked(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// execWithRetry runs a write, retrying while another process holds the lock.
func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	delay := lockedBackoff
	for attempt := 1; ; attempt++ {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err == nil || !isLocked(err) || attempt == lockedRetries {
			return res, err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, lockedMaxBackoff)
	}
}
