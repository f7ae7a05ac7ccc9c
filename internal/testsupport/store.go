package testsupport

import (
	"context"
	"testing"

	"weft/internal/config"
	"weft/internal/journal"
)

// MustOpenJournal opens a journal.Store for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Store {
	t.Helper()

	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob records a claimed job for tests using the provided store.
func NewJob(t testing.TB, store *journal.Store, workspace, operation string) *journal.Job {
	t.Helper()

	job, err := store.NewJob(context.Background(), "corr-"+workspace, workspace, operation, "test-region")
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}
