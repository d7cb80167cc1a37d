// Package testutil provides shared test helpers: temporary vaults and
// databases, and an in-memory repository whose calls can be held open to
// reproduce out-of-order responses.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/cleaan/internal/index"
	"github.com/starford/cleaan/internal/models"
	"github.com/starford/cleaan/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "cleaan-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage provider.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store
}

// Logger discards everything below error level.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ShoppingNotes is the two-note fixture used across controller tests.
func ShoppingNotes() []models.Note {
	return []models.Note{
		{ID: "1", Title: "Shopping list", Content: "milk, eggs", Tags: []models.Tag{{ID: "home", Name: "home"}}},
		{ID: "2", Title: "Project plan", Content: "milestones", Tags: []models.Tag{{ID: "work", Name: "work"}}},
	}
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

// Never fails if fn becomes true at any point during d.
func Never(t *testing.T, d, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if fn() {
			t.Error(msg)
			return
		}
		time.Sleep(tick)
	}
}
