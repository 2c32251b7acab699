// Package testutil provides shared test helpers for stores, sessions and
// asynchronous assertions.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/prefcenter/internal/session"
	"github.com/starford/prefcenter/internal/storage"
)

// TestSQLite opens a SQLite store in a temp dir that is closed on cleanup.
func TestSQLite(t *testing.T) storage.Provider {
	t.Helper()
	store, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "prefcenter.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestFS creates a temporary FS store and returns its root.
func TestFS(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestSession returns the default-session controller of a fresh manager
// over store.
func TestSession(t *testing.T, store storage.Provider) *session.Controller {
	t.Helper()
	mgr := session.NewManager(store, session.ManagerConfig{Logger: Logger()})
	ctrl, err := mgr.Get(t.Context(), session.DefaultSessionID)
	if err != nil {
		t.Fatal(err)
	}
	return ctrl
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
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
