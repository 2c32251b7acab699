// Package inbox watches a directory for exported form documents and imports
// each one into a session.
package inbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/prefcenter/internal/session"
)

// Subdirectories documents are moved into once handled.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// settleDelay is how long a file must be quiet before it is imported.
const settleDelay = 200 * time.Millisecond

// Importer applies an exported document. *session.Controller satisfies it.
type Importer interface {
	Import(ctx context.Context, r io.Reader) (session.Notice, error)
}

// ResultCallback is called after each document is handled. err is nil on
// a successful import.
type ResultCallback func(name string, err error)

// Watch imports every *.json document already in dir, then watches dir and
// imports documents as they arrive, until ctx is cancelled. Imported files
// move to dir/processed, rejected ones to dir/failed.
//
// Writes are debounced: a document is imported once no event has touched it
// for settleDelay, so partially written files are not read.
func Watch(ctx context.Context, dir string, target Importer, logger *slog.Logger, cb ResultCallback) error {
	for _, sub := range []string{ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("inbox: create %s dir: %w", sub, err)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", dir, err)
	}

	logger.Info("inbox: started", slog.String("dir", dir))

	existing, err := pendingDocuments(dir)
	if err != nil {
		logger.Warn("inbox: initial scan failed", slog.String("error", err.Error()))
	}
	for _, path := range existing {
		handle(ctx, dir, path, target, logger, cb)
	}

	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	scheduleSettle := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("inbox: stopped")
			return nil

		case <-settleCh:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			for _, p := range paths {
				handle(ctx, dir, p, target, logger, cb)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isDocument(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				pending[ev.Name] = struct{}{}
				scheduleSettle()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox: error", slog.String("error", watchErr.Error()))
		}
	}
}

// handle imports one document and files it away.
func handle(ctx context.Context, dir, path string, target Importer, logger *slog.Logger, cb ResultCallback) {
	name := filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		// Vanished before it settled.
		logger.Debug("inbox: skip", slog.String("file", name), slog.String("error", err.Error()))
		return
	}
	_, importErr := target.Import(ctx, f)
	f.Close()

	dest := ProcessedDir
	if importErr != nil {
		dest = FailedDir
		logger.Warn("inbox: import failed", slog.String("file", name), slog.String("error", importErr.Error()))
	} else {
		logger.Info("inbox: imported", slog.String("file", name))
	}

	if err := os.Rename(path, uniquePath(filepath.Join(dir, dest), name)); err != nil {
		logger.Warn("inbox: move failed", slog.String("file", name), slog.String("error", err.Error()))
	}
	if cb != nil {
		cb(name, importErr)
	}
}

// pendingDocuments lists the documents waiting in dir, sorted by name.
func pendingDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && isDocument(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// isDocument reports whether path names a visible .json file.
func isDocument(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}

// uniquePath returns dir/name, or dir/<stem>-<n><ext> if that already exists.
func uniquePath(dir, name string) string {
	candidate := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, n, ext))
	}
}
