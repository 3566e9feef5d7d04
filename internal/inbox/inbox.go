// Package inbox classifies bulk files dropped into a directory.
//
// For every new or rewritten koi.csv (or koi.parquet) the watcher writes
// koi.csv.results.csv beside it, or koi.csv.error.txt when the file cannot be
// parsed or classified. The input extension stays in the name so koi.csv and
// koi.parquet never share an output.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zeto-space/exoclassify/internal/bulk"
	"github.com/zeto-space/exoclassify/internal/export"
	"github.com/zeto-space/exoclassify/internal/logging"
	"github.com/zeto-space/exoclassify/internal/pipeline"
	"github.com/zeto-space/exoclassify/internal/schema"
)

const (
	resultsSuffix = ".results.csv"
	errorSuffix   = ".error.txt"
)

// Analyzer classifies a batch. *pipeline.Service implements it.
type Analyzer interface {
	AnalyzeBatch(ctx context.Context, records []schema.Record) (pipeline.BatchResult, error)
}

// Watcher turns files in Dir into result files.
type Watcher struct {
	dir      string
	analyzer Analyzer
	log      *slog.Logger
	// Debounce waits for writes to settle before a file is read.
	Debounce time.Duration
	// ScanExisting processes inputs already present that have no result yet.
	ScanExisting bool
}

// New prepares a watcher for dir, creating it if needed.
func New(dir string, analyzer Analyzer) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create inbox dir: %w", err)
	}
	return &Watcher{
		dir:      dir,
		analyzer: analyzer,
		log:      logging.New("inbox"),
		Debounce: 500 * time.Millisecond,
	}, nil
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.log.Info("Watching inbox", "dir", w.dir)

	if w.ScanExisting {
		w.scan(ctx)
	}

	pending := make(map[string]time.Time)
	tick := 100 * time.Millisecond
	if w.Debounce > 0 {
		tick = min(w.Debounce, tick)
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Inbox watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if IsInput(event.Name) {
				pending[event.Name] = time.Now()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("Watcher error", "err", err)

		case now := <-ticker.C:
			for path, seen := range pending {
				if now.Sub(seen) < w.Debounce {
					continue
				}
				delete(pending, path)
				_ = w.Process(ctx, path)
			}
		}
	}
}

func (w *Watcher) scan(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Error("Failed to scan inbox", "err", err)
		return
	}
	for _, e := range entries {
		path := filepath.Join(w.dir, e.Name())
		if e.IsDir() || !IsInput(path) {
			continue
		}
		if _, err := os.Stat(ResultsPath(path)); err == nil {
			continue
		}
		_ = w.Process(ctx, path)
	}
}

// Process classifies one file and writes its result or error file.
// The returned error has already been recorded on disk.
func (w *Watcher) Process(ctx context.Context, path string) error {
	start := time.Now()
	err := w.process(ctx, path)
	if err != nil {
		w.log.Error("Inbox file failed", "file", path, "err", err)
		if werr := os.WriteFile(ErrorPath(path), []byte(err.Error()+"\n"), 0644); werr != nil {
			w.log.Error("Failed to write error file", "file", path, "err", werr)
		}
		return err
	}
	// A stale error from an earlier attempt no longer applies.
	if rerr := os.Remove(ErrorPath(path)); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
		w.log.Warn("Failed to remove old error file", "file", path, "err", rerr)
	}
	w.log.Info("Inbox file classified", "file", path, "results", ResultsPath(path), "duration", time.Since(start))
	return nil
}

func (w *Watcher) process(ctx context.Context, path string) error {
	records, err := bulk.Load(path)
	if err != nil {
		return err
	}
	result, err := w.analyzer.AnalyzeBatch(ctx, records)
	if err != nil {
		return err
	}
	text, err := export.ToDelimitedText(result.Rows())
	if err != nil {
		return err
	}

	// Write then rename so readers never see a partial file.
	out := ResultsPath(path)
	tmp := out + ".tmp"
	if err := os.WriteFile(tmp, []byte(text+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return os.Rename(tmp, out)
}

// IsInput reports whether path is a bulk file the watcher should classify.
func IsInput(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, resultsSuffix) || strings.HasPrefix(name, ".") {
		return false
	}
	switch filepath.Ext(name) {
	case ".csv", ".parquet":
		return true
	}
	return false
}

// ResultsPath is where the results for input path are written.
func ResultsPath(path string) string { return path + resultsSuffix }

// ErrorPath is where a failure for input path is written.
func ErrorPath(path string) string { return path + errorSuffix }
