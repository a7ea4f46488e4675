// Package watch observes a directory for newly-created files and fans each
// one out as an independent upload session, using a bounded errgroup worker
// pool repurposed from "diff local vs remote tree" to "watch a drop folder"
// — there is no reconciliation model here, only detect-and-enqueue.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// QueueEntry is one file discovered by the watcher before it is handed to a
// Session (SPEC_FULL.md §3).
type QueueEntry struct {
	Path       string
	DetectedAt time.Time
}

// debounce is how long a path must go quiet (no further fsnotify events)
// before it is considered a stable, complete file ready for upload. This
// absorbs write-then-rename sequences that many editors and browsers use
// when saving a file into a watched directory.
const debounce = 500 * time.Millisecond

// Watcher watches one directory (non-recursive) for file creation and
// rename-into-directory events and delivers a debounced QueueEntry for each.
type Watcher struct {
	dir     string
	logger  *slog.Logger
	fsw     *fsnotify.Watcher
	entries chan QueueEntry
}

// New starts watching dir. Callers must call Close when done.
func New(dir string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating fsnotify watcher: %w", err)
	}

	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch: watching directory %s: %w", dir, err)
	}

	w := &Watcher{
		dir:     dir,
		logger:  logger,
		fsw:     fsw,
		entries: make(chan QueueEntry),
	}

	go w.debounceLoop()

	return w, nil
}

// Entries returns the channel of debounced, ready-to-upload files.
func (w *Watcher) Entries() <-chan QueueEntry {
	return w.entries
}

// Close stops the underlying fsnotify watcher. The debounce loop closes the
// Entries channel once it sees the fsnotify event stream end; Close itself
// does not drain Entries.
func (w *Watcher) Close() error {
	err := w.fsw.Close()

	return err
}

// debounceLoop coalesces bursts of fsnotify events per-path into a single
// QueueEntry emitted debounce after the last event for that path.
func (w *Watcher) debounceLoop() {
	defer close(w.entries)

	timers := make(map[string]*time.Timer)
	fire := make(chan string)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				for _, t := range timers {
					t.Stop()
				}

				return
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			path := ev.Name

			if t, exists := timers[path]; exists {
				t.Stop()
			}

			timers[path] = time.AfterFunc(debounce, func() {
				fire <- path
			})

		case path := <-fire:
			delete(timers, path)
			w.entries <- QueueEntry{Path: path, DetectedAt: time.Now()}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				continue
			}

			w.logger.Warn("watch: fsnotify error", slog.String("error", err.Error()))
		}
	}
}

// FanOut drives each QueueEntry arriving on entries through handler, running
// up to maxConcurrent handlers at once. A handler error cancels the
// remaining in-flight and queued work and is returned once all workers have
// exited (standard errgroup.WithContext semantics).
func FanOut(ctx context.Context, entries <-chan QueueEntry, maxConcurrent int, handler func(context.Context, QueueEntry) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for {
		select {
		case <-gctx.Done():
			return g.Wait()
		case entry, ok := <-entries:
			if !ok {
				return g.Wait()
			}

			g.Go(func() error {
				return handler(gctx, entry)
			})
		}
	}
}
