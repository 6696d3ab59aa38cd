package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault coalesces the write+rename pair an atomic update produces
// into a single notification.
const debounceDefault = 50 * time.Millisecond

// pollDefault is the fallback polling interval when fsnotify is unavailable.
const pollDefault = time.Second

// Watcher reports changes to the store's files. The handler receives the
// base filename (RequestFile or DecisionFile).
type Watcher struct {
	dir      string
	handler  func(file string)
	debounce time.Duration
}

// NewWatcher creates a watcher for the store directory.
func NewWatcher(s *Store, handler func(file string)) *Watcher {
	return &Watcher{
		dir:      s.dir,
		handler:  handler,
		debounce: debounceDefault,
	}
}

// Run watches for file changes. Blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}

	// ready accumulates changed files; one timer flushes the batch.
	var mu sync.Mutex
	ready := make(map[string]bool)

	flush := func() {
		mu.Lock()
		batch := make([]string, 0, len(ready))
		for f := range ready {
			batch = append(batch, f)
		}
		ready = make(map[string]bool)
		mu.Unlock()

		for _, f := range batch {
			w.handler(f)
		}
	}

	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()
	defer debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-debounceTimer.C:
			flush()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Base(event.Name)
			if !isStoreFile(name) {
				continue
			}

			mu.Lock()
			ready[name] = true
			mu.Unlock()

			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			_ = err
		}
	}
}

// PollWatcher reports store file changes by polling modification times.
// Fallback for filesystems where fsnotify does not deliver (e.g. NFS).
type PollWatcher struct {
	dir      string
	handler  func(file string)
	interval time.Duration
	seen     map[string]time.Time
}

// NewPollWatcher creates a polling watcher for the store directory.
func NewPollWatcher(s *Store, handler func(file string), interval time.Duration) *PollWatcher {
	if interval == 0 {
		interval = pollDefault
	}
	return &PollWatcher{
		dir:      s.dir,
		handler:  handler,
		interval: interval,
		seen:     make(map[string]time.Time),
	}
}

// Run polls the store directory. Blocks until ctx is cancelled.
func (w *PollWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.prime()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.scan()
		}
	}
}

// prime records current modtimes so only subsequent changes fire.
func (w *PollWatcher) prime() {
	for _, name := range []string{RequestFile, DecisionFile} {
		if info, err := os.Stat(filepath.Join(w.dir, name)); err == nil {
			w.seen[name] = info.ModTime()
		}
	}
}

func (w *PollWatcher) scan() {
	for _, name := range []string{RequestFile, DecisionFile} {
		info, err := os.Stat(filepath.Join(w.dir, name))
		if err != nil {
			continue
		}
		if last, ok := w.seen[name]; ok && !info.ModTime().After(last) {
			continue
		}
		w.seen[name] = info.ModTime()
		w.handler(name)
	}
}

// isStoreFile filters out .tmp partial writes and unrelated files.
func isStoreFile(name string) bool {
	if strings.HasSuffix(name, ".tmp") {
		return false
	}
	return name == RequestFile || name == DecisionFile
}
