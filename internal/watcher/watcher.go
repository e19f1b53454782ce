// Package watcher watches an inbox directory for feedback payload files and
// hands each new or changed file to a handler once writes have settled.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before it is handled.
const DefaultDebounce = 500 * time.Millisecond

// Handler processes one settled payload file.
type Handler func(ctx context.Context, path string)

// Config configures the inbox watcher.
type Config struct {
	// Dir is watched recursively; subdirectories created later are added.
	Dir     string
	Handler Handler
	Logger  *slog.Logger
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
	// Extensions lists the payload file extensions, lower-case with the dot.
	// Defaults to .yaml, .yml and .json.
	Extensions []string
}

// Watcher hands payload files dropped into a directory to a Handler.
// A file is handled again only when its content changes.
type Watcher struct {
	dir        string
	handler    Handler
	logger     *slog.Logger
	extensions []string

	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer

	// Content hashing to skip events that do not change a file
	hashes   map[string]string
	hashesMu sync.Mutex

	ctx      context.Context
	inflight sync.WaitGroup
	stopMu   sync.Mutex
	stopped  bool
	done     chan struct{}
}

// New creates a watcher. Call Start to begin watching.
func New(cfg *Config) (*Watcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("inbox directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox %s is not a directory", cfg.Dir)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	extensions := cfg.Extensions
	if len(extensions) == 0 {
		extensions = []string{".yaml", ".yml", ".json"}
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		dir:        filepath.Clean(cfg.Dir),
		handler:    cfg.Handler,
		logger:     logger,
		extensions: extensions,
		fsWatcher:  fsWatcher,
		hashes:     make(map[string]string),
		ctx:        context.Background(),
		done:       make(chan struct{}),
	}
	w.debouncer = NewDebouncer(debounce, w.handleSettled)
	return w, nil
}

// Start watches until ctx is cancelled, then waits for running handlers.
// Files already in the directory are recorded but not handled.
func (w *Watcher) Start(ctx context.Context) error {
	w.ctx = ctx

	if err := w.addWatchRecursive(w.dir, true); err != nil {
		_ = w.Stop()
		return err
	}
	w.logger.Info("watching inbox", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inbox watcher stopping", "reason", "context cancelled")
			_ = w.Stop()
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFSEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("fsnotify error", "error", err)
		}
	}
}

// Stop shuts the watcher down and waits for handlers already running.
func (w *Watcher) Stop() error {
	w.stopMu.Lock()
	if w.stopped {
		w.stopMu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.done)
	w.stopMu.Unlock()

	w.debouncer.Stop()
	err := w.fsWatcher.Close()
	w.inflight.Wait()
	w.logger.Debug("inbox watcher stopped")
	if err != nil {
		return fmt.Errorf("close fsnotify watcher: %w", err)
	}
	return nil
}

// Done returns a channel that's closed when the watcher stops.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// addWatchRecursive watches dir and its subdirectories. With seed set,
// existing payload files are hashed so only later changes are handled.
func (w *Watcher) addWatchRecursive(dir string, seed bool) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil // Skip unreadable entries
		}
		if d.IsDir() {
			if err := w.fsWatcher.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			w.logger.Debug("watching directory", "path", path)
			return nil
		}
		if w.isPayload(path) {
			if seed {
				if _, err := w.hasContentChanged(path); err != nil {
					w.logger.Debug("failed to hash existing payload", "path", path, "error", err)
				}
			} else {
				w.debouncer.Trigger(path)
			}
		}
		return nil
	})
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			// Files may land in the new directory before the watch is added
			if err := w.addWatchRecursive(path, false); err != nil {
				w.logger.Warn("failed to watch new directory", "path", path, "error", err)
			}
			return
		}
	}

	if !w.isPayload(path) {
		return
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.debouncer.Cancel(path)
		w.removeHash(path)
		return
	}

	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
		w.logger.Debug("payload event", "op", event.Op.String(), "path", path)
		w.debouncer.Trigger(path)
	}
}

// handleSettled runs on the debouncer's timer once path is quiet.
func (w *Watcher) handleSettled(path string) {
	changed, err := w.hasContentChanged(path)
	if err != nil {
		w.logger.Debug("payload vanished before handling", "path", path, "error", err)
		return
	}
	if !changed {
		return
	}

	w.stopMu.Lock()
	if w.stopped {
		w.stopMu.Unlock()
		return
	}
	w.inflight.Add(1)
	w.stopMu.Unlock()
	defer w.inflight.Done()
	w.handler(w.ctx, path)
}

func (w *Watcher) isPayload(path string) bool {
	base := filepath.Base(path)
	// Editor swap files and dotfiles
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// hasContentChanged reports whether path's content differs from the last
// time it was seen, and records the new hash.
func (w *Watcher) hasContentChanged(path string) (bool, error) {
	newHash, err := hashFile(path)
	if err != nil {
		return false, err
	}

	w.hashesMu.Lock()
	defer w.hashesMu.Unlock()

	oldHash, exists := w.hashes[path]
	if exists && oldHash == newHash {
		return false, nil
	}
	w.hashes[path] = newHash
	return true, nil
}

func (w *Watcher) removeHash(path string) {
	w.hashesMu.Lock()
	defer w.hashesMu.Unlock()
	delete(w.hashes, path)
}

// hashFile computes the SHA256 hash of a file's contents.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
