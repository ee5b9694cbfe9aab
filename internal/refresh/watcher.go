// Package refresh reloads the personnel registry when its YAML files change on disk.
package refresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"orgpulse/internal/logging"
	"orgpulse/internal/personnel"
)

// ReloadFunc receives every successfully validated registry snapshot.
type ReloadFunc func(reg *personnel.Registry)

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Reloads       int
	Skipped       int
	Errors        int
	LastError     string
	LastReloadAt  time.Time
	LastEventPath string
}

// Watcher watches a registry directory, debounces bursts of writes, and hands
// a fresh Registry to the reload callback when the content digest changes.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dir      string
	debounce time.Duration
	onReload ReloadFunc
	logger   *zap.Logger

	digest    string
	lastEvent time.Time
	pending   bool
	stats     Stats

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher prepares a watcher for dir. The current directory content is
// taken as the baseline, so the first reload only happens after a change.
func NewWatcher(dir string, debounce time.Duration, onReload ReloadFunc, logger *zap.Logger) (*Watcher, error) {
	if onReload == nil {
		return nil, fmt.Errorf("reload callback is required")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	digest, err := registryDigest(dir)
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{
		watcher:  fsw,
		dir:      dir,
		debounce: debounce,
		onReload: onReload,
		logger:   logging.OrNop(logger).Named("refresh"),
		digest:   digest,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching in a goroutine. It is a no-op when already running.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("watching registry", zap.String("dir", w.dir), zap.Duration("debounce", w.debounce))

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("close fs watcher", zap.Error(err))
	}
}

// Stats returns a copy of the activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Check compares the directory digest to the last one seen and reloads when
// it differs. It reports whether a reload happened.
func (w *Watcher) Check() (bool, error) {
	digest, err := registryDigest(w.dir)
	if err != nil {
		w.recordError(err)
		return false, err
	}

	w.mu.Lock()
	unchanged := digest == w.digest
	if unchanged {
		w.stats.Skipped++
	}
	w.mu.Unlock()
	if unchanged {
		return false, nil
	}

	reg, err := personnel.LoadFromDir(w.dir)
	if err != nil {
		w.recordError(err)
		return false, fmt.Errorf("reload registry: %w", err)
	}

	w.mu.Lock()
	w.digest = digest
	w.stats.Reloads++
	w.stats.LastReloadAt = time.Now()
	w.mu.Unlock()

	w.logger.Info("registry reloaded", zap.Int("records", reg.Len()))
	w.onReload(reg)
	return true, nil
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 4
	if tick <= 0 {
		tick = 25 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.recordError(err)

		case <-ticker.C:
			w.processSettled()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !isRegistryFile(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.logger.Debug("registry event", zap.String("path", event.Name), zap.String("op", event.Op.String()))

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventPath = event.Name
	w.lastEvent = time.Now()
	w.pending = true
	w.mu.Unlock()
}

func (w *Watcher) processSettled() {
	w.mu.Lock()
	ready := w.pending && time.Since(w.lastEvent) >= w.debounce
	if ready {
		w.pending = false
	}
	w.mu.Unlock()
	if !ready {
		return
	}
	if _, err := w.Check(); err != nil {
		w.logger.Warn("registry reload rejected, keeping previous snapshot", zap.Error(err))
	}
}

func (w *Watcher) recordError(err error) {
	w.mu.Lock()
	w.stats.Errors++
	w.stats.LastError = err.Error()
	w.mu.Unlock()
}

func isRegistryFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}

// registryDigest hashes the names and contents of every registry file in dir.
func registryDigest(dir string) (string, error) {
	files, err := personnel.RegistryFiles(dir)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("open %s: %w", path, err)
		}
		_, _ = io.WriteString(h, filepath.Base(path))
		_, _ = h.Write([]byte{0})
		_, copyErr := io.Copy(h, f)
		_ = f.Close()
		if copyErr != nil {
			return "", fmt.Errorf("hash %s: %w", path, copyErr)
		}
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
