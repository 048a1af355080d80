package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const defaultPollInterval = 5 * time.Second

// Watcher keeps the latest valid version of a config file. Run polls the
// file's mtime; Reload forces a read. Either way the change callback fires
// only when the parsed content actually differs by hash, and an invalid file
// leaves the previous config in place.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	cur atomic.Pointer[Config]

	// mu serialises reloads and guards seen.
	mu   sync.Mutex
	seen fileStamp
}

// fileStamp identifies one version of the file on disk.
type fileStamp struct {
	mtime time.Time
	sum   [sha256.Size]byte
}

// WatcherOption customises a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval overrides the 5 s polling interval. Non-positive values are
// ignored.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher reads path once and fails if it is not a valid config.
// onChange may be nil.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: defaultPollInterval, onChange: onChange}
	for _, opt := range opts {
		opt(w)
	}
	cfg, stamp, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.cur.Store(cfg)
	w.seen = stamp
	return w, nil
}

// Current is safe to call from any goroutine, including the callback.
func (w *Watcher) Current() *Config { return w.cur.Load() }

// Run polls until ctx ends and returns nil. Failed polls are logged.
func (w *Watcher) Run(ctx context.Context) error {
	tick := time.NewTicker(w.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if !w.modified() {
				continue
			}
			if _, err := w.Reload(); err != nil {
				slog.Warn("config reload failed; keeping previous config", "path", w.path, "err", err)
			}
		}
	}
}

// modified reports whether the mtime moved since the last read.
func (w *Watcher) modified() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher stat failed", "path", w.path, "err", err)
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return !info.ModTime().Equal(w.seen.mtime)
}

// Reload reads the file now and reports whether the config changed. The
// callback has returned by the time Reload does.
func (w *Watcher) Reload() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cfg, stamp, err := w.read()
	if err != nil {
		return false, err
	}
	same := stamp.sum == w.seen.sum
	w.seen = stamp
	if same {
		return false, nil
	}
	old := w.cur.Swap(cfg)
	slog.Info("configuration reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
	return true, nil
}

func (w *Watcher) read() (*Config, fileStamp, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fileStamp{}, err
	}
	return cfg, fileStamp{mtime: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
