package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/wakeline/internal/config"
)

const (
	infoYAML  = minimalYAML + "server:\n  log_level: info\n"
	debugYAML = minimalYAML + "server:\n  log_level: debug\n"
	badYAML   = "server:\n  log_level: bananas\n"
)

// configFile writes content to a fresh file and returns its path.
func configFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wakeline.yaml")
	rewrite(t, path, content)
	return path
}

// rewrite replaces the file and moves its mtime forward so the change is
// visible on filesystems with coarse timestamps.
func rewrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	bump(t, path)
}

func bump(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	later := info.ModTime().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
}

type change struct{ old, new *config.Config }

func TestWatcher_Reload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		next        string // empty touches the file without rewriting it
		wantChanged bool
		wantErr     bool
		wantLevel   config.LogLevel
	}{
		{name: "content changed", next: debugYAML, wantChanged: true, wantLevel: config.LogDebug},
		{name: "same content", next: infoYAML, wantLevel: config.LogInfo},
		{name: "touched only", wantLevel: config.LogInfo},
		{name: "invalid file", next: badYAML, wantErr: true, wantLevel: config.LogInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := configFile(t, infoYAML)
			var got []change
			w, err := config.NewWatcher(path, func(old, new *config.Config) {
				got = append(got, change{old, new})
			})
			if err != nil {
				t.Fatalf("NewWatcher: %v", err)
			}

			if tt.next == "" {
				bump(t, path)
			} else {
				rewrite(t, path, tt.next)
			}
			changed, err := w.Reload()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Reload err = %v, wantErr %v", err, tt.wantErr)
			}
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if lvl := w.Current().Server.LogLevel; lvl != tt.wantLevel {
				t.Errorf("Current log_level = %q, want %q", lvl, tt.wantLevel)
			}

			if !tt.wantChanged {
				if len(got) != 0 {
					t.Errorf("callback fired %d times", len(got))
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("callback fired %d times, want 1", len(got))
			}
			if got[0].old.Server.LogLevel != config.LogInfo || got[0].new != w.Current() {
				t.Errorf("callback got old=%q new=%p, current=%p",
					got[0].old.Server.LogLevel, got[0].new, w.Current())
			}
		})
	}
}

func TestWatcher_Run(t *testing.T) {
	t.Parallel()
	path := configFile(t, infoYAML)

	changed := make(chan *config.Config, 1)
	w, err := config.NewWatcher(path, func(_, new *config.Config) {
		changed <- new
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	rewrite(t, path, debugYAML)
	select {
	case cfg := <-changed:
		if cfg.Server.LogLevel != config.LogDebug {
			t.Errorf("new log_level = %q", cfg.Server.LogLevel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload within 2s")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run = %v, want nil", err)
	}
}

func TestNewWatcher_Errors(t *testing.T) {
	t.Parallel()
	for name, path := range map[string]string{
		"missing": filepath.Join(t.TempDir(), "missing.yaml"),
		"invalid": configFile(t, badYAML),
	} {
		if _, err := config.NewWatcher(path, nil); err == nil {
			t.Errorf("%s: NewWatcher succeeded", name)
		}
	}
}
