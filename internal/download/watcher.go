// Package download waits for the browser to drop the report into a scratch
// directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrTimeout is returned when no matching file shows up within the polling window.
var ErrTimeout = errors.New("download timeout")

// Watcher polls Dir for the first file ending in Extension.
//
// Completion is judged by time, not content: once a file is seen the watcher
// waits Settle before handing it over, which covers the window where the
// browser has created the file but is still writing it.
type Watcher struct {
	Dir         string
	Extension   string
	Interval    time.Duration
	MaxAttempts int
	Settle      time.Duration
	Logger      *slog.Logger
}

// Prepare makes sure Dir exists and holds no files from an earlier run, so a
// stale report can never be mistaken for the new one.
func (w *Watcher) Prepare() error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create download dir: %w", err)
	}
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return fmt.Errorf("failed to list download dir: %w", err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(w.Dir, e.Name())); err != nil {
			return fmt.Errorf("failed to clear %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Scratch creates a fresh, empty directory under Dir for a single run and
// returns a Watcher bound to it. Runs sharing Dir never see each other's
// downloads. The caller removes it with Discard.
func (w *Watcher) Scratch() (*Watcher, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}
	dir, err := os.MkdirTemp(w.Dir, "run-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create run dir: %w", err)
	}
	run := *w
	run.Dir = dir
	return &run, nil
}

// Discard removes Dir and everything in it.
func (w *Watcher) Discard() error {
	return os.RemoveAll(w.Dir)
}

// Wait blocks until a matching file has appeared and settled, returning its path.
func (w *Watcher) Wait(ctx context.Context) (string, error) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		name, err := w.find()
		if err != nil {
			return "", err
		}
		if name != "" {
			w.logger().Debug("download sighted", "file", name, "attempt", attempt)
			if err := sleep(ctx, w.Settle); err != nil {
				return "", err
			}
			return filepath.Join(w.Dir, name), nil
		}
		if attempt >= w.MaxAttempts {
			return "", fmt.Errorf("%w: no %s file in %s after %d attempts", ErrTimeout, w.Extension, w.Dir, attempt)
		}
	}
}

func (w *Watcher) find() (string, error) {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return "", fmt.Errorf("failed to list download dir: %w", err)
	}
	ext := strings.ToLower(w.Extension)
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return e.Name(), nil
		}
	}
	return "", nil
}

func (w *Watcher) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
