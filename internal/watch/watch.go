// Package watch re-probes an install directory whenever its contents change.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/greenwave/gwupdate/internal/probe"
	"github.com/greenwave/gwupdate/internal/types"
)

// DefaultDebounce collapses bursts of filesystem events into one probe.
const DefaultDebounce = 500 * time.Millisecond

// ProbeFunc probes one directory.
type ProbeFunc func(ctx context.Context, dir string) probe.Result

// Watcher reports the probe result of a directory each time it changes.
type Watcher struct {
	dir      string
	probe    ProbeFunc
	debounce time.Duration
	logger   *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period after the last event before re-probing.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a Watcher for dir.
func New(dir string, fn ProbeFunc, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		probe:    fn,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run probes once, then again after every burst of changes, calling emit
// whenever the result differs from the previous one. emit runs on the
// calling goroutine. Run returns nil when ctx is cancelled, or the first
// error from emit.
func (w *Watcher) Run(ctx context.Context, emit func(probe.Result) error) error {
	// The first probe creates a missing directory so it can be watched.
	last := w.probe(ctx, w.dir)
	if err := emit(last); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching install directory", zap.String("dir", w.dir))

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("watcher stopped", zap.String("dir", w.dir))
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.logger.Debug("directory changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))

			// Debounce: reset timer on each event
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Stop()
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			res := w.probe(ctx, w.dir)
			if res.Status == types.StatusNewDir {
				// The directory was removed and recreated by the probe.
				if err := watcher.Add(w.dir); err != nil {
					w.logger.Warn("failed to re-watch directory", zap.String("dir", w.dir), zap.Error(err))
				}
			}
			if res == last {
				continue
			}
			last = res
			if err := emit(res); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}
