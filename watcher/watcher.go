// Package watcher turns file system notifications in the Core Temp log
// directory into wake-ups for the tailer.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Watcher reports writes to log files in a directory. Notifications are
// coalesced: Changes holds at most one pending signal.
type Watcher struct {
	fsw     *fsnotify.Watcher
	pattern string
	logger  *slog.Logger
	Changes chan struct{}
}

// New watches dir for files whose base name matches pattern.
func New(dir, pattern string, logger *slog.Logger) (*Watcher, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("log pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	if err := fsw.Add(abs); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", abs, err)
	}

	return &Watcher{
		fsw:     fsw,
		pattern: pattern,
		logger:  logger.With(slog.String("component", "watcher"), slog.String("dir", abs)),
		Changes: make(chan struct{}, 1),
	}, nil
}

// Start forwards relevant events until ctx is cancelled, then releases the
// underlying watcher.
func (w *Watcher) Start(ctx context.Context) {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if match, _ := doublestar.Match(w.pattern, filepath.Base(ev.Name)); !match {
				continue
			}
			w.logger.Debug("log changed", slog.String("file", ev.Name), slog.String("op", ev.Op.String()))
			select {
			case w.Changes <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", slog.Any("error", err))
		}
	}
}
