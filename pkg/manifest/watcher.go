// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package manifest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher calls a function whenever one of a set of manifest files is
// written. Bursts of writes are coalesced into one call.
type Watcher struct {
	files    map[string]bool
	dirs     []string
	onChange func()
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger

	// debounceDelay is the quiet period after the last write before onChange runs.
	debounceDelay time.Duration

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a watcher for paths. fsnotify watches directories, so
// the parent directory of every manifest is watched.
func NewWatcher(paths []string, onChange func(), logger zerolog.Logger) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no manifests to watch")
	}
	files := make(map[string]bool, len(paths))
	seenDirs := make(map[string]bool)
	var dirs []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		files[abs] = true
		if dir := filepath.Dir(abs); !seenDirs[dir] {
			seenDirs[dir] = true
			dirs = append(dirs, dir)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		files:         files,
		dirs:          dirs,
		onChange:      onChange,
		watcher:       fw,
		debounceDelay: 100 * time.Millisecond,
		logger:        logger.With().Str("component", "manifest.watcher").Logger(),
	}, nil
}

// Start watches until ctx is canceled. It blocks; run it in its own goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Error().Err(err).Str("dir", dir).Msg("Failed to watch manifest directory")
			return err
		}
	}
	w.logger.Info().Int("manifests", len(w.files)).Dur("debounce", w.debounceDelay).Msg("Watching manifests")

	defer func() {
		w.mu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()
		if err := w.watcher.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("Error closing watcher")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.files[filepath.Clean(event.Name)] {
				continue
			}
			// editors often replace files, which shows up as create
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.logger.Debug().Str("op", event.Op.String()).Str("file", event.Name).Msg("Manifest changed")
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.onChange)
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
