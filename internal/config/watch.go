// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchDebounce is how long Watch waits after the last write before
// reloading. Editors often write a file in several steps.
var WatchDebounce = 250 * time.Millisecond

// Watch reloads path whenever it changes and calls fn with the new,
// validated config. Invalid files are logged and skipped; the previous
// config stays in effect. Watch returns once the watcher is running and
// stops when ctx is cancelled.
//
// The parent directory is watched rather than the file so that atomic
// replace-by-rename saves are seen.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	log := slog.Default().With("component", "config", "path", absPath)
	go watchLoop(ctx, watcher, absPath, WatchDebounce, fn, log)
	return nil
}

func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, debounce time.Duration, fn func(*Config), log *slog.Logger) {
	defer watcher.Close()

	// Stopped timer; armed on each relevant event.
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn("config watcher error", "error", err)

		case <-timer.C:
			cfg, err := LoadFromPath(path)
			if err != nil {
				log.Warn("config reload failed, keeping previous config", "error", err)
				continue
			}
			log.Info("config reloaded")
			fn(cfg)
		}
	}
}
