// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/apispec/services/apispec/config"
	"github.com/AleutianAI/apispec/services/apispec/scan"
)

// Watcher reports source, version file and project config changes under a root.
//
// Thread Safety: Run must be called at most once.
type Watcher struct {
	fsw         *fsnotify.Watcher
	root        string
	ext         string
	versionFile string
	exclude     map[string]bool
	logger      *slog.Logger
}

// NewWatcher watches every directory under root except excluded ones.
func NewWatcher(root string, cfg config.Config, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	excludeDirs := cfg.ExcludeDirs
	if excludeDirs == nil {
		excludeDirs = scan.DefaultExcludeDirs
	}
	exclude := make(map[string]bool, len(excludeDirs))
	for _, d := range excludeDirs {
		exclude[d] = true
	}
	ext := cfg.Extension
	if ext == "" {
		ext = scan.DefaultExtension
	}

	w := &Watcher{
		fsw:         fsw,
		root:        root,
		ext:         ext,
		versionFile: filepath.Clean(config.Resolve(root, cfg.VersionFile)),
		exclude:     exclude,
		logger:      logger,
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree adds dir and its non-excluded subdirectories. Unreadable
// subdirectories are logged and skipped.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			w.logger.Warn("cannot watch path, skipping", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.exclude[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("cannot watch directory", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})
}

// Relevant reports whether a change to path should trigger a regeneration.
func (w *Watcher) Relevant(path string) bool {
	clean := filepath.Clean(path)
	switch {
	case strings.HasSuffix(clean, w.ext):
		return true
	case clean == w.versionFile:
		return true
	case filepath.Dir(clean) == filepath.Clean(w.root) && filepath.Base(clean) == config.FileName:
		return true
	}
	return false
}

// Run delivers debounced change notifications to trigger until ctx is done.
//
// Description:
//
//	Relevant events restart a debounce timer; trigger runs once the tree has
//	been quiet for debounce. Newly created directories are watched as they
//	appear. Run closes the underlying watcher on return.
func (w *Watcher) Run(ctx context.Context, debounce time.Duration, trigger func(context.Context)) error {
	defer w.fsw.Close()

	// Stop and Reset never leave a stale tick on timer.C (Go 1.23 timers).
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if evt.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					if err := w.addTree(evt.Name); err != nil {
						w.logger.Warn("cannot watch new directory", slog.String("path", evt.Name), slog.String("error", err.Error()))
					}
					continue
				}
			}
			if evt.Has(fsnotify.Chmod) || !w.Relevant(evt.Name) {
				continue
			}
			watchEventsTotal.Inc()
			w.logger.Debug("source change detected", slog.String("path", evt.Name), slog.String("op", evt.Op.String()))
			timer.Reset(debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			trigger(ctx)
		}
	}
}
