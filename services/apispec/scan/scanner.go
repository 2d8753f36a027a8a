// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scan enumerates candidate source files under a project root.
package scan

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var scanTracer = otel.Tracer("apispec.scan")

// DefaultExtension is the source file extension scanned when none is configured.
const DefaultExtension = ".rs"

// DefaultExcludeDirs are directory names never descended into.
var DefaultExcludeDirs = []string{".git", "target", "node_modules"}

// Options configures a Scanner.
type Options struct {
	// Extension is the file suffix to match, including the dot. Empty means DefaultExtension.
	Extension string

	// ExcludeDirs are directory base names to skip. Nil means DefaultExcludeDirs;
	// an empty non-nil slice disables exclusion.
	ExcludeDirs []string
}

// Result is the outcome of one scan.
type Result struct {
	// Files are the matching file paths, joined onto the scan root, in walk order.
	Files []string

	// Unreadable are paths that could not be enumerated. They were logged and skipped.
	Unreadable []string
}

// Scanner walks a directory tree collecting source files.
//
// Thread Safety: Safe for concurrent use; Scan keeps no state between calls.
type Scanner struct {
	ext     string
	exclude map[string]bool
	logger  *slog.Logger
}

// NewScanner creates a Scanner.
//
// Inputs:
//
//	opts - Scanner options. Zero value scans ".rs" files with default exclusions.
//	logger - Logger for skipped paths. Nil uses slog.Default().
//
// Outputs:
//
//	*Scanner - Never nil.
func NewScanner(opts Options, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	ext := opts.Extension
	if ext == "" {
		ext = DefaultExtension
	}
	excludeDirs := opts.ExcludeDirs
	if excludeDirs == nil {
		excludeDirs = DefaultExcludeDirs
	}
	exclude := make(map[string]bool, len(excludeDirs))
	for _, d := range excludeDirs {
		exclude[d] = true
	}
	return &Scanner{ext: ext, exclude: exclude, logger: logger}
}

// Scan enumerates files under root whose name ends with the configured extension.
//
// Description:
//
//	Walks the tree recursively. A directory or entry that cannot be read is
//	logged and skipped; enumeration continues with everything that is
//	reachable. Scan never fails: an unreadable root yields an empty Result
//	with the root listed in Unreadable.
//
//	Callers must not depend on the relative order of Files for correctness.
//	The walk is lexical, so for a fixed tree the order is stable, which keeps
//	last-write-wins registry semantics reproducible.
//
// Inputs:
//
//	ctx - Context for tracing.
//	root - Directory to scan.
//
// Outputs:
//
//	*Result - Never nil.
func (s *Scanner) Scan(ctx context.Context, root string) *Result {
	_, span := scanTracer.Start(ctx, "scan.Scanner.Scan")
	defer span.End()

	result := &Result{Files: []string{}}

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("cannot read path, skipping",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			result.Unreadable = append(result.Unreadable, path)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && s.exclude[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasSuffix(d.Name(), s.ext) {
			result.Files = append(result.Files, path)
		}
		return nil
	})

	span.SetAttributes(
		attribute.String("root", root),
		attribute.Int("files", len(result.Files)),
		attribute.Int("unreadable", len(result.Unreadable)),
	)

	s.logger.Debug("scan complete",
		slog.String("root", root),
		slog.Int("files", len(result.Files)),
	)

	return result
}
