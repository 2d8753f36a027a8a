// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract finds annotated RPC methods and serializable structures in
// source files and collects them into a Registry.
//
// Matching is purely textual. Declarations that the patterns do not recognise
// are silently absent from the result; nothing here parses the source grammar.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultMaxFileSize is the largest source file read when no limit is configured.
const DefaultMaxFileSize int64 = 8 << 20

var (
	// ErrNilRegistry is returned when ExtractFile is called without a registry.
	ErrNilRegistry = errors.New("registry must not be nil")

	// ErrFileTooLarge is returned for files above the configured size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrInvalidContent is returned for files that are not valid UTF-8.
	ErrInvalidContent = errors.New("file is not valid UTF-8")
)

// Options configures an Extractor.
type Options struct {
	Methods MethodOptions

	// MaxFileSize bounds the bytes read per file. Zero means DefaultMaxFileSize.
	MaxFileSize int64
}

// FileResult reports what one file contributed.
type FileResult struct {
	// File is the path relative to the scan root, forward slashes.
	File      string
	Endpoints int
	DataTypes int
}

// Extractor runs the method and structure extractors over files.
//
// Thread Safety: Safe for concurrent use. The Registry passed to ExtractFile
// is not; callers must serialise writes to it.
type Extractor struct {
	methods *MethodExtractor
	structs *StructureExtractor
	maxSize int64
	logger  *slog.Logger
}

// NewExtractor creates an Extractor. A nil logger uses slog.Default().
func NewExtractor(opts Options, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Extractor{
		methods: NewMethodExtractor(opts.Methods, logger),
		structs: NewStructureExtractor(),
		maxSize: maxSize,
		logger:  logger,
	}
}

// ExtractFile reads one file and merges its declarations into reg.
//
// Description:
//
//	The file is recorded under its path relative to root with forward
//	slashes, so generated documents do not depend on the host OS or the
//	absolute checkout location. Read failures, oversize files and invalid
//	UTF-8 are returned as errors and leave reg untouched; the caller decides
//	whether to continue with the next file.
//
// Inputs:
//
//	ctx - Context for tracing.
//	root - Scan root used to relativise path.
//	path - File to read.
//	reg - Registry receiving the declarations. Must not be nil.
//
// Outputs:
//
//	FileResult - Counts of matched declarations.
//	error - ErrNilRegistry, ErrFileTooLarge, ErrInvalidContent or a wrapped I/O error.
func (e *Extractor) ExtractFile(ctx context.Context, root, path string, reg *Registry) (FileResult, error) {
	_, span := extractTracer.Start(ctx, "extract.Extractor.ExtractFile")
	defer span.End()

	rel := RelativePath(root, path)
	span.SetAttributes(attribute.String("file", rel))

	if reg == nil {
		return FileResult{File: rel}, ErrNilRegistry
	}

	content, status, err := e.read(path)
	filesTotal.WithLabelValues(status).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		return FileResult{File: rel}, fmt.Errorf("extract %s: %w", rel, err)
	}

	result := e.ExtractContent(content, rel, reg)
	span.SetAttributes(
		attribute.Int("endpoints", result.Endpoints),
		attribute.Int("data_types", result.DataTypes),
	)
	return result, nil
}

// ExtractContent merges the declarations found in content into reg.
//
// file is recorded verbatim on every endpoint and data type.
func (e *Extractor) ExtractContent(content, file string, reg *Registry) FileResult {
	result := FileResult{File: file}

	for _, ep := range e.methods.Extract(content, file) {
		reg.PutEndpoint(ep)
		result.Endpoints++
	}
	for _, dt := range e.structs.Extract(content, file) {
		reg.PutDataType(dt)
		result.DataTypes++
	}

	endpointsTotal.Add(float64(result.Endpoints))
	dataTypesTotal.Add(float64(result.DataTypes))

	if result.Endpoints > 0 || result.DataTypes > 0 {
		e.logger.Debug("declarations extracted",
			slog.String("file", file),
			slog.Int("endpoints", result.Endpoints),
			slog.Int("data_types", result.DataTypes),
		)
	}
	return result
}

// read loads path subject to the size limit and UTF-8 check.
// The returned status is the files_total label for the outcome.
func (e *Extractor) read(path string) (string, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", "read_error", err
	}
	if info.Size() > e.maxSize {
		return "", "too_large", fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, info.Size(), e.maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "read_error", err
	}
	if !utf8.Valid(data) {
		return "", "invalid_content", ErrInvalidContent
	}
	return string(data), "ok", nil
}

// RelativePath returns path relative to root with forward slashes.
// When path is not under root it is returned cleaned, with forward slashes.
func RelativePath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || filepath.IsAbs(rel) || hasParentPrefix(rel) {
		return filepath.ToSlash(filepath.Clean(path))
	}
	return filepath.ToSlash(rel)
}

func hasParentPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
