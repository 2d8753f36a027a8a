// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/AleutianAI/apispec/services/apispec/assemble"
)

// FilePublisher writes the document to a local path.
type FilePublisher struct {
	path   string
	logger *slog.Logger
}

// NewFilePublisher creates a FilePublisher for path.
func NewFilePublisher(path string, logger *slog.Logger) *FilePublisher {
	return &FilePublisher{path: path, logger: logger}
}

// Publish writes data through a temp file and rename, creating parent directories.
func (p *FilePublisher) Publish(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	if err := assemble.WriteAtomic(p.path, data); err != nil {
		return "", fmt.Errorf("write %s: %w", p.path, err)
	}

	p.logger.Info("document published", slog.String("target", p.path), slog.Int("bytes", len(data)))
	return p.path, nil
}

// Close is a no-op.
func (p *FilePublisher) Close() error { return nil }
