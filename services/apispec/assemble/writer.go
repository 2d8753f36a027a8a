// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assemble

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Marshal renders doc as UTF-8 JSON indented by two spaces.
// HTML characters are not escaped so descriptions stay readable.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a document previously produced by Marshal.
func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return &doc, nil
}

// Write marshals doc and writes it to path.
//
// Description:
//
//	Creating the parent directory is best effort: a failure is logged and the
//	write is still attempted, so the error reported is the one that actually
//	prevented the document from being written. The file is written to a
//	sibling temp file and renamed into place so readers never see a partial
//	document.
//
// Outputs:
//
//	error - Non-nil if the document could not be written.
func Write(doc *Document, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := Marshal(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("cannot create output directory",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
	}

	if err := WriteAtomic(path, data); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// WriteAtomic writes data to a sibling temp file, sets mode 0644 and renames
// it over path so readers never observe a partial file. The parent directory
// must exist.
func WriteAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".openapi-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
