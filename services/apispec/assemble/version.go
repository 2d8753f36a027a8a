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
	"log/slog"
	"os"
	"regexp"

	"golang.org/x/mod/semver"
)

// DefaultVersion is used when no version can be read.
const DefaultVersion = "0.1.0"

var versionPattern = regexp.MustCompile(`version\s*=\s*"([^"]+)"`)

// ReadVersion returns the first `version = "X"` value in the manifest at path.
//
// Description:
//
//	A missing or unreadable manifest, or one without a version assignment,
//	yields def (DefaultVersion when def is empty). A value that is not a
//	semantic version is still returned, with a warning.
//
// Inputs:
//
//	path - Manifest file, typically <root>/Cargo.toml.
//	def - Fallback version.
//	logger - Logger for warnings. Nil uses slog.Default().
//
// Outputs:
//
//	string - Never empty.
func ReadVersion(path, def string, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}
	if def == "" {
		def = DefaultVersion
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("cannot read version file, using default",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
		return def
	}

	m := versionPattern.FindSubmatch(data)
	if m == nil {
		logger.Debug("no version in version file, using default", slog.String("path", path))
		return def
	}

	version := string(m[1])
	if !semver.IsValid("v" + version) {
		logger.Warn("version is not a semantic version",
			slog.String("path", path),
			slog.String("version", version),
		)
	}
	return version
}
