// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scan

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestScanner_FindsSourceFilesRecursively(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "lib.rs"), "")
	writeFile(t, filepath.Join(root, "crates", "rpc", "src", "api.rs"), "")
	writeFile(t, filepath.Join(root, "README.md"), "")
	writeFile(t, filepath.Join(root, "Cargo.toml"), "")

	s := NewScanner(Options{}, quietLogger())
	result := s.Scan(context.Background(), root)

	assert.ElementsMatch(t, []string{
		filepath.Join(root, "src", "lib.rs"),
		filepath.Join(root, "crates", "rpc", "src", "api.rs"),
	}, result.Files)
	assert.Empty(t, result.Unreadable)
}

func TestScanner_SkipsExcludedDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "lib.rs"), "")
	writeFile(t, filepath.Join(root, "target", "debug", "build.rs"), "")
	writeFile(t, filepath.Join(root, ".git", "hooks", "x.rs"), "")

	result := NewScanner(Options{}, quietLogger()).Scan(context.Background(), root)
	assert.Equal(t, []string{filepath.Join(root, "src", "lib.rs")}, result.Files)

	all := NewScanner(Options{ExcludeDirs: []string{}}, quietLogger()).Scan(context.Background(), root)
	assert.Len(t, all.Files, 3)
}

func TestScanner_CustomExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.rs"), "")
	writeFile(t, filepath.Join(root, "b.ron"), "")

	result := NewScanner(Options{Extension: ".ron"}, quietLogger()).Scan(context.Background(), root)
	assert.Equal(t, []string{filepath.Join(root, "b.ron")}, result.Files)
}

func TestScanner_MissingRootIsNotFatal(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does-not-exist")

	result := NewScanner(Options{}, quietLogger()).Scan(context.Background(), root)
	require.NotNil(t, result)
	assert.Empty(t, result.Files)
	assert.Equal(t, []string{root}, result.Unreadable)
}

func TestScanner_UnreadableDirContinues(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok", "a.rs"), "")
	locked := filepath.Join(root, "locked")
	writeFile(t, filepath.Join(locked, "b.rs"), "")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	result := NewScanner(Options{}, quietLogger()).Scan(context.Background(), root)
	assert.Equal(t, []string{filepath.Join(root, "ok", "a.rs")}, result.Files)
	assert.Contains(t, result.Unreadable, locked)
}
