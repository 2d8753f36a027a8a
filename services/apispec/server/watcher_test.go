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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/apispec/services/apispec/config"
)

func TestWatcher_Relevant(t *testing.T) {
	root := fixtureRoot(t)
	w, err := NewWatcher(root, config.Default(), quietLogger())
	require.NoError(t, err)
	defer w.fsw.Close()

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "crates", "rpc", "src", "eth.rs"), true},
		{filepath.Join(root, "Cargo.toml"), true},
		{filepath.Join(root, config.FileName), true},
		{filepath.Join(root, "crates", config.FileName), false},
		{filepath.Join(root, "crates", "rpc", "Cargo.toml"), false},
		{filepath.Join(root, "web-ui", "swagger-ui", "openapi.json"), false},
		{filepath.Join(root, "README.md"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, w.Relevant(tt.path), tt.path)
	}
}

func TestWatcher_RunTriggersOnSourceChange(t *testing.T) {
	root := fixtureRoot(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "target", "debug"), 0o755))

	w, err := NewWatcher(root, config.Default(), quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	triggered := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, 20*time.Millisecond, func(context.Context) {
			triggered <- struct{}{}
		})
	}()

	// Excluded directories are not watched.
	require.NoError(t, os.WriteFile(filepath.Join(root, "target", "debug", "gen.rs"), []byte("fn x() {}"), 0o644))
	select {
	case <-triggered:
		t.Fatal("change under an excluded directory triggered a regeneration")
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(filepath.Join(root, "crates", "rpc", "src", "new.rs"), []byte("fn y() {}"), 0o644))
	select {
	case <-triggered:
	case <-time.After(5 * time.Second):
		t.Fatal("source change did not trigger a regeneration")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
