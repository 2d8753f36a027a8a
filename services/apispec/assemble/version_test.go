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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadVersion(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		def      string
		want     string
	}{
		{
			name:     "workspace package version",
			manifest: "[workspace.package]\nversion = \"0.2.1\"\nedition = \"2021\"\n",
			want:     "0.2.1",
		},
		{
			name:     "first assignment wins",
			manifest: "[package]\nversion=\"1.0.0\"\n[dependencies]\nserde = { version = \"1.0\" }\n",
			want:     "1.0.0",
		},
		{
			name:     "no version",
			manifest: "[package]\nname = \"x\"\n",
			want:     DefaultVersion,
		},
		{
			name:     "custom default",
			manifest: "",
			def:      "9.9.9",
			want:     "9.9.9",
		},
		{
			name:     "non semver kept",
			manifest: "version = \"nightly\"\n",
			want:     "nightly",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "Cargo.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.manifest), 0o644))
			assert.Equal(t, tt.want, ReadVersion(path, tt.def, quietLogger()))
		})
	}
}

func TestReadVersion_MissingFile(t *testing.T) {
	assert.Equal(t, DefaultVersion, ReadVersion(filepath.Join(t.TempDir(), "Cargo.toml"), "", nil))
}
