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
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/apispec/services/apispec/assemble"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Target
		wantErr bool
	}{
		{"plain path", "out/openapi.json", Target{Scheme: SchemeFile, Key: "out/openapi.json"}, false},
		{"file url", "file:///srv/docs/openapi.json", Target{Scheme: SchemeFile, Key: "/srv/docs/openapi.json"}, false},
		{"s3 object", "s3://docs/relay/openapi.json", Target{Scheme: SchemeS3, Bucket: "docs", Key: "relay/openapi.json"}, false},
		{"s3 bucket only", "s3://docs", Target{Scheme: SchemeS3, Bucket: "docs", Key: DefaultObjectName}, false},
		{"gcs prefix", "gs://docs/relay/", Target{Scheme: SchemeGCS, Bucket: "docs", Key: "relay/openapi.json"}, false},
		{"empty", "  ", Target{}, true},
		{"missing bucket", "s3:///key.json", Target{}, true},
		{"unknown scheme", "ftp://host/file", Target{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTarget_UnsupportedSchemeSentinel(t *testing.T) {
	_, err := ParseTarget("ftp://host/file")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestTarget_String(t *testing.T) {
	assert.Equal(t, "s3://docs/relay/openapi.json", Target{Scheme: SchemeS3, Bucket: "docs", Key: "relay/openapi.json"}.String())
	assert.Equal(t, "out/openapi.json", Target{Scheme: SchemeFile, Key: "out/openapi.json"}.String())
}

func TestFilePublisher_Document(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "dir", "openapi.json")
	p, err := New(context.Background(), Target{Scheme: SchemeFile, Key: out}, S3Config{}, quietLogger())
	require.NoError(t, err)
	defer p.Close()

	doc := &assemble.Document{
		OpenAPI: assemble.OpenAPIVersion,
		Info:    assemble.Info{Title: "Relay", Version: "1.0.0"},
		Paths:   map[string]assemble.PathItem{},
	}
	location, err := Document(context.Background(), p, doc)
	require.NoError(t, err)
	assert.Equal(t, out, location)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	want, err := assemble.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(data))
}

func TestFilePublisher_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFilePublisher(filepath.Join(t.TempDir(), "x.json"), quietLogger()).Publish(ctx, []byte("{}"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), Target{Scheme: SchemeFile, Key: "x"}, S3Config{}, nil)
	assert.Error(t, err)

	_, err = New(context.Background(), Target{Scheme: "ftp"}, S3Config{}, quietLogger())
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}
