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
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/AleutianAI/apispec/services/apispec/assemble"
)

// GCSPublisher uploads the document to a Google Cloud Storage bucket.
// Credentials come from Application Default Credentials unless opts override them.
type GCSPublisher struct {
	client *storage.Client
	bucket string
	key    string
	logger *slog.Logger
}

// NewGCSPublisher creates a GCSPublisher. The bucket must already exist.
func NewGCSPublisher(ctx context.Context, bucket, key string, logger *slog.Logger, opts ...option.ClientOption) (*GCSPublisher, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	if key == "" {
		key = DefaultObjectName
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init gcs client: %w", err)
	}
	return &GCSPublisher{client: client, bucket: bucket, key: key, logger: logger}, nil
}

// Publish uploads data and returns its gs:// location.
func (p *GCSPublisher) Publish(ctx context.Context, data []byte) (string, error) {
	location := Target{Scheme: SchemeGCS, Bucket: p.bucket, Key: p.key}.String()

	w := p.client.Bucket(p.bucket).Object(p.key).NewWriter(ctx)
	w.ContentType = assemble.JSONMediaType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return "", fmt.Errorf("write %s: %w", location, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", location, err)
	}

	p.logger.Info("document published", slog.String("target", location), slog.Int("bytes", len(data)))
	return location, nil
}

// Close releases the storage client.
func (p *GCSPublisher) Close() error {
	return p.client.Close()
}
