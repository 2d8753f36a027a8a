// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package publish uploads generated API documents to a file, an
// S3-compatible bucket or a Google Cloud Storage bucket.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/AleutianAI/apispec/services/apispec/assemble"
)

// Target schemes.
const (
	SchemeFile = "file"
	SchemeS3   = "s3"
	SchemeGCS  = "gs"
)

// DefaultObjectName is used when a bucket target names no object or a prefix ending in "/".
const DefaultObjectName = "openapi.json"

// ErrUnsupportedScheme is returned by ParseTarget for unknown URL schemes.
var ErrUnsupportedScheme = errors.New("unsupported publish scheme")

// Publisher uploads a serialized document.
type Publisher interface {
	// Publish stores data and returns its location.
	Publish(ctx context.Context, data []byte) (string, error)

	// Close releases client resources.
	Close() error
}

// Target is a parsed publish destination.
type Target struct {
	Scheme string
	// Bucket is empty for file targets.
	Bucket string
	// Key is the object key, or the file path for file targets.
	Key string
}

// String renders the target in the form ParseTarget accepts.
func (t Target) String() string {
	if t.Scheme == SchemeFile {
		return t.Key
	}
	return t.Scheme + "://" + t.Bucket + "/" + t.Key
}

// ParseTarget parses a publish destination.
//
// Description:
//
//	Accepts "s3://bucket/key", "gs://bucket/key", "file:///path" and plain
//	filesystem paths. A bucket target with no key, or a key ending in "/",
//	gets DefaultObjectName appended.
//
// Outputs:
//
//	Target - The parsed destination.
//	error - Non-nil for empty input, a missing bucket or an unknown scheme.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("publish target must not be empty")
	}
	if !strings.Contains(raw, "://") {
		return Target{Scheme: SchemeFile, Key: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("parse publish target %q: %w", raw, err)
	}

	switch u.Scheme {
	case SchemeFile:
		if u.Path == "" {
			return Target{}, fmt.Errorf("file target %q has no path", raw)
		}
		return Target{Scheme: SchemeFile, Key: u.Path}, nil
	case SchemeS3, SchemeGCS:
		if u.Host == "" {
			return Target{}, fmt.Errorf("%s target %q has no bucket", u.Scheme, raw)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if key == "" || strings.HasSuffix(key, "/") {
			key = path.Join(key, DefaultObjectName)
		}
		return Target{Scheme: u.Scheme, Bucket: u.Host, Key: key}, nil
	default:
		return Target{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// New creates the Publisher for target.
//
// Inputs:
//
//	ctx - Used to create the GCS client.
//	target - Parsed destination.
//	s3cfg - S3 connection settings. Only read for s3 targets.
//	logger - Must not be nil.
func New(ctx context.Context, target Target, s3cfg S3Config, logger *slog.Logger) (Publisher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	switch target.Scheme {
	case SchemeFile:
		return NewFilePublisher(target.Key, logger), nil
	case SchemeS3:
		s3cfg.Bucket = target.Bucket
		return NewS3Publisher(s3cfg, target.Key, logger)
	case SchemeGCS:
		return NewGCSPublisher(ctx, target.Bucket, target.Key, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, target.Scheme)
	}
}

// Document serializes doc the same way the on-disk document is written and publishes it.
func Document(ctx context.Context, p Publisher, doc *assemble.Document) (string, error) {
	ctx, span := publishTracer.Start(ctx, "publish.Document")
	defer span.End()

	data, err := assemble.Marshal(doc)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("publish: %w", err)
	}
	location, err := p.Publish(ctx, data)
	if err != nil {
		span.RecordError(err)
		publishedTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("publish: %w", err)
	}
	publishedTotal.WithLabelValues("success").Inc()
	return location, nil
}
