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
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/AleutianAI/apispec/services/apispec/assemble"
)

// DefaultS3Region is used when no region is configured.
const DefaultS3Region = "us-east-1"

// S3Config holds the connection settings of an S3-compatible endpoint.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3ConfigFromEnv reads S3 settings from the environment.
//
// Description:
//
//	Reads APISPEC_S3_ENDPOINT, APISPEC_S3_REGION, APISPEC_S3_ACCESS_KEY,
//	APISPEC_S3_SECRET_KEY and APISPEC_S3_USE_SSL. The access and secret keys
//	fall back to AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY. UseSSL defaults
//	to true. Callers load .env files before calling.
func S3ConfigFromEnv() S3Config {
	return S3Config{
		Endpoint:  firstNonEmpty(os.Getenv("APISPEC_S3_ENDPOINT"), "s3.amazonaws.com"),
		Region:    firstNonEmpty(os.Getenv("APISPEC_S3_REGION"), DefaultS3Region),
		AccessKey: firstNonEmpty(os.Getenv("APISPEC_S3_ACCESS_KEY"), os.Getenv("AWS_ACCESS_KEY_ID")),
		SecretKey: firstNonEmpty(os.Getenv("APISPEC_S3_SECRET_KEY"), os.Getenv("AWS_SECRET_ACCESS_KEY")),
		UseSSL:    envBool("APISPEC_S3_USE_SSL", true),
	}
}

// S3Publisher uploads the document to an S3-compatible bucket, creating the
// bucket on first use.
//
// Thread Safety: Safe for concurrent use.
type S3Publisher struct {
	client *minio.Client
	bucket string
	region string
	key    string
	logger *slog.Logger

	initOnce sync.Once
	initErr  error
}

// NewS3Publisher creates an S3Publisher. No network call is made until Publish.
func NewS3Publisher(cfg S3Config, key string, logger *slog.Logger) (*S3Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		key = DefaultObjectName
	}
	region := firstNonEmpty(cfg.Region, DefaultS3Region)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Publisher{
		client: client,
		bucket: bucket,
		region: region,
		key:    key,
		logger: logger,
	}, nil
}

func (p *S3Publisher) ensureBucket(ctx context.Context) error {
	p.initOnce.Do(func() {
		exists, err := p.client.BucketExists(ctx, p.bucket)
		if err != nil {
			p.initErr = err
			return
		}
		if exists {
			return
		}
		p.initErr = p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
	})
	return p.initErr
}

// Publish uploads data and returns its s3:// location.
func (p *S3Publisher) Publish(ctx context.Context, data []byte) (string, error) {
	if err := p.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket %s: %w", p.bucket, err)
	}

	info, err := p.client.PutObject(ctx, p.bucket, p.key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: assemble.JSONMediaType,
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", p.bucket, p.key, err)
	}

	location := Target{Scheme: SchemeS3, Bucket: p.bucket, Key: p.key}.String()
	p.logger.Info("document published",
		slog.String("target", location),
		slog.Int64("bytes", info.Size),
		slog.String("etag", info.ETag),
	)
	return location, nil
}

// Close is a no-op; the minio client holds no resources that need releasing.
func (p *S3Publisher) Close() error { return nil }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func envBool(name string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
