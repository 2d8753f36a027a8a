// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot persists generated API documents in BadgerDB and compares them.
package snapshot

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/apispec/services/apispec/assemble"
)

// BadgerDB key layout.
//
//	apispec:snap:{projectHash}:{snapshotID}:data → gzip(JSON(Document))
//	apispec:snap:{projectHash}:{snapshotID}:meta → JSON(Metadata)
//	apispec:snap:{projectHash}:latest            → snapshotID
//	apispec:snap:index:{snapshotID}              → projectHash
const (
	keyPrefixSnap      = "apispec:snap:"
	keyPrefixSnapIndex = "apispec:snap:index:"
	keySuffixData      = ":data"
	keySuffixMeta      = ":meta"
	keySuffixLatest    = ":latest"
)

// LatestAlias may be passed wherever a snapshot ID is accepted to mean the
// newest snapshot of the project.
const LatestAlias = "latest"

// DefaultListLimit caps List results when no limit is given.
const DefaultListLimit = 100

var (
	// ErrSnapshotNotFound is returned when no snapshot matches an ID.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrIntegrity is returned when stored data does not match its content hash.
	ErrIntegrity = errors.New("snapshot integrity check failed")
)

// Metadata describes one saved document.
type Metadata struct {
	// SnapshotID is SHA256(ProjectRoot + ":" + RunID)[:16].
	SnapshotID string `json:"snapshot_id"`

	ProjectRoot string `json:"project_root"`

	// ProjectHash is SHA256(ProjectRoot)[:16], used for key grouping.
	ProjectHash string `json:"project_hash"`

	Label string `json:"label,omitempty"`

	// CreatedAtMilli is when the snapshot was saved (Unix milliseconds UTC).
	CreatedAtMilli int64 `json:"created_at_milli"`

	Version   string `json:"version"`
	RunID     string `json:"run_id"`
	Endpoints int    `json:"endpoints"`
	Schemas   int    `json:"schemas"`

	CompressedSize int64  `json:"compressed_size"`
	ContentHash    string `json:"content_hash"`
}

// Store saves and loads documents in BadgerDB.
//
// Thread Safety: Safe for concurrent use. BadgerDB handles its own concurrency control.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a Store over an opened DB. The caller owns the DB.
func NewStore(db *badger.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Open opens (creating if needed) a BadgerDB directory for snapshots.
// BadgerDB's own logging is suppressed.
func Open(dir string) (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open snapshot db %s: %w", dir, err)
	}
	return db, nil
}

// Save persists doc for projectRoot.
//
// Description:
//
//	Serializes the document to JSON, gzip-compresses it and stores it with
//	its metadata in one transaction, moving the project's latest pointer.
//	Saving the same run twice overwrites the earlier entry.
//
// Inputs:
//
//	ctx - Must not be nil.
//	projectRoot - Absolute project root the document was generated from.
//	doc - Must not be nil.
//	label - Optional human-readable label.
//
// Outputs:
//
//	*Metadata - Metadata of the saved snapshot.
//	error - Non-nil if serialization or storage fails.
func (s *Store) Save(ctx context.Context, projectRoot string, doc *assemble.Document, label string) (*Metadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if doc == nil {
		return nil, fmt.Errorf("document must not be nil")
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling document: %w", err)
	}

	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(jsonData); err != nil {
		return nil, fmt.Errorf("compressing document: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	compressedData := compressed.Bytes()

	projectHash := ProjectHash(projectRoot)
	runID := doc.Info.Generated.RunID
	snapshotID := hashString(projectRoot + ":" + runID)[:16]

	meta := &Metadata{
		SnapshotID:     snapshotID,
		ProjectRoot:    projectRoot,
		ProjectHash:    projectHash,
		Label:          label,
		CreatedAtMilli: s.now().UnixMilli(),
		Version:        doc.Info.Version,
		RunID:          runID,
		Endpoints:      len(doc.Paths),
		Schemas:        len(doc.Components.Schemas),
		CompressedSize: int64(len(compressedData)),
		ContentHash:    hashBytes(compressedData),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(dataKey(projectHash, snapshotID), compressedData); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set(metaKey(projectHash, snapshotID), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		if err := txn.Set(latestKey(projectHash), []byte(snapshotID)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		if err := txn.Set([]byte(keyPrefixSnapIndex+snapshotID), []byte(projectHash)); err != nil {
			return fmt.Errorf("storing reverse index: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing snapshot to badger: %w", err)
	}

	s.logger.Info("snapshot saved",
		slog.String("snapshot_id", snapshotID),
		slog.String("project_root", projectRoot),
		slog.Int("endpoints", meta.Endpoints),
		slog.Int64("compressed_size", meta.CompressedSize),
	)
	return meta, nil
}

// Load retrieves a document by snapshot ID.
func (s *Store) Load(ctx context.Context, snapshotID string) (*assemble.Document, *Metadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if snapshotID == "" {
		return nil, nil, fmt.Errorf("snapshot ID must not be empty")
	}

	projectHash, err := s.projectHashOf(snapshotID)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up snapshot %s: %w", snapshotID, err)
	}
	return s.loadByKeys(projectHash, snapshotID)
}

// LoadLatest loads the most recent snapshot of projectRoot.
func (s *Store) LoadLatest(ctx context.Context, projectRoot string) (*assemble.Document, *Metadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	projectHash := ProjectHash(projectRoot)

	var snapshotID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(latestKey(projectHash))
		if err != nil {
			return notFound(err)
		}
		return item.Value(func(val []byte) error {
			snapshotID = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("reading latest pointer for %s: %w", projectRoot, err)
	}
	return s.loadByKeys(projectHash, snapshotID)
}

// Resolve loads ref, which is a snapshot ID or LatestAlias for projectRoot.
func (s *Store) Resolve(ctx context.Context, projectRoot, ref string) (*assemble.Document, *Metadata, error) {
	if ref == LatestAlias {
		return s.LoadLatest(ctx, projectRoot)
	}
	return s.Load(ctx, ref)
}

// List returns snapshot metadata, newest first.
//
// Inputs:
//
//	ctx - Must not be nil.
//	projectRoot - Optional filter. Empty lists every project.
//	limit - Maximum results. <= 0 means DefaultListLimit.
func (s *Store) List(ctx context.Context, projectRoot string, limit int) ([]*Metadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	prefix := keyPrefixSnap
	if projectRoot != "" {
		prefix = keyPrefixSnap + ProjectHash(projectRoot) + ":"
	}

	var results []*Metadata
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if !strings.HasSuffix(key, keySuffixMeta) {
				continue
			}

			var meta Metadata
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				s.logger.Warn("skipping corrupt metadata", slog.String("key", key), slog.Any("error", err))
				continue
			}
			results = append(results, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAtMilli > results[j].CreatedAtMilli
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes a snapshot, clearing the latest pointer if it pointed at it.
func (s *Store) Delete(ctx context.Context, snapshotID string) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}
	if snapshotID == "" {
		return fmt.Errorf("snapshot ID must not be empty")
	}

	projectHash, err := s.projectHashOf(snapshotID)
	if err != nil {
		return fmt.Errorf("looking up snapshot %s: %w", snapshotID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range [][]byte{
			dataKey(projectHash, snapshotID),
			metaKey(projectHash, snapshotID),
			[]byte(keyPrefixSnapIndex + snapshotID),
		} {
			if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("deleting %s: %w", key, err)
			}
		}

		item, err := txn.Get(latestKey(projectHash))
		if err != nil {
			return nil
		}
		var current string
		_ = item.Value(func(val []byte) error {
			current = string(val)
			return nil
		})
		if current == snapshotID {
			if err := txn.Delete(latestKey(projectHash)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("deleting latest pointer: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", snapshotID, err)
	}

	s.logger.Info("snapshot deleted", slog.String("snapshot_id", snapshotID))
	return nil
}

func (s *Store) loadByKeys(projectHash, snapshotID string) (*assemble.Document, *Metadata, error) {
	var compressedData, metaJSON []byte

	err := s.db.View(func(txn *badger.Txn) error {
		dataItem, err := txn.Get(dataKey(projectHash, snapshotID))
		if err != nil {
			return fmt.Errorf("reading data for %s: %w", snapshotID, notFound(err))
		}
		if compressedData, err = dataItem.ValueCopy(nil); err != nil {
			return fmt.Errorf("copying data for %s: %w", snapshotID, err)
		}

		metaItem, err := txn.Get(metaKey(projectHash, snapshotID))
		if err != nil {
			return fmt.Errorf("reading metadata for %s: %w", snapshotID, notFound(err))
		}
		if metaJSON, err = metaItem.ValueCopy(nil); err != nil {
			return fmt.Errorf("copying metadata for %s: %w", snapshotID, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling metadata for %s: %w", snapshotID, err)
	}
	if actual := hashBytes(compressedData); meta.ContentHash != "" && meta.ContentHash != actual {
		return nil, nil, fmt.Errorf("%w for %s: expected hash %s, got %s", ErrIntegrity, snapshotID, meta.ContentHash, actual)
	}

	gr, err := gzip.NewReader(bytes.NewReader(compressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing snapshot %s: %w", snapshotID, err)
	}
	defer gr.Close()

	jsonData, err := io.ReadAll(gr)
	if err != nil {
		return nil, nil, fmt.Errorf("reading decompressed data for %s: %w", snapshotID, err)
	}

	doc, err := assemble.Unmarshal(jsonData)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot %s: %w", snapshotID, err)
	}
	return doc, &meta, nil
}

func (s *Store) projectHashOf(snapshotID string) (string, error) {
	var projectHash string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefixSnapIndex + snapshotID))
		if err != nil {
			return notFound(err)
		}
		return item.Value(func(val []byte) error {
			projectHash = string(val)
			return nil
		})
	})
	return projectHash, err
}

// ProjectHash returns SHA256(projectRoot)[:16].
func ProjectHash(projectRoot string) string {
	return hashString(projectRoot)[:16]
}

func notFound(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrSnapshotNotFound
	}
	return err
}

func dataKey(projectHash, snapshotID string) []byte {
	return []byte(keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixData)
}

func metaKey(projectHash, snapshotID string) []byte {
	return []byte(keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixMeta)
}

func latestKey(projectHash string) []byte {
	return []byte(keyPrefixSnap + projectHash + keySuffixLatest)
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
