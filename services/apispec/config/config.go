// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the optional per-project generator configuration.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/apispec/services/apispec/group"
)

// FileName is the project config file looked up in the project root.
const FileName = "apispec.config.yaml"

// MaxConfigSize bounds the size of the project config file.
const MaxConfigSize = 1 << 20

// Defaults.
const (
	DefaultOutputPath     = "web-ui/swagger-ui/openapi.json"
	DefaultExtension      = ".rs"
	DefaultVersionFile    = "Cargo.toml"
	DefaultVersion        = "0.1.0"
	DefaultTitle          = "SuperRelay Auto-Generated API"
	DefaultServerURL      = "http://localhost:3000"
	DefaultServerDesc     = "Development - SuperRelay Gateway"
	DefaultNamespaceSep   = "_"
	DefaultMaxFileSizeMiB = 8
)

// ErrConfigTooLarge is returned when the config file exceeds MaxConfigSize.
var ErrConfigTooLarge = errors.New("config file exceeds maximum size")

// Server is one entry of the document's servers list.
type Server struct {
	URL         string `yaml:"url" json:"url" validate:"required,url"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Config holds generator settings for one project.
//
// Description:
//
//	Loaded from <root>/apispec.config.yaml. All fields are optional; a field
//	absent from the file keeps its default. Relative paths are resolved
//	against the project root.
//
// Thread Safety: Safe for concurrent reads after construction.
type Config struct {
	// OutputPath is where the document is written.
	OutputPath string `yaml:"output_path" validate:"required"`

	// Extension is the source file suffix to scan.
	Extension string `yaml:"extension" validate:"required,startswith=."`

	// ExcludeDirs are directory names not descended into. Unset keeps the
	// scanner defaults; an explicit empty list disables exclusion.
	ExcludeDirs []string `yaml:"exclude_dirs" validate:"omitempty,dive,required,excludesall=/"`

	// VersionFile is the manifest read for the document version.
	VersionFile string `yaml:"version_file" validate:"required"`

	// DefaultVersion is used when VersionFile is missing or has no version.
	DefaultVersion string `yaml:"default_version" validate:"required"`

	Title       string   `yaml:"title" validate:"required"`
	Description string   `yaml:"description"`
	Servers     []Server `yaml:"servers" validate:"dive"`

	// ApplyNamespace prefixes RPC names with the trait's #[rpc(namespace)].
	ApplyNamespace     bool   `yaml:"apply_namespace"`
	NamespaceSeparator string `yaml:"namespace_separator" validate:"required"`

	// MaxFileSize bounds bytes read per source file.
	MaxFileSize int64 `yaml:"max_file_size" validate:"gt=0"`

	// FailOnDuplicates turns duplicate definitions into a failed run.
	FailOnDuplicates bool `yaml:"fail_on_duplicates"`

	// Categories replaces the embedded category table when non-empty.
	Categories []group.Category `yaml:"categories"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		OutputPath:     DefaultOutputPath,
		Extension:      DefaultExtension,
		VersionFile:    DefaultVersionFile,
		DefaultVersion: DefaultVersion,
		Title:          DefaultTitle,
		Servers: []Server{
			{URL: DefaultServerURL, Description: DefaultServerDesc},
		},
		NamespaceSeparator: DefaultNamespaceSep,
		MaxFileSize:        DefaultMaxFileSizeMiB << 20,
	}
}

// Load reads apispec.config.yaml from root.
//
// Description:
//
//	A missing file is not an error and yields Default(). A file that cannot
//	be read, parsed or validated yields Default() together with the error so
//	the caller can warn and carry on with defaults.
//
// Inputs:
//
//	root - Project root. Empty yields Default().
//
// Outputs:
//
//	Config - The effective configuration.
//	error - Non-nil only if the file exists but is unusable.
func Load(root string) (Config, error) {
	if root == "" {
		return Default(), nil
	}
	path := filepath.Join(root, FileName)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("reading %s: %w", FileName, err)
	}
	if info.Size() > MaxConfigSize {
		return Default(), fmt.Errorf("reading %s: %w (%d > %d)", FileName, ErrConfigTooLarge, info.Size(), MaxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("reading %s: %w", FileName, err)
	}
	return Parse(data)
}

// Parse decodes data over Default() and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("validating %s: %w", FileName, err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and, when categories are set, the rule set.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if len(c.Categories) > 0 {
		rs := group.RuleSet{Categories: c.Categories}
		if err := rs.Validate(); err != nil {
			return fmt.Errorf("categories: %w", err)
		}
	}
	return nil
}

// Rules returns the configured category rules, or the embedded defaults.
func (c *Config) Rules(ctx context.Context) (*group.RuleSet, error) {
	if len(c.Categories) > 0 {
		rs := &group.RuleSet{Categories: c.Categories}
		if err := rs.Validate(); err != nil {
			return nil, fmt.Errorf("categories: %w", err)
		}
		return rs, nil
	}
	return group.DefaultRules(ctx)
}

// Resolve joins p onto root unless p is absolute.
func Resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
