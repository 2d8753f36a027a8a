// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package group

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

var groupTracer = otel.Tracer("apispec.group")

// =============================================================================
// Embedded Default Category Rules
// =============================================================================

//go:embed category_rules.yaml
var defaultCategoryRulesYAML []byte

// MaxRulesSize bounds the size of a category rules document.
const MaxRulesSize = 1 << 20

// =============================================================================
// Rule Types
// =============================================================================

// Category is one named endpoint group and its match tokens.
type Category struct {
	// Name is the category label emitted as an OpenAPI tag.
	Name string `yaml:"name" json:"name"`

	// Description is the optional tag description.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Tokens are compared against RPC names, first for equality and then as
	// prefixes, in the order listed.
	Tokens []string `yaml:"tokens" json:"tokens"`
}

// RuleSet is an ordered list of categories.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type RuleSet struct {
	Categories []Category `yaml:"categories" json:"categories"`
}

// =============================================================================
// Loading
// =============================================================================

var (
	rulesMu      sync.RWMutex
	rulesOnce    sync.Once
	cachedRules  *RuleSet
	rulesLoadErr error
)

// DefaultRules returns the embedded category rules, parsed once and cached.
//
// Thread Safety: Safe for concurrent use.
func DefaultRules(ctx context.Context) (*RuleSet, error) {
	if ctx == nil {
		return nil, fmt.Errorf("DefaultRules: ctx must not be nil")
	}

	rulesMu.RLock()
	if cachedRules != nil || rulesLoadErr != nil {
		rs, err := cachedRules, rulesLoadErr
		rulesMu.RUnlock()
		return rs, err
	}
	rulesMu.RUnlock()

	rulesMu.Lock()
	defer rulesMu.Unlock()

	rulesOnce.Do(func() {
		cachedRules, rulesLoadErr = LoadRules(ctx, defaultCategoryRulesYAML)
	})
	return cachedRules, rulesLoadErr
}

// ResetDefaultRules clears the cached default rules. For tests.
func ResetDefaultRules() {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	cachedRules = nil
	rulesLoadErr = nil
	rulesOnce = sync.Once{}
}

// LoadRules parses and validates a category rules YAML document.
//
// Description:
//
//	The document must list at least one category. Every category needs a
//	non-empty name distinct from OtherCategory and from every other category,
//	and at least one non-empty token.
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - YAML bytes.
//
// Outputs:
//
//	*RuleSet - Parsed rules in declared order.
//	error - Non-nil if the data is empty, oversize, unparsable or invalid.
func LoadRules(ctx context.Context, data []byte) (*RuleSet, error) {
	_, span := groupTracer.Start(ctx, "group.LoadRules")
	defer span.End()

	if len(data) == 0 {
		return nil, fmt.Errorf("LoadRules: empty YAML data")
	}
	if len(data) > MaxRulesSize {
		return nil, fmt.Errorf("LoadRules: YAML data exceeds maximum size (%d > %d)", len(data), MaxRulesSize)
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("LoadRules: parsing YAML: %w", err)
	}
	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("LoadRules: validation: %w", err)
	}

	span.SetAttributes(attribute.Int("categories", len(rs.Categories)))
	slog.Debug("category rules loaded", slog.Int("categories", len(rs.Categories)))

	return &rs, nil
}

// Validate checks the structural rules described on LoadRules.
func (rs *RuleSet) Validate() error {
	if len(rs.Categories) == 0 {
		return fmt.Errorf("no categories defined")
	}
	seen := make(map[string]bool, len(rs.Categories))
	for i, c := range rs.Categories {
		if c.Name == "" {
			return fmt.Errorf("categories[%d]: name is required", i)
		}
		if c.Name == OtherCategory {
			return fmt.Errorf("categories[%d]: %q is reserved", i, OtherCategory)
		}
		if seen[c.Name] {
			return fmt.Errorf("categories[%d]: duplicate name %q", i, c.Name)
		}
		seen[c.Name] = true
		if len(c.Tokens) == 0 {
			return fmt.Errorf("categories[%d] %q: at least one token is required", i, c.Name)
		}
		for j, tok := range c.Tokens {
			if tok == "" {
				return fmt.Errorf("categories[%d] %q: tokens[%d] is empty", i, c.Name, j)
			}
		}
	}
	return nil
}
