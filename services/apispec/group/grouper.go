// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package group assigns every RPC endpoint to exactly one named category.
package group

import (
	"strings"
)

// OtherCategory is assigned to names no rule matches.
const OtherCategory = "Other"

// rule is one flattened (token, category) pair.
type rule struct {
	token    string
	category string
}

// Grouper classifies RPC names with an ordered rule list.
//
// Description:
//
//	Classification runs in two phases over the same ordered list. Phase one
//	looks for a token equal to the name; phase two looks for the first token
//	the name starts with. Declared order therefore decides overlaps, e.g.
//	"pm_sponsorUserOperation" is claimed by Paymaster API before "eth_"
//	or any later prefix is considered.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Grouper struct {
	rules        []rule
	categories   []string
	descriptions map[string]string
}

// NewGrouper flattens rs into a Grouper. rs must have passed Validate.
func NewGrouper(rs *RuleSet) *Grouper {
	g := &Grouper{descriptions: make(map[string]string)}
	if rs == nil {
		return g
	}
	for _, c := range rs.Categories {
		g.categories = append(g.categories, c.Name)
		g.descriptions[c.Name] = c.Description
		for _, tok := range c.Tokens {
			g.rules = append(g.rules, rule{token: tok, category: c.Name})
		}
	}
	return g
}

// Categorize returns the category for rpcName. Total; never empty.
func (g *Grouper) Categorize(rpcName string) string {
	for _, r := range g.rules {
		if r.token == rpcName {
			return r.category
		}
	}
	for _, r := range g.rules {
		if strings.HasPrefix(rpcName, r.token) {
			return r.category
		}
	}
	return OtherCategory
}

// Categories returns the configured category names in declared order.
// OtherCategory is not included.
func (g *Grouper) Categories() []string {
	out := make([]string, len(g.categories))
	copy(out, g.categories)
	return out
}

// Description returns the configured description of category, or "".
func (g *Grouper) Description(category string) string {
	return g.descriptions[category]
}
