// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/apispec/services/apispec/schema"
)

var (
	// structPattern matches a derive carrying Serialize, any further attributes
	// or comment lines around it, and an exported struct with a brace body. The
	// match is case-sensitive so a Deserialize-only derive does not qualify.
	// Groups: 1 attributes before the derive, 2 attributes after it, 3 struct
	// name, 4 field block.
	structPattern = regexp.MustCompile(
		`((?:#\[[^\]]*\]\s*)*)#\[derive\([^\]]*Serialize[^\]]*\)\]((?:\s*(?:#\[[^\]]*\]|//[^\n]*))*)\s*pub\s+struct\s+(\w+)\s*(?:<[^>{]*>)?\s*\{([^}]*)\}`,
	)

	// fieldPattern matches one `[pub[(..)]] [r#]name: Type` field.
	fieldPattern = regexp.MustCompile(`(?s)^(?:pub(?:\([^)]*\))?\s+)?(?:r#)?(\w+)\s*:\s*(.+?)\s*$`)

	attributePattern    = regexp.MustCompile(`#\[[^\]]*\]`)
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)

	serdeSkipPattern      = regexp.MustCompile(`\bskip(?:_serializing)?\b`)
	serdeRenamePattern    = regexp.MustCompile(`\brename\s*=\s*"([^"]+)"`)
	serdeRenameAllPattern = regexp.MustCompile(`\brename_all\s*(?:=\s*"([^"]+)"|\(\s*serialize\s*=\s*"([^"]+)")`)
)

// StructureExtractor finds serializable structure declarations in source text.
//
// Thread Safety: Safe for concurrent use; it is stateless.
type StructureExtractor struct{}

// NewStructureExtractor creates a StructureExtractor.
func NewStructureExtractor() *StructureExtractor {
	return &StructureExtractor{}
}

// Extract returns every serializable exported structure declared in content.
//
// Description:
//
//	A structure participates when its derive list mentions Serialize. The
//	field block is split into logical fields at top-level commas, so several
//	fields may share a line; each field type goes through schema.Map.
//	Field-level serde attributes are honoured for `skip`/`skip_serializing`
//	(field dropped) and `rename = "..."` (key renamed). A struct-level
//	`rename_all` rule applies to every field without an explicit rename.
//
// Inputs:
//
//	content - Full file text.
//	file - Source path recorded on each data type.
//
// Outputs:
//
//	[]DataType - In source order. Possibly empty, never nil.
func (s *StructureExtractor) Extract(content, file string) []DataType {
	matches := structPattern.FindAllStringSubmatch(content, -1)
	types := make([]DataType, 0, len(matches))
	for _, m := range matches {
		types = append(types, DataType{
			Name:   m[3],
			Kind:   "object",
			Fields: parseFields(m[4], renameAllRule(m[1]+m[2])),
			File:   file,
		})
	}
	return types
}

// renameAllRule returns the serialize-side rename_all rule in attrs, or "".
func renameAllRule(attrs string) string {
	for _, attr := range attributePattern.FindAllString(attrs, -1) {
		if !strings.Contains(attr, "serde(") {
			continue
		}
		if m := serdeRenameAllPattern.FindStringSubmatch(attr); m != nil {
			if m[1] != "" {
				return m[1]
			}
			return m[2]
		}
	}
	return ""
}

// parseFields parses a struct body into field name -> schema type.
func parseFields(body, renameAll string) map[string]schema.Type {
	fields := make(map[string]schema.Type)

	for _, piece := range splitTopLevel(stripComments(body)) {
		attrs, decl := splitAttributes(strings.TrimSpace(piece))
		if decl == "" {
			continue
		}

		skip := false
		rename := ""
		for _, attr := range attrs {
			if !strings.Contains(attr, "serde(") {
				continue
			}
			if serdeSkipPattern.MatchString(attr) {
				skip = true
			}
			if m := serdeRenamePattern.FindStringSubmatch(attr); m != nil {
				rename = m[1]
			}
		}

		m := fieldPattern.FindStringSubmatch(decl)
		if m == nil || skip {
			continue
		}

		name := m[1]
		switch {
		case rename != "":
			name = rename
		case renameAll != "":
			name = applyRenameAll(name, renameAll)
		}
		fields[name] = schema.Map(strings.Join(strings.Fields(m[2]), " "))
	}

	return fields
}

// stripComments removes block comments and `//` comments from a struct body.
func stripComments(body string) string {
	body = blockCommentPattern.ReplaceAllString(body, "")
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if j := strings.Index(line, "//"); j >= 0 {
			lines[i] = line[:j]
		}
	}
	return strings.Join(lines, "\n")
}

// splitAttributes peels leading `#[...]` attributes off one logical field.
func splitAttributes(piece string) ([]string, string) {
	var attrs []string
	for strings.HasPrefix(piece, "#[") {
		depth := 0
		end := -1
		for i := 1; i < len(piece) && end < 0; i++ {
			switch piece[i] {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					end = i
				}
			}
		}
		if end < 0 {
			return attrs, ""
		}
		attrs = append(attrs, piece[:end+1])
		piece = strings.TrimSpace(piece[end+1:])
	}
	return attrs, piece
}

// applyRenameAll converts a snake_case field name the way serde's rename_all
// does for the given rule. Unknown rules leave the name unchanged.
func applyRenameAll(name, rule string) string {
	switch rule {
	case "lowercase", "snake_case":
		return name
	case "UPPERCASE", "SCREAMING_SNAKE_CASE":
		return strings.ToUpper(name)
	case "PascalCase":
		return pascalCase(name)
	case "camelCase":
		p := pascalCase(name)
		if p == "" {
			return p
		}
		return strings.ToLower(p[:1]) + p[1:]
	case "kebab-case":
		return strings.ReplaceAll(name, "_", "-")
	case "SCREAMING-KEBAB-CASE":
		return strings.ReplaceAll(strings.ToUpper(name), "_", "-")
	default:
		return name
	}
}

func pascalCase(name string) string {
	var b strings.Builder
	capNext := true
	for _, r := range name {
		if r == '_' {
			capNext = true
			continue
		}
		if capNext {
			b.WriteString(strings.ToUpper(string(r)))
			capNext = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
