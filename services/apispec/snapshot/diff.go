// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/apispec/services/apispec/assemble"
)

// Endpoint change kinds reported in EndpointDiff.Changes.
const (
	ChangeCategory    = "category_changed"
	ChangeParams      = "params_changed"
	ChangeResult      = "result_changed"
	ChangeDescription = "description_changed"
	ChangeMoved       = "moved"
)

// sourceMarker separates an operation description from its source location.
const sourceMarker = "\n\n**Source**: "

// Diff contains the differences between two documents.
type Diff struct {
	BaseSnapshotID   string `json:"base_snapshot_id"`
	TargetSnapshotID string `json:"target_snapshot_id"`

	BaseVersion   string `json:"base_version"`
	TargetVersion string `json:"target_version"`

	EndpointsAdded    []string       `json:"endpoints_added"`
	EndpointsRemoved  []string       `json:"endpoints_removed"`
	EndpointsModified []EndpointDiff `json:"endpoints_modified"`

	SchemasAdded    []string `json:"schemas_added"`
	SchemasRemoved  []string `json:"schemas_removed"`
	SchemasModified []string `json:"schemas_modified"`

	Summary DiffSummary `json:"summary"`
}

// EndpointDiff describes how one RPC method changed.
type EndpointDiff struct {
	RPCName string   `json:"rpc_name"`
	Changes []string `json:"changes"`
}

// DiffSummary aggregates a Diff.
type DiffSummary struct {
	// TotalChanges counts added, removed and modified endpoints and schemas.
	TotalChanges int `json:"total_changes"`

	// Breaking is true when an endpoint was removed or its params or result changed.
	Breaking bool `json:"breaking"`

	// ChangeRatio is the fraction of endpoints in either document that
	// changed (0.0 to 1.0).
	ChangeRatio float64 `json:"change_ratio"`
}

// Empty reports whether the two documents describe the same API.
func (d *Diff) Empty() bool {
	return d.Summary.TotalChanges == 0
}

// DiffDocuments compares base against target.
//
// Description:
//
//	Endpoints are matched by RPC name and schemas by component name. A
//	matched endpoint is modified when its category, request envelope,
//	response envelope, description text or source location differ. Run
//	provenance (timestamp, run id) is ignored.
//
// Outputs:
//
//	*Diff - Sorted for deterministic output.
//	error - Non-nil if either document is nil or cannot be serialized.
func DiffDocuments(base, target *assemble.Document, baseSnapshotID, targetSnapshotID string) (*Diff, error) {
	if base == nil {
		return nil, fmt.Errorf("base document must not be nil")
	}
	if target == nil {
		return nil, fmt.Errorf("target document must not be nil")
	}

	diff := &Diff{
		BaseSnapshotID:    baseSnapshotID,
		TargetSnapshotID:  targetSnapshotID,
		BaseVersion:       base.Info.Version,
		TargetVersion:     target.Info.Version,
		EndpointsAdded:    []string{},
		EndpointsRemoved:  []string{},
		EndpointsModified: []EndpointDiff{},
		SchemasAdded:      []string{},
		SchemasRemoved:    []string{},
		SchemasModified:   []string{},
	}

	baseOps := base.Operations()
	targetOps := target.Operations()

	for name, tOp := range targetOps {
		bOp, exists := baseOps[name]
		if !exists {
			diff.EndpointsAdded = append(diff.EndpointsAdded, name)
			continue
		}
		changes, err := operationChanges(bOp, tOp)
		if err != nil {
			return nil, fmt.Errorf("comparing %s: %w", name, err)
		}
		if len(changes) > 0 {
			diff.EndpointsModified = append(diff.EndpointsModified, EndpointDiff{RPCName: name, Changes: changes})
		}
	}
	for name := range baseOps {
		if _, exists := targetOps[name]; !exists {
			diff.EndpointsRemoved = append(diff.EndpointsRemoved, name)
		}
	}

	for name, tSchema := range target.Components.Schemas {
		bSchema, exists := base.Components.Schemas[name]
		if !exists {
			diff.SchemasAdded = append(diff.SchemasAdded, name)
			continue
		}
		same, err := sameJSON(bSchema, tSchema)
		if err != nil {
			return nil, fmt.Errorf("comparing schema %s: %w", name, err)
		}
		if !same {
			diff.SchemasModified = append(diff.SchemasModified, name)
		}
	}
	for name := range base.Components.Schemas {
		if _, exists := target.Components.Schemas[name]; !exists {
			diff.SchemasRemoved = append(diff.SchemasRemoved, name)
		}
	}

	sort.Strings(diff.EndpointsAdded)
	sort.Strings(diff.EndpointsRemoved)
	sort.Slice(diff.EndpointsModified, func(i, j int) bool {
		return diff.EndpointsModified[i].RPCName < diff.EndpointsModified[j].RPCName
	})
	sort.Strings(diff.SchemasAdded)
	sort.Strings(diff.SchemasRemoved)
	sort.Strings(diff.SchemasModified)

	totalEndpoints := len(baseOps) + len(diff.EndpointsAdded)
	changedEndpoints := len(diff.EndpointsAdded) + len(diff.EndpointsRemoved) + len(diff.EndpointsModified)

	ratio := 0.0
	if totalEndpoints > 0 {
		ratio = float64(changedEndpoints) / float64(totalEndpoints)
	}

	breaking := len(diff.EndpointsRemoved) > 0
	for _, m := range diff.EndpointsModified {
		for _, c := range m.Changes {
			if c == ChangeParams || c == ChangeResult {
				breaking = true
			}
		}
	}

	diff.Summary = DiffSummary{
		TotalChanges: changedEndpoints + len(diff.SchemasAdded) + len(diff.SchemasRemoved) + len(diff.SchemasModified),
		Breaking:     breaking,
		ChangeRatio:  ratio,
	}
	return diff, nil
}

// operationChanges lists the change kinds between two operations of one RPC name.
func operationChanges(base, target *assemble.Operation) ([]string, error) {
	var changes []string

	if strings.Join(base.Tags, ",") != strings.Join(target.Tags, ",") {
		changes = append(changes, ChangeCategory)
	}

	same, err := sameJSON(base.RequestBody, target.RequestBody)
	if err != nil {
		return nil, err
	}
	if !same {
		changes = append(changes, ChangeParams)
	}

	same, err = sameJSON(base.Responses, target.Responses)
	if err != nil {
		return nil, err
	}
	if !same {
		changes = append(changes, ChangeResult)
	}

	baseText, baseSource := splitDescription(base.Description)
	targetText, targetSource := splitDescription(target.Description)
	if baseText != targetText {
		changes = append(changes, ChangeDescription)
	}
	if baseSource != targetSource {
		changes = append(changes, ChangeMoved)
	}

	return changes, nil
}

// splitDescription separates the doc text from the trailing source location.
func splitDescription(desc string) (string, string) {
	if i := strings.LastIndex(desc, sourceMarker); i >= 0 {
		return desc[:i], desc[i+len(sourceMarker):]
	}
	return desc, ""
}

func sameJSON(a, b any) (bool, error) {
	aj, err := json.Marshal(a)
	if err != nil {
		return false, err
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(aj, bj), nil
}
