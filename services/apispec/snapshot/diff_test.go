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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// targetSource drops chainId, adds a paymaster method, changes the
// sendUserOperation params and widens RpcUserOperation.
const targetSource = `pub trait EthApi {
    /// Sends a user operation.
    #[method(name = "sendUserOperation")]
    async fn send_user_operation(&self, op: RpcUserOperation) -> RpcResult<String>;

    /// Sponsors a user operation.
    #[method(name = "pm_sponsorUserOperation")]
    async fn sponsor(&self, op: RpcUserOperation) -> RpcResult<Bytes>;
}

#[derive(Debug, Serialize)]
pub struct RpcUserOperation {
    pub sender: Address,
    pub nonce: U256,
    pub call_data: Bytes,
}

#[derive(Serialize)]
pub struct SponsorResult {
    pub paymaster_and_data: Bytes,
}
`

func TestDiffDocuments_IdenticalApiIsEmpty(t *testing.T) {
	// Separate runs differ only in provenance.
	diff, err := DiffDocuments(buildDoc(t, baseSource, "1.0.0"), buildDoc(t, baseSource, "1.0.0"), "a", "b")
	require.NoError(t, err)
	assert.True(t, diff.Empty())
	assert.Empty(t, diff.EndpointsModified)
	assert.False(t, diff.Summary.Breaking)
	assert.Zero(t, diff.Summary.ChangeRatio)
}

func TestDiffDocuments_Changes(t *testing.T) {
	diff, err := DiffDocuments(buildDoc(t, baseSource, "1.0.0"), buildDoc(t, targetSource, "1.1.0"), "base", "target")
	require.NoError(t, err)

	assert.Equal(t, "base", diff.BaseSnapshotID)
	assert.Equal(t, "target", diff.TargetSnapshotID)
	assert.Equal(t, "1.0.0", diff.BaseVersion)
	assert.Equal(t, "1.1.0", diff.TargetVersion)

	assert.Equal(t, []string{"pm_sponsorUserOperation"}, diff.EndpointsAdded)
	assert.Equal(t, []string{"chainId"}, diff.EndpointsRemoved)
	require.Len(t, diff.EndpointsModified, 1)
	assert.Equal(t, "sendUserOperation", diff.EndpointsModified[0].RPCName)
	assert.Contains(t, diff.EndpointsModified[0].Changes, ChangeParams)
	assert.NotContains(t, diff.EndpointsModified[0].Changes, ChangeResult)
	assert.NotContains(t, diff.EndpointsModified[0].Changes, ChangeDescription)

	assert.Equal(t, []string{"SponsorResult"}, diff.SchemasAdded)
	assert.Empty(t, diff.SchemasRemoved)
	assert.Equal(t, []string{"RpcUserOperation"}, diff.SchemasModified)

	assert.True(t, diff.Summary.Breaking)
	assert.Equal(t, 5, diff.Summary.TotalChanges)
	assert.InDelta(t, 1.0, diff.Summary.ChangeRatio, 1e-9)
}

func TestDiffDocuments_DescriptionAndMove(t *testing.T) {
	moved := "\n\n" + baseSource
	reworded := `pub trait EthApi {
    /// Returns the configured chain id.
    #[method(name = "chainId")]
    async fn chain_id(&self) -> RpcResult<u64>;

    /// Sends a user operation.
    #[method(name = "sendUserOperation")]
    async fn send_user_operation(&self, op: RpcUserOperation, entry_point: Address) -> RpcResult<String>;
}
`
	base := buildDoc(t, baseSource, "1.0.0")

	diff, err := DiffDocuments(base, buildDoc(t, moved, "1.0.0"), "a", "b")
	require.NoError(t, err)
	require.Len(t, diff.EndpointsModified, 2)
	for _, m := range diff.EndpointsModified {
		assert.Equal(t, []string{ChangeMoved}, m.Changes, m.RPCName)
	}
	assert.False(t, diff.Summary.Breaking)

	diff, err = DiffDocuments(base, buildDoc(t, reworded, "1.0.0"), "a", "c")
	require.NoError(t, err)
	require.Len(t, diff.EndpointsModified, 1)
	assert.Equal(t, "chainId", diff.EndpointsModified[0].RPCName)
	assert.Equal(t, []string{ChangeDescription}, diff.EndpointsModified[0].Changes)
	assert.Equal(t, []string{"RpcUserOperation"}, diff.SchemasRemoved)
}

func TestDiffDocuments_NilDocuments(t *testing.T) {
	doc := buildDoc(t, baseSource, "1.0.0")
	_, err := DiffDocuments(nil, doc, "", "")
	assert.Error(t, err)
	_, err = DiffDocuments(doc, nil, "", "")
	assert.Error(t, err)
}

func TestDiffDocuments_FromStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base, err := store.Save(ctx, "/work/relay", buildDoc(t, baseSource, "1.0.0"), "")
	require.NoError(t, err)
	target, err := store.Save(ctx, "/work/relay", buildDoc(t, targetSource, "1.1.0"), "")
	require.NoError(t, err)

	baseDoc, _, err := store.Load(ctx, base.SnapshotID)
	require.NoError(t, err)
	targetDoc, _, err := store.Resolve(ctx, "/work/relay", LatestAlias)
	require.NoError(t, err)

	diff, err := DiffDocuments(baseDoc, targetDoc, base.SnapshotID, target.SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, []string{"chainId"}, diff.EndpointsRemoved)
}
