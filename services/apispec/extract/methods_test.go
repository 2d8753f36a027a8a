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
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/apispec/services/apispec/schema"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

const ethApiSource = `use jsonrpsee::proc_macros::rpc;

#[rpc(server, namespace = "eth")]
pub trait EthApi {
    /// Sends a user operation to the mempool.
    ///
    /// Returns the operation hash.
    #[method(name = "sendUserOperation")]
    async fn send_user_operation(
        &self,
        op: RpcUserOperation,
        entry_point: Address,
    ) -> RpcResult<B256>;

    // internal note, not documentation
    /// Returns the chain id.
    #[method(name = "chainId")]
    async fn chain_id(&self) -> RpcResult<u64>;

    #[method(name = "supportedEntryPoints", aliases = ["entryPoints"])]
    async fn supported_entry_points(&self) -> RpcResult<Vec<Address>>;
}
`

func TestMethodExtractor_Extract(t *testing.T) {
	eps := NewMethodExtractor(MethodOptions{}, quietLogger()).Extract(ethApiSource, "src/eth.rs")
	require.Len(t, eps, 3)

	send := eps[0]
	assert.Equal(t, "sendUserOperation", send.RPCName)
	assert.Equal(t, "send_user_operation", send.MethodName)
	assert.Equal(t, "Sends a user operation to the mempool. Returns the operation hash.", send.Description)
	assert.Equal(t, "RpcResult<B256>", send.ReturnExpr)
	assert.Equal(t, schema.Primitive{Name: "B256", Kind: "string", Description: "Hash value"}, send.ReturnType)
	assert.Equal(t, "src/eth.rs", send.File)
	assert.Equal(t, 8, send.Line)
	require.Len(t, send.Parameters, 2)
	assert.Equal(t, Parameter{Name: "op", Type: schema.Reference{Name: "RpcUserOperation"}, Required: true}, send.Parameters[0])
	assert.Equal(t, "entry_point", send.Parameters[1].Name)

	chain := eps[1]
	assert.Equal(t, "chainId", chain.RPCName)
	assert.Equal(t, "Returns the chain id.", chain.Description)
	assert.Empty(t, chain.Parameters)
	assert.Equal(t, schema.Primitive{Name: "u64", Kind: "integer", Format: "int64"}, chain.ReturnType)

	entry := eps[2]
	assert.Equal(t, "supportedEntryPoints", entry.RPCName)
	assert.Equal(t, NoDescription, entry.Description)
	assert.Equal(t, schema.Array{Item: schema.Primitive{Name: "Address", Kind: "string", Description: "Ethereum address"}}, entry.ReturnType)
}

func TestMethodExtractor_NoReturnType(t *testing.T) {
	src := `#[method(name = "clearState")]
fn clear_state(&self);
`
	eps := NewMethodExtractor(MethodOptions{}, quietLogger()).Extract(src, "a.rs")
	require.Len(t, eps, 1)
	assert.Equal(t, VoidReturn, eps[0].ReturnExpr)
	assert.Equal(t, 1, eps[0].Line)
}

func TestMethodExtractor_WhereClauseIsCut(t *testing.T) {
	src := `#[method(name = "debug_dump")]
async fn dump<T>(&self, filter: T) -> RpcResult<Vec<String>> where T: Send {
}
`
	eps := NewMethodExtractor(MethodOptions{}, quietLogger()).Extract(src, "a.rs")
	require.Len(t, eps, 1)
	assert.Equal(t, "RpcResult<Vec<String>>", eps[0].ReturnExpr)
	assert.Equal(t, schema.Array{Item: schema.Primitive{Name: "String", Kind: "string"}}, eps[0].ReturnType)
}

func TestMethodExtractor_Parameters(t *testing.T) {
	src := `#[method(name = "getPendingUserOperationBySenderNonce")]
async fn pending(&mut self, mut sender: Address, nonce: Option<U256>, extra: HashMap<String, u64>, sender: u64) -> RpcResult<bool>;
`
	eps := NewMethodExtractor(MethodOptions{}, quietLogger()).Extract(src, "a.rs")
	require.Len(t, eps, 1)

	params := eps[0].Parameters
	require.Len(t, params, 3)

	assert.Equal(t, "sender", params[0].Name)
	assert.True(t, params[0].Required)
	assert.Equal(t, schema.Primitive{Name: "Address", Kind: "string", Description: "Ethereum address"}, params[0].Type)

	assert.Equal(t, "nonce", params[1].Name)
	assert.False(t, params[1].Required)
	assert.Equal(t, schema.Primitive{Name: "U256", Kind: "string", Description: "Large integer as string"}, params[1].Type)

	assert.Equal(t, "extra", params[2].Name)
	assert.IsType(t, schema.Object{}, params[2].Type)
	assert.Equal(t, "HashMap<String, u64>", params[2].Type.Canonical())
}

func TestMethodExtractor_OptionalU64Parameter(t *testing.T) {
	src := `#[method(name = "getMinedUserOperation")]
async fn mined(&self, block: Option<u64>) -> RpcResult<Option<RpcUserOperationReceipt>>;
`
	eps := NewMethodExtractor(MethodOptions{}, quietLogger()).Extract(src, "a.rs")
	require.Len(t, eps, 1)
	require.Len(t, eps[0].Parameters, 1)

	p := eps[0].Parameters[0]
	assert.False(t, p.Required)
	assert.Equal(t, schema.Primitive{Name: "u64", Kind: "integer", Format: "int64"}, p.Type)
	assert.Equal(t, schema.Reference{Name: "RpcUserOperationReceipt"}, eps[0].ReturnType)
}

func TestMethodExtractor_Namespace(t *testing.T) {
	src := `#[rpc(server, namespace = "pm")]
pub trait Paymaster {
    #[method(name = "sponsorUserOperation")]
    async fn sponsor(&self) -> RpcResult<String>;
}

#[rpc(server)]
pub trait Plain {
    #[method(name = "health")]
    async fn health(&self) -> RpcResult<String>;
}
`
	off := NewMethodExtractor(MethodOptions{}, quietLogger()).Extract(src, "a.rs")
	require.Len(t, off, 2)
	assert.Equal(t, "sponsorUserOperation", off[0].RPCName)

	on := NewMethodExtractor(MethodOptions{ApplyNamespace: true}, quietLogger()).Extract(src, "a.rs")
	require.Len(t, on, 2)
	assert.Equal(t, "pm_sponsorUserOperation", on[0].RPCName)
	assert.Equal(t, "health", on[1].RPCName)
	assert.Equal(t, "sponsor", on[0].MethodName)
}

func TestExtractDoc(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "no doc",
			source: "fn other() {}\n",
			want:   NoDescription,
		},
		{
			name:   "stops at code",
			source: "/// stale\nlet x = 1;\n/// fresh\n",
			want:   "fresh",
		},
		{
			name:   "skips attributes and blank lines",
			source: "/// first\n\n#[allow(unused)]\n/// second\n",
			want:   "first second",
		},
		{
			name:   "window limit",
			source: "/// too far\n" + "\n\n\n\n\n\n\n\n\n\n" + "/// near\n",
			want:   "near",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := tt.source + "#[method(name = \"x\")]\n"
			assert.Equal(t, tt.want, extractDoc(src, len(tt.source)))
		})
	}
}

func TestSplitTopLevel(t *testing.T) {
	got := splitTopLevel("a: HashMap<String, Vec<u8>>, f: fn(u8, u8) -> u8, c: [u8; 32]")
	assert.Equal(t, []string{"a: HashMap<String, Vec<u8>>", " f: fn(u8, u8) -> u8", " c: [u8; 32]"}, got)
}

func TestSplitNameType(t *testing.T) {
	name, typ, ok := splitNameType(" id: std::primitive::u64 ")
	require.True(t, ok)
	assert.Equal(t, "id", name)
	assert.Equal(t, "std::primitive::u64", typ)

	_, _, ok = splitNameType("&self")
	assert.False(t, ok)

	_, _, ok = splitNameType("(a, b): (u8, u8)")
	assert.False(t, ok)
}
