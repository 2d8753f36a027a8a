// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assemble

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/apispec/services/apispec/extract"
	"github.com/AleutianAI/apispec/services/apispec/group"
	"github.com/AleutianAI/apispec/services/apispec/schema"
)

const chainSource = `#[rpc(server, namespace = "eth")]
pub trait EthApi {
    /// Returns the chain id.
    #[method(name = "chainId")]
    async fn chain_id(&self) -> RpcResult<u64>;

    /// Estimates gas for an operation.
    #[method(name = "estimateUserOperationGas")]
    async fn estimate(&self, op: RpcUserOperation, entry_point: Address, overrides: Option<String>) -> RpcResult<RpcGasEstimate>;

    #[method(name = "zz_unknown")]
    async fn unknown(&self);
}

#[derive(Serialize)]
pub struct RpcGasEstimate {
    pub pre_verification_gas: U256,
    pub call_gas_limit: U256,
}
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fixedAssembler(t *testing.T) *Assembler {
	t.Helper()
	rs, err := group.DefaultRules(context.Background())
	require.NoError(t, err)

	a := NewAssembler(Options{
		Servers: []Server{{URL: "http://localhost:3000", Description: "dev"}},
	}, group.NewGrouper(rs), quietLogger())
	a.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 678_900_000, time.FixedZone("X", 3600)) }
	a.newID = func() string { return "00000000-0000-0000-0000-000000000001" }
	return a
}

func filledRegistry(t *testing.T) *extract.Registry {
	t.Helper()
	reg := extract.NewRegistry(quietLogger())
	extract.NewExtractor(extract.Options{}, quietLogger()).ExtractContent(chainSource, "crates/rpc/src/eth.rs", reg)
	return reg
}

func TestAssemble_ChainIDEndToEnd(t *testing.T) {
	doc, err := fixedAssembler(t).Assemble(context.Background(), filledRegistry(t), "1.2.3")
	require.NoError(t, err)

	item, ok := doc.Paths["/chainId"]
	require.True(t, ok)
	require.NotNil(t, item.Post)

	op := item.Post
	assert.Equal(t, "chain_id - chainId", op.Summary)
	assert.Equal(t, "Returns the chain id.\n\n**Source**: `crates/rpc/src/eth.rs:4`", op.Description)
	assert.Equal(t, []string{"ERC-4337 API"}, op.Tags)

	result := op.Responses["200"].Content[JSONMediaType].Schema.Properties["result"]
	assert.Equal(t, "integer", result.Type[0])
	assert.Equal(t, "int64", result.Format)

	var tagNames []string
	for _, tag := range doc.Tags {
		tagNames = append(tagNames, tag.Name)
	}
	assert.Contains(t, tagNames, "ERC-4337 API")
}

func TestAssemble_DocumentShape(t *testing.T) {
	doc, err := fixedAssembler(t).Assemble(context.Background(), filledRegistry(t), "1.2.3")
	require.NoError(t, err)

	assert.Equal(t, OpenAPIVersion, doc.OpenAPI)
	assert.Equal(t, DefaultTitle, doc.Info.Title)
	assert.Equal(t, "1.2.3", doc.Info.Version)
	assert.Equal(t, "Automatically generated API documentation (3 API methods found)", doc.Info.Description)
	assert.Equal(t, 3, doc.Info.Generated.MethodsFound)
	assert.Equal(t, 1, doc.Info.Generated.DataTypesFound)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", doc.Info.Generated.RunID)
	assert.Equal(t, "2026-01-02T02:04:05.678Z", doc.Info.Generated.Timestamp.String())

	names := make([]string, 0, len(doc.Tags))
	for _, tag := range doc.Tags {
		names = append(names, tag.Name)
	}
	assert.Equal(t, []string{
		"Paymaster API", "ERC-4337 API", "Rundler API", "Debug API", "Admin API", "Monitoring API", group.OtherCategory,
	}, names)

	unknown := doc.Paths["/zz_unknown"].Post
	require.NotNil(t, unknown)
	assert.Equal(t, []string{group.OtherCategory}, unknown.Tags)
	assert.Equal(t, "Success response - void", unknown.Responses["200"].Description)
	assert.Contains(t, unknown.Description, "No description available")

	comp, ok := doc.Components.Schemas["RpcGasEstimate"]
	require.True(t, ok)
	assert.Equal(t, "object", comp.Type[0])
	assert.Len(t, comp.Properties, 2)
	assert.Equal(t, "crates/rpc/src/eth.rs", comp.Extensions["x-source-file"])
}

func TestAssemble_NoOtherTagWhenUnused(t *testing.T) {
	reg := extract.NewRegistry(quietLogger())
	reg.PutEndpoint(extract.Endpoint{RPCName: "chainId", ReturnExpr: "u64", ReturnType: schema.Map("u64")})
	reg.PutEndpoint(extract.Endpoint{RPCName: "health", ReturnExpr: "String", ReturnType: schema.Map("String")})

	doc, err := fixedAssembler(t).Assemble(context.Background(), reg, "0.1.0")
	require.NoError(t, err)
	for _, tag := range doc.Tags {
		assert.NotEqual(t, group.OtherCategory, tag.Name)
	}
}

func TestAssemble_RequestEnvelope(t *testing.T) {
	doc, err := fixedAssembler(t).Assemble(context.Background(), filledRegistry(t), "1.2.3")
	require.NoError(t, err)

	body := doc.Paths["/estimateUserOperationGas"].Post.RequestBody
	assert.True(t, body.Required)

	req := body.Content[JSONMediaType].Schema
	params := req.Properties["params"]
	require.NotNil(t, params.MinItems)
	require.NotNil(t, params.MaxItems)
	assert.Equal(t, int64(2), *params.MinItems)
	assert.Equal(t, int64(3), *params.MaxItems)
	assert.Equal(t, "estimateUserOperationGas", req.Properties["method"].Example)
	assert.Equal(t, "2.0", req.Properties["jsonrpc"].Example)

	raw, err := json.Marshal(params)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"x-parameters"`)
	assert.Contains(t, string(raw), `"$ref":"#/components/schemas/RpcUserOperation"`)
}

func TestAssemble_NilRegistry(t *testing.T) {
	_, err := fixedAssembler(t).Assemble(context.Background(), nil, "0.1.0")
	assert.ErrorIs(t, err, ErrNilRegistry)
}

func TestMarshal_RoundTripIsLossless(t *testing.T) {
	doc, err := fixedAssembler(t).Assemble(context.Background(), filledRegistry(t), "1.2.3")
	require.NoError(t, err)

	first, err := Marshal(doc)
	require.NoError(t, err)

	parsed, err := Unmarshal(first)
	require.NoError(t, err)

	second, err := Marshal(parsed)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
}

func TestMarshal_Format(t *testing.T) {
	doc, err := fixedAssembler(t).Assemble(context.Background(), filledRegistry(t), "1.2.3")
	require.NoError(t, err)

	data, err := Marshal(doc)
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "{\n  \"openapi\": \"3.0.3\",\n  \"info\": {"))
	assert.Contains(t, text, "**Source**: `crates/rpc/src/eth.rs:4`")
	assert.Contains(t, text, "Success response - RpcResult<RpcGasEstimate>")
	assert.NotContains(t, text, `\u003c`)
}

func TestWrite(t *testing.T) {
	doc, err := fixedAssembler(t).Assemble(context.Background(), filledRegistry(t), "1.2.3")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "web-ui", "swagger-ui", "openapi.json")
	require.NoError(t, Write(doc, path, quietLogger()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	expected, err := Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, expected, data)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWrite_UnwritableTargetFails(t *testing.T) {
	doc, err := fixedAssembler(t).Assemble(context.Background(), filledRegistry(t), "1.2.3")
	require.NoError(t, err)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err = Write(doc, filepath.Join(blocker, "openapi.json"), quietLogger())
	assert.Error(t, err)
}

func TestWriteAtomic_ReplacesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "openapi.json")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	if err := WriteAtomic(path, []byte(`{"openapi":"3.0.3"}`)); err != nil {
		t.Fatalf("WriteAtomic() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != `{"openapi":"3.0.3"}` {
		t.Errorf("content = %q", data)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestWriteAtomic_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "openapi.json")
	if err := WriteAtomic(path, []byte("{}")); err == nil {
		t.Error("WriteAtomic() into a missing directory succeeded, want error")
	}
}
