// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package apispec

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/apispec/services/apispec/assemble"
	"github.com/AleutianAI/apispec/services/apispec/config"
	"github.com/AleutianAI/apispec/services/apispec/group"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func fixtureTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"Cargo.toml": "[workspace.package]\nversion = \"0.4.2\"\n",
		"crates/paymaster/src/rpc.rs": `#[rpc(server, namespace = "pm")]
pub trait PaymasterApi {
    /// Sponsors a user operation.
    #[method(name = "sponsorUserOperation")]
    async fn sponsor_user_operation(&self, op: RpcUserOperation, entry_point: Address) -> RpcResult<Bytes>;
}
`,
		"crates/rpc/src/eth.rs": `pub trait EthApi {
    /// Returns the chain id.
    #[method(name = "chainId")]
    async fn chain_id(&self) -> RpcResult<u64>;

    #[method(name = "foo")]
    async fn foo_first(&self) -> RpcResult<String>;
}
`,
		"crates/rpc/src/zz_override.rs": `#[method(name = "foo")]
async fn foo_second(&self) -> RpcResult<bool>;
`,
		"crates/types/src/lib.rs": `#[derive(Debug, Serialize, Deserialize)]
pub struct RpcUserOperation {
    pub sender: Address,
    pub nonce: U256,
}
`,
		"target/debug/generated.rs": "#[method(name = \"ignored\")]\nfn ignored(&self);\n",
		"crates/bad/src/binary.rs":  string([]byte{0xff, 0xfe}),
	})
	return root
}

func TestGenerator_Generate(t *testing.T) {
	root := fixtureTree(t)

	result, err := NewGenerator(config.Default(), quietLogger()).Generate(context.Background(), root)
	require.NoError(t, err)

	report := result.Report
	assert.Equal(t, "0.4.2", report.Version)
	assert.Equal(t, 5, report.FilesScanned)
	assert.Equal(t, 3, report.Endpoints)
	assert.Equal(t, 1, report.DataTypes)
	require.Len(t, report.FilesFailed, 1)
	assert.Equal(t, "crates/bad/src/binary.rs", report.FilesFailed[0].File)

	require.Len(t, report.Duplicates, 1)
	assert.Equal(t, "foo", report.Duplicates[0].Name)
	assert.Equal(t, "crates/rpc/src/zz_override.rs", report.Duplicates[0].File)

	foo := result.Document.Paths["/foo"].Post
	require.NotNil(t, foo)
	assert.Equal(t, "foo_second - foo", foo.Summary)

	_, ignored := result.Document.Paths["/ignored"]
	assert.False(t, ignored)

	var names []string
	for _, m := range report.Methods {
		names = append(names, m.RPCName)
	}
	assert.Equal(t, []string{"chainId", "foo", "sponsorUserOperation"}, names)
	assert.Equal(t, "Paymaster API", report.Methods[2].Category)
	assert.Equal(t, group.OtherCategory, report.Methods[1].Category)
}

func TestGenerator_ApplyNamespace(t *testing.T) {
	root := fixtureTree(t)
	cfg := config.Default()
	cfg.ApplyNamespace = true

	result, err := NewGenerator(cfg, quietLogger()).Generate(context.Background(), root)
	require.NoError(t, err)

	op := result.Document.Paths["/pm_sponsorUserOperation"].Post
	require.NotNil(t, op)
	assert.Equal(t, []string{"Paymaster API"}, op.Tags)
}

func TestGenerator_Run_WritesDocument(t *testing.T) {
	root := fixtureTree(t)

	result, err := NewGenerator(config.Default(), quietLogger()).Run(context.Background(), root)
	require.NoError(t, err)

	out := filepath.Join(result.Report.Root, "web-ui", "swagger-ui", "openapi.json")
	assert.Equal(t, out, result.Report.OutputPath)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	doc, err := assemble.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "0.4.2", doc.Info.Version)
	assert.Len(t, doc.Paths, 3)
}

func TestGenerator_Run_FailOnDuplicates(t *testing.T) {
	root := fixtureTree(t)
	cfg := config.Default()
	cfg.FailOnDuplicates = true

	result, err := NewGenerator(cfg, quietLogger()).Run(context.Background(), root)
	assert.ErrorIs(t, err, ErrDuplicateDefinitions)
	require.NotNil(t, result)
	assert.FileExists(t, result.Report.OutputPath)
}

func TestGenerator_EmptyRoot(t *testing.T) {
	result, err := NewGenerator(config.Default(), quietLogger()).Generate(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, result.Report.Endpoints)
	assert.Equal(t, assemble.DefaultVersion, result.Report.Version)
	assert.Empty(t, result.Document.Paths)
}

func TestGenerator_CancelledContext(t *testing.T) {
	root := fixtureTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGenerator(config.Default(), quietLogger()).Generate(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}
