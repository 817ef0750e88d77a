package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alc6/sqlsnap/compare"
	"github.com/alc6/sqlsnap/config"
	"github.com/alc6/sqlsnap/dump"
	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

func toolRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func TestToolTarget(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "sqlsnap.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
profiles:
  reporting:
    engine: mysql
    host: replica.internal
    database: shop
    user: reader
    schema: shop
`), 0o600))
	h := &mcpHandlers{configPath: configPath}

	t.Run("inline_arguments", func(t *testing.T) {
		target, err := h.toolTarget(toolRequest(map[string]any{
			"source_engine":   "oracle",
			"source_host":     "ora.internal",
			"source_port":     "1522",
			"source_database": "ORCLPDB1",
			"source_user":     "hr",
			"source_schema":   "HR",
		}), "source_")
		require.NoError(t, err)

		assert.Equal(t, engine.Oracle, target.Engine)
		assert.Equal(t, 1522, target.Config.Port)
		assert.Equal(t, "HR", target.Config.Schema)
	})

	t.Run("default_host_and_port", func(t *testing.T) {
		target, err := h.toolTarget(toolRequest(map[string]any{
			"engine":   "postgres",
			"database": "shop",
			"user":     "app",
		}), "")
		require.NoError(t, err)
		assert.Equal(t, "localhost", target.Config.Host)
		assert.Equal(t, 5432, target.Config.Port)
	})

	t.Run("profile_with_schema_override", func(t *testing.T) {
		target, err := h.toolTarget(toolRequest(map[string]any{
			"target_profile": "reporting",
			"target_schema":  "archive",
		}), "target_")
		require.NoError(t, err)

		assert.Equal(t, engine.MySQL, target.Engine)
		assert.Equal(t, "replica.internal", target.Config.Host)
		assert.Equal(t, 3306, target.Config.Port)
		assert.Equal(t, "archive", target.Config.Schema)
	})

	t.Run("unknown_profile", func(t *testing.T) {
		_, err := h.toolTarget(toolRequest(map[string]any{"profile": "prod"}), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `profile "prod" not found (available: reporting)`)
	})

	t.Run("invalid_port", func(t *testing.T) {
		_, err := h.toolTarget(toolRequest(map[string]any{
			"engine": "postgres", "database": "shop", "user": "app", "port": "five",
		}), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `invalid port "five"`)
	})

	t.Run("unsupported_engine", func(t *testing.T) {
		_, err := h.toolTarget(toolRequest(map[string]any{
			"engine": "db2", "database": "shop", "user": "app",
		}), "")
		assert.Error(t, err)
	})
}

func TestToolTables(t *testing.T) {
	tests := []struct {
		name   string
		args   map[string]any
		expect []string
	}{
		{name: "absent", args: map[string]any{}, expect: nil},
		{name: "single", args: map[string]any{"tables": "orders"}, expect: []string{"orders"}},
		{name: "trimmed", args: map[string]any{"tables": " orders, customers ,,"}, expect: []string{"orders", "customers"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, toolTables(toolRequest(tt.args)))
		})
	}
}

func TestBackupToolCore(t *testing.T) {
	dir := t.TempDir()
	opener := singleBundleOpener(t, testOrders())
	target := config.Target{Engine: engine.PostgreSQL, Config: schema.ConnectionConfig{Host: "localhost", Port: 5432, Database: "shop", User: "app"}}

	opts := dump.DefaultOptions()
	opts.OutputDir = dir

	output, err := backupToolCore(context.Background(), opener, target, opts)
	require.NoError(t, err)

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &summary))
	assert.Equal(t, float64(1), summary["tables"])
	assert.Equal(t, float64(1), summary["rows"])
	assert.Equal(t, dir, filepath.Dir(summary["path"].(string)))
	assert.Contains(t, summary, "duration_ms")
	assert.Equal(t, []int{engine.DefaultPageSize}, opener.PageSizes)
}

func TestCompareToolCore(t *testing.T) {
	source := config.Target{Engine: engine.PostgreSQL, Config: schema.ConnectionConfig{Host: "prod", Port: 5432, Database: "shop", User: "app"}}
	target := config.Target{Engine: engine.PostgreSQL, Config: schema.ConnectionConfig{Host: "stage", Port: 5432, Database: "shop", User: "app"}}

	t.Run("drift_with_fixes", func(t *testing.T) {
		drifted := testOrders()
		drifted.Indexes = nil
		opener := &MockBundleOpener{
			OpenFunc: func(_ context.Context, e engine.Type, cfg schema.ConnectionConfig, _ int) (*engine.Bundle, error) {
				if cfg.Host == "prod" {
					return fakeBundle(t, e, cfg, testOrders()), nil
				}
				return fakeBundle(t, e, cfg, drifted), nil
			},
		}

		output, err := compareToolCore(context.Background(), opener, source, target, compare.DefaultOptions())
		require.NoError(t, err)
		assert.Contains(t, output, "missing_index: 1")
		assert.Contains(t, output, "\n-- Fixes\n\n-- missing_index orders.orders_note_idx\nCREATE INDEX orders_note_idx ON public.orders USING btree (note);\n")
		assert.Equal(t, []int{0, 0}, opener.PageSizes)
	})

	t.Run("identical", func(t *testing.T) {
		output, err := compareToolCore(context.Background(), singleBundleOpener(t, testOrders()), source, target, compare.DefaultOptions())
		require.NoError(t, err)
		assert.Contains(t, output, "No differences found.")
		assert.NotContains(t, output, "-- Fixes")
	})

	t.Run("target_unreachable", func(t *testing.T) {
		opener := &MockBundleOpener{
			OpenFunc: func(_ context.Context, e engine.Type, cfg schema.ConnectionConfig, _ int) (*engine.Bundle, error) {
				if cfg.Host == "prod" {
					return fakeBundle(t, e, cfg, testOrders()), nil
				}
				return nil, SimulateError("connection")
			},
		}

		_, err := compareToolCore(context.Background(), opener, source, target, compare.DefaultOptions())
		require.Error(t, err)
		assert.ErrorIs(t, err, engine.ErrConnectionFailed)
		assert.Contains(t, err.Error(), "failed to open app@stage:5432/shop")
	})
}

func TestToolHandlers(t *testing.T) {
	ctx := context.Background()
	h := &mcpHandlers{opener: singleBundleOpener(t, testOrders())}

	t.Run("inspect_info", func(t *testing.T) {
		result, err := h.handleInspect(ctx, toolRequest(map[string]any{
			"engine": "postgres", "database": "shop", "user": "app",
		}))
		require.NoError(t, err)
		assert.False(t, result.IsError)
		text := resultText(t, result)
		assert.Contains(t, text, "schema inspected successfully:")
		assert.Contains(t, text, "Table: public.orders")
	})

	t.Run("inspect_sql", func(t *testing.T) {
		result, err := h.handleInspect(ctx, toolRequest(map[string]any{
			"engine": "postgres", "database": "shop", "user": "app", "format": "sql", "tables": "orders",
		}))
		require.NoError(t, err)
		assert.Contains(t, resultText(t, result), `CREATE TABLE "public"."orders"`)
	})

	t.Run("backup", func(t *testing.T) {
		result, err := h.handleBackup(ctx, toolRequest(map[string]any{
			"engine": "postgres", "database": "shop", "user": "app", "output_dir": t.TempDir(),
		}))
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Contains(t, resultText(t, result), `"tables": 1`)
	})

	t.Run("invalid_connection_is_tool_error", func(t *testing.T) {
		result, err := h.handleBackup(ctx, toolRequest(map[string]any{"engine": "postgres"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "database is required")
	})

	t.Run("compare_reports_side", func(t *testing.T) {
		result, err := h.handleCompare(ctx, toolRequest(map[string]any{
			"source_engine": "postgres", "source_database": "shop", "source_user": "app",
			"target_engine": "postgres", "target_user": "app",
		}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "target: database is required")
	})
}
