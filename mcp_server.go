package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/alc6/sqlsnap/compare"
	"github.com/alc6/sqlsnap/config"
	"github.com/alc6/sqlsnap/dump"
	"github.com/alc6/sqlsnap/engine"
)

// mcpHandlers serves the MCP tools against one factory and config file.
type mcpHandlers struct {
	opener     BundleOpener
	configPath string
}

// StartMCPServer starts the MCP server for backups and schema comparison
func StartMCPServer(opener BundleOpener, configPath string) error {
	s := server.NewMCPServer(
		"sqlsnap",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	h := &mcpHandlers{opener: opener, configPath: configPath}

	backupTool := mcp.NewTool("backup_database",
		append(connectionOptions("", "database"),
			mcp.WithDescription("Write a replayable SQL backup of one schema using read-only access"),
			mcp.WithString("output_dir",
				mcp.Description("Directory the backup file is written to (default: current directory)"),
			),
			mcp.WithString("tables",
				mcp.Description("Comma separated tables to back up (default: all)"),
			),
		)...,
	)
	s.AddTool(backupTool, h.handleBackup)

	compareTool := mcp.NewTool("compare_schemas",
		append(append(connectionOptions("source_", "source"), connectionOptions("target_", "target")...),
			mcp.WithDescription("List structural drift from a source schema to a target schema, with fix statements"),
			mcp.WithString("tables",
				mcp.Description("Comma separated tables to compare (default: all)"),
			),
		)...,
	)
	s.AddTool(compareTool, h.handleCompare)

	inspectTool := mcp.NewTool("inspect_schema",
		append(connectionOptions("", "database"),
			mcp.WithDescription("Show tables, columns, constraints and indexes of one schema"),
			mcp.WithString("format",
				mcp.Description("Output format: 'info' for a readable listing (default) or 'sql' for DDL"),
				mcp.Enum("info", "sql"),
			),
			mcp.WithString("tables",
				mcp.Description("Comma separated tables to inspect (default: all)"),
			),
		)...,
	)
	s.AddTool(inspectTool, h.handleInspect)

	slog.Info("starting sqlsnap mcp server")
	return server.ServeStdio(s)
}

func connectionOptions(prefix, label string) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString(prefix+"profile", mcp.Description(label+" profile name from the config file")),
		mcp.WithString(prefix+"engine", mcp.Description(label+" engine"), mcp.Enum("postgres", "oracle", "mysql")),
		mcp.WithString(prefix+"host", mcp.Description(label+" host")),
		mcp.WithString(prefix+"port", mcp.Description(label+" port (default: engine default)")),
		mcp.WithString(prefix+"database", mcp.Description(label+" database, or service name for oracle")),
		mcp.WithString(prefix+"user", mcp.Description(label+" user")),
		mcp.WithString(prefix+"password", mcp.Description(label+" password")),
		mcp.WithString(prefix+"schema", mcp.Description(label+" schema (postgres), owner (oracle) or database (mysql)")),
	}
}

// toolTarget resolves a connection from a profile or inline arguments.
func (h *mcpHandlers) toolTarget(request mcp.CallToolRequest, prefix string) (config.Target, error) {
	schemaName := request.GetString(prefix+"schema", "")

	if profile := request.GetString(prefix+"profile", ""); profile != "" {
		file, err := loadConfig(h.configPath, true)
		if err != nil {
			return config.Target{}, err
		}
		target, err := file.Target(profile)
		if err != nil {
			return config.Target{}, err
		}
		if schemaName != "" {
			target.Config.Schema = schemaName
		}
		return target, nil
	}

	p := config.Profile{
		Engine:   request.GetString(prefix+"engine", ""),
		Host:     request.GetString(prefix+"host", "localhost"),
		Database: request.GetString(prefix+"database", ""),
		User:     request.GetString(prefix+"user", ""),
		Password: request.GetString(prefix+"password", ""),
		Schema:   schemaName,
	}
	if port := request.GetString(prefix+"port", ""); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return config.Target{}, fmt.Errorf("invalid %sport %q", prefix, port)
		}
		p.Port = n
	}
	return p.Resolve()
}

func toolTables(request mcp.CallToolRequest) []string {
	var tables []string
	for _, t := range strings.Split(request.GetString("tables", ""), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tables = append(tables, t)
		}
	}
	return tables
}

// handleBackup processes the backup_database tool request
func (h *mcpHandlers) handleBackup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := h.toolTarget(request, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := dump.DefaultOptions()
	opts.OutputDir = request.GetString("output_dir", ".")
	opts.Tables = toolTables(request)

	output, err := backupToolCore(ctx, h.opener, target, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("backup completed:\n\n%s", output)), nil
}

// backupToolCore runs a backup and reports its summary as JSON
func backupToolCore(ctx context.Context, opener BundleOpener, target config.Target, opts dump.Options) (string, error) {
	summary, err := backupCore(ctx, opener, target, opts, engine.DefaultPageSize)
	if err != nil {
		return "", err
	}

	result := map[string]any{
		"path":        summary.Path,
		"tables":      summary.Tables,
		"rows":        summary.Rows,
		"duration_ms": summary.Duration.Milliseconds(),
	}
	jsonOutput, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result to JSON: %w", err)
	}
	return string(jsonOutput), nil
}

// handleCompare processes the compare_schemas tool request
func (h *mcpHandlers) handleCompare(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := h.toolTarget(request, "source_")
	if err != nil {
		return mcp.NewToolResultError("source: " + err.Error()), nil
	}
	target, err := h.toolTarget(request, "target_")
	if err != nil {
		return mcp.NewToolResultError("target: " + err.Error()), nil
	}

	opts := compare.DefaultOptions()
	opts.Tables = toolTables(request)

	output, err := compareToolCore(ctx, h.opener, source, target, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("comparison completed:\n\n%s", output)), nil
}

// compareToolCore renders the report followed by the fix statements
func compareToolCore(ctx context.Context, opener BundleOpener, source, target config.Target, opts compare.Options) (string, error) {
	result, err := compareCore(ctx, opener, source, target, opts)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := WriteReport(&sb, result); err != nil {
		return "", err
	}
	if result.HasDifferences() {
		sb.WriteString("\n-- Fixes\n\n")
		if err := WriteFixes(&sb, result); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// handleInspect processes the inspect_schema tool request
func (h *mcpHandlers) handleInspect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := h.toolTarget(request, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var output string
	if request.GetString("format", "info") == "sql" {
		output, err = ddlCore(ctx, h.opener, target, target.Engine, toolTables(request))
	} else {
		output, err = inspectCore(ctx, h.opener, target, toolTables(request))
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("schema inspected successfully:\n\n%s", output)), nil
}
