package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alc6/sqlsnap/compare"
	"github.com/alc6/sqlsnap/config"
	"github.com/alc6/sqlsnap/dump"
	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/engine/mysql"
	"github.com/alc6/sqlsnap/engine/oracle"
	"github.com/alc6/sqlsnap/engine/postgres"
	"github.com/alc6/sqlsnap/schema"
)

// newFactory registers every supported engine.
func newFactory() *engine.Factory {
	return engine.NewFactory(postgres.Driver{}, oracle.Driver{}, mysql.Driver{})
}

func openBundle(ctx context.Context, opener BundleOpener, target config.Target, pageSize int) (*engine.Bundle, error) {
	bundle, err := opener.Open(ctx, target.Engine, target.Config, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", target.Config, err)
	}
	return bundle, nil
}

func closeBundle(bundle *engine.Bundle) {
	if err := bundle.Close(); err != nil {
		slog.Error("failed to close connection", "target", bundle.String(), "error", err)
	}
}

// backupCore writes one backup file and returns its summary.
func backupCore(ctx context.Context, opener BundleOpener, target config.Target, opts dump.Options, pageSize int) (*dump.Summary, error) {
	bundle, err := openBundle(ctx, opener, target, pageSize)
	if err != nil {
		return nil, err
	}
	defer closeBundle(bundle)

	return dump.NewOrchestrator(bundle, opts).Run(ctx)
}

// compareCore diffs source against target. Fixes are rendered in the
// source dialect unless opts.TargetDialect asks for the target's.
func compareCore(ctx context.Context, opener BundleOpener, source, target config.Target, opts compare.Options) (*schema.ComparisonResult, error) {
	dialect := source.Engine
	if opts.TargetDialect {
		dialect = target.Engine
	}
	generator, err := opener.Generator(dialect, source.Engine)
	if err != nil {
		return nil, err
	}

	src, err := openBundle(ctx, opener, source, 0)
	if err != nil {
		return nil, err
	}
	defer closeBundle(src)

	dst, err := openBundle(ctx, opener, target, 0)
	if err != nil {
		return nil, err
	}
	defer closeBundle(dst)

	return compare.NewComparator(src, dst, generator, opts).Compare(ctx)
}

// inspectTables captures metadata for the selected tables in catalog order.
func inspectTables(ctx context.Context, bundle *engine.Bundle, tables []string) ([]*schema.TableMetadata, error) {
	names, err := bundle.Inspector.ListTables(ctx, bundle.Schema, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	out := make([]*schema.TableMetadata, 0, len(names))
	for _, name := range names {
		table, err := bundle.Inspector.GetTableMetadata(ctx, bundle.Schema, name)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect %s: %w", name, err)
		}
		out = append(out, table)
	}
	return out, nil
}

// inspectCore renders a schema as a readable listing.
func inspectCore(ctx context.Context, opener BundleOpener, target config.Target, tables []string) (string, error) {
	bundle, err := openBundle(ctx, opener, target, 0)
	if err != nil {
		return "", err
	}
	defer closeBundle(bundle)

	metadata, err := inspectTables(ctx, bundle, tables)
	if err != nil {
		return "", err
	}
	return FormatSchemaInfo(metadata), nil
}

// ddlCore renders the schema of a database as DDL for another engine,
// without data. Objects are ordered as in a backup.
func ddlCore(ctx context.Context, opener BundleOpener, source config.Target, to engine.Type, tables []string) (string, error) {
	generator, err := opener.Generator(to, source.Engine)
	if err != nil {
		return "", err
	}

	bundle, err := openBundle(ctx, opener, source, 0)
	if err != nil {
		return "", err
	}
	defer closeBundle(bundle)

	metadata, err := inspectTables(ctx, bundle, tables)
	if err != nil {
		return "", err
	}
	return FormatSchemaSQL(generator, metadata), nil
}

// FormatSchemaSQL renders sequences, tables, indexes and constraints in
// restore order.
func FormatSchemaSQL(g engine.Generator, tables []*schema.TableMetadata) string {
	var sb strings.Builder

	for _, table := range tables {
		for _, seq := range table.Sequences {
			for _, stmt := range g.CreateSequence(table.Schema, seq) {
				sb.WriteString(stmt + "\n")
			}
		}
	}
	for _, table := range tables {
		sb.WriteString(g.CreateTable(table) + "\n\n")
	}
	for _, table := range tables {
		for _, stmt := range g.CreateIndexes(table) {
			sb.WriteString(stmt + "\n")
		}
	}
	for _, table := range tables {
		for _, stmt := range g.CreateConstraints(table) {
			sb.WriteString(stmt + "\n")
		}
	}
	return sb.String()
}
