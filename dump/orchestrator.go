package dump

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

// Options controls a backup run.
type Options struct {
	OutputDir string
	// Tables restricts the backup to the named tables. Empty means all.
	Tables []string
	// CreateDatabase emits CREATE DATABASE as a statement instead of a
	// comment. Restores usually run against a database created beforehand.
	CreateDatabase bool
	Functions      bool
	Triggers       bool
}

func DefaultOptions() Options {
	return Options{
		OutputDir: ".",
		Functions: true,
		Triggers:  true,
	}
}

// Summary reports a finished backup.
type Summary struct {
	Path     string
	Tables   int
	Rows     int64
	Duration time.Duration
}

// Orchestrator drives one backup through the bundle's inspector, generator
// and extractor into a Writer. Every phase completes before the next starts.
type Orchestrator struct {
	bundle *engine.Bundle
	opts   Options
	now    func() time.Time
}

func NewOrchestrator(bundle *engine.Bundle, opts Options) *Orchestrator {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &Orchestrator{bundle: bundle, opts: opts, now: time.Now}
}

// Run writes the backup file. On failure the partial file is closed with an
// abort marker and the error is returned.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	b := o.bundle

	w := NewWriter(o.opts.OutputDir, Header{
		Engine:   b.Engine,
		Database: b.Config.Database,
		Schema:   b.Schema,
	}, b.Generator)
	w.now = o.now

	if err := w.Open(); err != nil {
		return nil, err
	}

	slog.Info("starting backup", "target", b.String(), "schema", b.Schema, "path", w.Path())

	summary := &Summary{Path: w.Path()}
	if err := o.run(ctx, w, summary); err != nil {
		if abortErr := w.Abort(err); abortErr != nil {
			slog.Error("failed to finalize aborted backup", "path", w.Path(), "error", abortErr)
		}
		return nil, fmt.Errorf("backup of %s failed: %w", b.Config.Database, err)
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	summary.Duration = time.Since(start)
	slog.Info("backup completed",
		"path", summary.Path,
		"tables", summary.Tables,
		"rows", summary.Rows,
		"duration", summary.Duration)
	return summary, nil
}

func (o *Orchestrator) run(ctx context.Context, w *Writer, summary *Summary) error {
	b := o.bundle

	if err := o.writeDatabase(w); err != nil {
		return err
	}

	tables, err := o.inspect(ctx)
	if err != nil {
		return err
	}
	summary.Tables = len(tables)

	// Column defaults and check constraints may call functions, so they
	// exist before any table does.
	if o.opts.Functions {
		if err := o.writeFunctions(ctx, w); err != nil {
			return err
		}
	}

	if err := o.writeSequences(w, tables); err != nil {
		return err
	}

	if err := section(w, "Tables"); err != nil {
		return err
	}
	for _, table := range tables {
		if err := w.Write(b.Generator.CreateTable(table) + "\n\n"); err != nil {
			return err
		}
	}

	if err := section(w, "Data"); err != nil {
		return err
	}
	for _, table := range tables {
		rows, err := o.writeData(ctx, w, table)
		if err != nil {
			return err
		}
		summary.Rows += rows
	}

	if err := section(w, "Indexes"); err != nil {
		return err
	}
	for _, table := range tables {
		if err := writeStatements(w, b.Generator.CreateIndexes(table)); err != nil {
			return err
		}
	}

	if err := section(w, "Constraints"); err != nil {
		return err
	}
	for _, table := range tables {
		if err := writeStatements(w, b.Generator.CreateConstraints(table)); err != nil {
			return err
		}
	}

	if o.opts.Triggers {
		triggers, err := b.Inspector.ListTriggers(ctx, b.Schema)
		if err != nil {
			return err
		}
		if err := o.writeObjects(w, "Triggers", triggers); err != nil {
			return err
		}
	}
	return nil
}

// writeDatabase emits database and schema DDL. Statements the engine cannot
// express become comments.
func (o *Orchestrator) writeDatabase(w *Writer) error {
	g := o.bundle.Generator
	var lines []string

	db, err := g.CreateDatabase(o.bundle.Config.Database)
	switch {
	case err == nil && o.opts.CreateDatabase:
		lines = append(lines, db)
	case err == nil:
		lines = append(lines, "-- "+db)
	case engine.IsUnsupported(err):
		lines = append(lines, "-- "+err.Error())
	default:
		return err
	}

	stmt, err := g.CreateSchema(o.bundle.Schema)
	switch {
	case err == nil:
		lines = append(lines, stmt)
	case engine.IsUnsupported(err):
		lines = append(lines, "-- "+err.Error())
	default:
		return err
	}

	use, err := g.UseSchema(o.bundle.Schema)
	if err != nil {
		return err
	}
	lines = append(lines, use)

	return w.Write(strings.Join(lines, "\n") + "\n\n")
}

// inspect captures metadata for every selected table once, in catalog order.
func (o *Orchestrator) inspect(ctx context.Context) ([]*schema.TableMetadata, error) {
	b := o.bundle

	names, err := b.Inspector.ListTables(ctx, b.Schema, o.opts.Tables)
	if err != nil {
		return nil, err
	}
	if len(o.opts.Tables) > len(names) {
		slog.Warn("some requested tables were not found", "requested", len(o.opts.Tables), "found", len(names))
	}

	tables := make([]*schema.TableMetadata, 0, len(names))
	for _, name := range names {
		table, err := b.Inspector.GetTableMetadata(ctx, b.Schema, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}

	slog.Info("inspected tables", "count", len(tables))
	return tables, nil
}

func (o *Orchestrator) writeFunctions(ctx context.Context, w *Writer) error {
	b := o.bundle
	functions, err := b.Inspector.ListFunctions(ctx, b.Schema)
	if err != nil {
		return err
	}
	if len(functions) == 0 {
		return nil
	}
	if stmt := b.Generator.DeferFunctionChecks(); stmt != "" {
		if err := w.Write(stmt + "\n\n"); err != nil {
			return err
		}
	}
	return o.writeObjects(w, "Functions", functions)
}

// writeSequences emits each sequence once, even when several tables draw
// from it.
func (o *Orchestrator) writeSequences(w *Writer, tables []*schema.TableMetadata) error {
	if err := section(w, "Sequences"); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, table := range tables {
		for _, seq := range table.Sequences {
			key := table.Schema + "." + seq.Name
			if seen[key] {
				continue
			}
			seen[key] = true
			if err := writeStatements(w, o.bundle.Generator.CreateSequence(table.Schema, seq)); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeData streams one table, handing each page to the writer before the
// next page is fetched.
func (o *Orchestrator) writeData(ctx context.Context, w *Writer, table *schema.TableMetadata) (int64, error) {
	if err := w.Write(fmt.Sprintf("-- Data for %s\n", table.Name)); err != nil {
		return 0, err
	}

	var rows int64
	for batch, err := range o.bundle.Extractor.Batches(ctx, table) {
		if err != nil {
			return rows, fmt.Errorf("failed to extract %s: %w", table.Name, err)
		}
		if err := w.Write(strings.Join(batch, "\n") + "\n"); err != nil {
			return rows, err
		}
		rows += int64(len(batch))
	}

	slog.Info("table data written", "table", table.Name, "rows", rows)
	return rows, w.Write("\n")
}

func (o *Orchestrator) writeObjects(w *Writer, title string, objects []schema.DatabaseObject) error {
	if len(objects) == 0 {
		return nil
	}
	if err := section(w, title); err != nil {
		return err
	}
	for _, obj := range objects {
		if err := w.Write(o.bundle.Generator.CreateObject(obj) + "\n\n"); err != nil {
			return err
		}
	}
	return nil
}

func section(w *Writer, title string) error {
	return w.Write("-- " + title + "\n\n")
}

func writeStatements(w *Writer, stmts []string) error {
	if len(stmts) == 0 {
		return nil
	}
	return w.Write(strings.Join(stmts, "\n") + "\n\n")
}
