// Package compare reports structural drift between two schemas.
package compare

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

// Options controls a comparison run.
type Options struct {
	// Tables restricts the comparison to the named source tables.
	Tables    []string
	Functions bool
	Triggers  bool

	// TargetDialect renders fixes for the target engine instead of the
	// source engine. It only matters when the engines differ.
	TargetDialect bool
}

func DefaultOptions() Options {
	return Options{Functions: true, Triggers: true}
}

// Comparator diffs a source schema against a target schema. Diffs are
// one-directional: objects only present in the target are never reported.
type Comparator struct {
	source    *engine.Bundle
	target    *engine.Bundle
	generator engine.Generator
	opts      Options
}

// NewComparator binds two open bundles. The generator authors fixes from
// source metadata in whichever dialect it was built for.
func NewComparator(source, target *engine.Bundle, generator engine.Generator, opts Options) *Comparator {
	return &Comparator{source: source, target: target, generator: generator, opts: opts}
}

// Compare runs one pass in source table order. Any query failure aborts the
// run and no partial result is returned.
func (c *Comparator) Compare(ctx context.Context) (*schema.ComparisonResult, error) {
	result := &schema.ComparisonResult{
		Source: c.source.String() + "/" + c.source.Schema,
		Target: c.target.String() + "/" + c.target.Schema,
	}

	slog.Info("comparing schemas", "source", result.Source, "target", result.Target)

	sourceTables, err := c.source.Inspector.ListTables(ctx, c.source.Schema, c.opts.Tables)
	if err != nil {
		return nil, fmt.Errorf("failed to list source tables: %w", err)
	}
	targetTables, err := c.target.Inspector.ListTables(ctx, c.target.Schema, c.opts.Tables)
	if err != nil {
		return nil, fmt.Errorf("failed to list target tables: %w", err)
	}

	for _, name := range sourceTables {
		diffs, err := c.compareTable(ctx, name, slices.Contains(targetTables, name))
		if err != nil {
			return nil, err
		}
		result.Diffs = append(result.Diffs, diffs...)
	}

	if c.opts.Functions {
		diffs, err := c.compareFunctions(ctx)
		if err != nil {
			return nil, err
		}
		result.Diffs = append(result.Diffs, diffs...)
	}

	if c.opts.Triggers {
		diffs, err := c.compareTriggers(ctx)
		if err != nil {
			return nil, err
		}
		result.Diffs = append(result.Diffs, diffs...)
	}

	slog.Info("comparison completed", "tables", len(sourceTables), "diffs", len(result.Diffs))
	return result, nil
}

func (c *Comparator) compareTable(ctx context.Context, name string, inTarget bool) ([]schema.SchemaDiff, error) {
	src, err := c.source.Inspector.GetTableMetadata(ctx, c.source.Schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect source table %s: %w", name, err)
	}
	src = c.retarget(src)

	if !inTarget {
		slog.Debug("table missing in target", "table", name)
		return []schema.SchemaDiff{{
			Kind:     schema.MissingTable,
			Table:    name,
			Expected: name,
			Detail:   fmt.Sprintf("table %s does not exist in target", name),
			Fix:      c.createTableBundle(src),
		}}, nil
	}

	dst, err := c.target.Inspector.GetTableMetadata(ctx, c.target.Schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect target table %s: %w", name, err)
	}

	var diffs []schema.SchemaDiff
	diffs = append(diffs, c.compareColumns(src, dst)...)
	diffs = append(diffs, c.compareConstraints(src, dst)...)
	diffs = append(diffs, c.compareIndexes(src, dst)...)
	return diffs, nil
}

// retarget copies a source table into the target schema. Qualifiers naming
// the source schema inside defaults, constraints and index definitions are
// rewritten too, so both sides compare on equal terms. src is not modified.
func (c *Comparator) retarget(src *schema.TableMetadata) *schema.TableMetadata {
	from, to := c.source.Schema, c.target.Schema
	t := *src
	t.Schema = to

	t.Columns = slices.Clone(src.Columns)
	for i, col := range t.Columns {
		if col.DefaultValue.Valid {
			t.Columns[i].DefaultValue.String = requalify(col.DefaultValue.String, from, to)
		}
	}

	t.Constraints = slices.Clone(src.Constraints)
	for i, con := range t.Constraints {
		t.Constraints[i].Definition = requalify(con.Definition, from, to)
		if con.RefSchema == from {
			t.Constraints[i].RefSchema = to
		}
	}

	t.Indexes = slices.Clone(src.Indexes)
	for i, idx := range t.Indexes {
		t.Indexes[i].Definition = requalify(idx.Definition, from, to)
	}
	return &t
}

// retargetObject moves a source function or trigger into the target schema.
func (c *Comparator) retargetObject(obj schema.DatabaseObject) schema.DatabaseObject {
	obj.Definition = requalify(obj.Definition, c.source.Schema, c.target.Schema)
	obj.Schema = c.target.Schema
	return obj
}

// createTableBundle renders everything needed to recreate a missing table:
// its sequences, the table, indexes and deferred constraints.
func (c *Comparator) createTableBundle(table *schema.TableMetadata) string {
	var stmts []string
	for _, seq := range table.Sequences {
		stmts = append(stmts, c.generator.CreateSequence(table.Schema, seq)...)
	}
	stmts = append(stmts, c.generator.CreateTable(table))
	stmts = append(stmts, c.generator.CreateIndexes(table)...)
	stmts = append(stmts, c.generator.CreateConstraints(table)...)
	return strings.Join(stmts, "\n")
}

func (c *Comparator) compareColumns(src, dst *schema.TableMetadata) []schema.SchemaDiff {
	var diffs []schema.SchemaDiff
	targetSchema := c.target.Schema

	for _, col := range src.Columns {
		other, ok := dst.Column(col.Name)
		if !ok {
			diffs = append(diffs, schema.SchemaDiff{
				Kind:     schema.MissingColumn,
				Table:    src.Name,
				Object:   col.Name,
				Expected: col.DataType,
				Detail:   fmt.Sprintf("column %s.%s does not exist in target", src.Name, col.Name),
				Fix:      c.generator.AddColumn(targetSchema, src.Name, col),
			})
			continue
		}

		if !strings.EqualFold(col.UDTName, other.UDTName) {
			diffs = append(diffs, schema.SchemaDiff{
				Kind:     schema.TypeMismatch,
				Table:    src.Name,
				Object:   col.Name,
				Expected: col.UDTName,
				Actual:   other.UDTName,
				Detail:   fmt.Sprintf("column %s.%s is %s in source and %s in target", src.Name, col.Name, col.DataType, other.DataType),
				Fix:      c.generator.AlterColumnType(targetSchema, src.Name, col),
			})
		}

		if col.Nullable != other.Nullable {
			diffs = append(diffs, schema.SchemaDiff{
				Kind:     schema.NullabilityMismatch,
				Table:    src.Name,
				Object:   col.Name,
				Expected: nullability(col),
				Actual:   nullability(other),
				Detail:   fmt.Sprintf("column %s.%s nullability differs", src.Name, col.Name),
				Fix:      c.generator.AlterColumnNullability(targetSchema, src.Name, col),
			})
		}

		if col.DefaultValue != other.DefaultValue {
			diffs = append(diffs, schema.SchemaDiff{
				Kind:     schema.DefaultMismatch,
				Table:    src.Name,
				Object:   col.Name,
				Expected: defaultText(col),
				Actual:   defaultText(other),
				Detail:   fmt.Sprintf("column %s.%s default differs", src.Name, col.Name),
				Fix:      c.generator.AlterColumnDefault(targetSchema, src.Name, col),
			})
		}
	}
	return diffs
}

func nullability(col schema.TableColumn) string {
	if col.Nullable {
		return "NULL"
	}
	return "NOT NULL"
}

func defaultText(col schema.TableColumn) string {
	if !col.DefaultValue.Valid {
		return "(none)"
	}
	return col.DefaultValue.String
}

// compareConstraints checks presence by name only.
func (c *Comparator) compareConstraints(src, dst *schema.TableMetadata) []schema.SchemaDiff {
	present := make(map[string]bool, len(dst.Constraints))
	for _, con := range dst.Constraints {
		present[con.Name] = true
	}

	var diffs []schema.SchemaDiff
	for _, con := range src.Constraints {
		if present[con.Name] {
			continue
		}
		diff := schema.SchemaDiff{
			Kind:     schema.MissingConstraint,
			Table:    src.Name,
			Object:   con.Name,
			Expected: string(con.Kind),
			Detail:   fmt.Sprintf("%s constraint %s does not exist in target", con.Kind, con.Name),
		}
		fix, err := c.generator.AddConstraint(c.target.Schema, src.Name, con)
		if err != nil {
			diff.Detail += ": " + err.Error()
		}
		diff.Fix = fix
		diffs = append(diffs, diff)
	}
	return diffs
}

// compareIndexes checks presence by name only.
func (c *Comparator) compareIndexes(src, dst *schema.TableMetadata) []schema.SchemaDiff {
	present := make(map[string]bool, len(dst.Indexes))
	for _, idx := range dst.Indexes {
		present[idx.Name] = true
	}

	var diffs []schema.SchemaDiff
	for _, idx := range src.Indexes {
		if present[idx.Name] {
			continue
		}

		table := *src
		table.Indexes = []schema.TableIndex{idx}

		diffs = append(diffs, schema.SchemaDiff{
			Kind:     schema.MissingIndex,
			Table:    src.Name,
			Object:   idx.Name,
			Expected: strings.Join(idx.Columns, ", "),
			Detail:   fmt.Sprintf("index %s does not exist in target", idx.Name),
			Fix:      strings.Join(c.generator.CreateIndexes(&table), "\n"),
		})
	}
	return diffs
}

func (c *Comparator) compareFunctions(ctx context.Context) ([]schema.SchemaDiff, error) {
	src, err := c.source.Inspector.ListFunctions(ctx, c.source.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list source functions: %w", err)
	}
	dst, err := c.target.Inspector.ListFunctions(ctx, c.target.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list target functions: %w", err)
	}

	targets := indexObjects(dst)
	var diffs []schema.SchemaDiff
	for _, fn := range src {
		fn = c.retargetObject(fn)
		other, ok := targets[fn.Key()]
		switch {
		case !ok:
			diffs = append(diffs, schema.SchemaDiff{
				Kind:   schema.MissingFunction,
				Object: fn.Name,
				Detail: fmt.Sprintf("function %s does not exist in target", fn.Name),
				Fix:    c.generator.CreateObject(fn),
			})
		case fn.Definition != other.Definition:
			diffs = append(diffs, schema.SchemaDiff{
				Kind:   schema.FunctionMismatch,
				Object: fn.Name,
				Detail: fmt.Sprintf("function %s definition differs", fn.Name),
				Fix:    c.generator.CreateObject(fn),
			})
		}
	}
	return diffs, nil
}

func (c *Comparator) compareTriggers(ctx context.Context) ([]schema.SchemaDiff, error) {
	src, err := c.source.Inspector.ListTriggers(ctx, c.source.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list source triggers: %w", err)
	}
	dst, err := c.target.Inspector.ListTriggers(ctx, c.target.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list target triggers: %w", err)
	}

	targets := indexObjects(dst)
	var diffs []schema.SchemaDiff
	for _, trg := range src {
		trg = c.retargetObject(trg)
		other, ok := targets[trg.Key()]
		switch {
		case !ok:
			diffs = append(diffs, schema.SchemaDiff{
				Kind:   schema.MissingTrigger,
				Table:  trg.Table,
				Object: trg.Name,
				Detail: fmt.Sprintf("trigger %s on %s does not exist in target", trg.Name, trg.Table),
				Fix:    c.generator.CreateObject(trg),
			})
		case trg.Definition != other.Definition:
			// Triggers cannot be redefined in place on every engine.
			diffs = append(diffs, schema.SchemaDiff{
				Kind:   schema.TriggerMismatch,
				Table:  trg.Table,
				Object: trg.Name,
				Detail: fmt.Sprintf("trigger %s on %s definition differs", trg.Name, trg.Table),
				Fix:    c.generator.DropTrigger(other) + "\n" + c.generator.CreateObject(trg),
			})
		}
	}
	return diffs, nil
}

func indexObjects(objs []schema.DatabaseObject) map[string]schema.DatabaseObject {
	m := make(map[string]schema.DatabaseObject, len(objs))
	for _, o := range objs {
		m[o.Key()] = o
	}
	return m
}
