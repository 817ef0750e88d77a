package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

// Inspector reads table metadata from information_schema and pg_catalog.
type Inspector struct {
	conn engine.Connection
}

func NewInspector(conn engine.Connection) *Inspector {
	return &Inspector{conn: conn}
}

// ListTables returns base tables of a schema, optionally restricted to filter
func (i *Inspector) ListTables(ctx context.Context, schemaName string, filter []string) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	var tables []string
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		tables = append(tables, name)
		return nil
	}, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables = engine.FilterTables(tables, filter)
	slog.Debug("found database tables", "schema", schemaName, "count", len(tables))
	return tables, nil
}

// GetTableMetadata runs the four catalog queries of a table concurrently.
func (i *Inspector) GetTableMetadata(ctx context.Context, schemaName, table string) (*schema.TableMetadata, error) {
	var (
		columns     []schema.TableColumn
		constraints []schema.TableConstraint
		indexes     []schema.TableIndex
		sequences   []schema.TableSequence
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		columns, err = i.getColumns(gctx, schemaName, table)
		return err
	})
	g.Go(func() (err error) {
		constraints, err = i.getConstraints(gctx, schemaName, table)
		return err
	})
	g.Go(func() (err error) {
		indexes, err = i.getIndexes(gctx, schemaName, table)
		return err
	})
	g.Go(func() (err error) {
		sequences, err = i.getSequences(gctx, schemaName, table)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to inspect table %s.%s: %w", schemaName, table, err)
	}

	slog.Debug("inspected table",
		"table", table,
		"columns", len(columns),
		"constraints", len(constraints),
		"indexes", len(indexes),
		"sequences", len(sequences))

	return &schema.TableMetadata{
		Name:        table,
		Schema:      schemaName,
		Columns:     columns,
		Constraints: constraints,
		Indexes:     indexes,
		Sequences:   sequences,
	}, nil
}

func (i *Inspector) getColumns(ctx context.Context, schemaName, table string) ([]schema.TableColumn, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.udt_name,
			c.is_nullable = 'YES' AS is_nullable,
			c.column_default,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			COALESCE(c.identity_generation, '')
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	var columns []schema.TableColumn
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var col schema.TableColumn
		if err := rows.Scan(&col.Name, &col.DataType, &col.UDTName, &col.Nullable, &col.DefaultValue,
			&col.CharacterLength, &col.NumericPrecision, &col.NumericScale, &col.Identity); err != nil {
			return err
		}
		columns = append(columns, col)
		return nil
	}, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	return columns, nil
}

// getConstraints reads pg_constraint flattened to one row per key column.
// information_schema is avoided because it reports NOT NULL as CHECK.
func (i *Inspector) getConstraints(ctx context.Context, schemaName, table string) ([]schema.TableConstraint, error) {
	query := `
		SELECT
			con.conname,
			con.contype::text,
			COALESCE(a.attname::text, ''),
			COALESCE(rn.nspname::text, ''),
			COALESCE(rc.relname::text, ''),
			COALESCE(ra.attname::text, ''),
			con.confdeltype::text,
			con.confupdtype::text,
			CASE WHEN con.contype = 'c' THEN pg_get_constraintdef(con.oid, true) ELSE '' END
		FROM pg_constraint con
		JOIN pg_class t ON t.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		LEFT JOIN LATERAL unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord) ON true
		LEFT JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		LEFT JOIN pg_class rc ON rc.oid = con.confrelid
		LEFT JOIN pg_namespace rn ON rn.oid = rc.relnamespace
		LEFT JOIN pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = con.confkey[k.ord::int]
		WHERE n.nspname = $1 AND t.relname = $2
		AND con.contype IN ('p', 'f', 'u', 'c')
		ORDER BY con.oid, k.ord
	`

	var flat []engine.ConstraintRow
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var r engine.ConstraintRow
		var kind, onDelete, onUpdate string
		if err := rows.Scan(&r.Name, &kind, &r.Column, &r.RefSchema, &r.RefTable, &r.RefColumn,
			&onDelete, &onUpdate, &r.Definition); err != nil {
			return err
		}
		r.Kind = constraintKinds[kind]
		if r.Kind == schema.ForeignKey {
			r.OnDelete = referentialActions[onDelete]
			r.OnUpdate = referentialActions[onUpdate]
		}
		flat = append(flat, r)
		return nil
	}, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get constraints: %w", err)
	}
	return engine.AggregateConstraints(flat), nil
}

var constraintKinds = map[string]schema.ConstraintKind{
	"p": schema.PrimaryKey,
	"f": schema.ForeignKey,
	"u": schema.Unique,
	"c": schema.Check,
}

var referentialActions = map[string]string{
	"r": "RESTRICT",
	"c": "CASCADE",
	"n": "SET NULL",
	"d": "SET DEFAULT",
}

// getIndexes skips indexes that back primary key or unique constraints; they
// are recreated by the constraint itself.
func (i *Inspector) getIndexes(ctx context.Context, schemaName, table string) ([]schema.TableIndex, error) {
	query := `
		SELECT
			i.indexname,
			i.indexdef,
			idx.indisunique,
			ARRAY(
				SELECT COALESCE(a.attname::text, pg_get_indexdef(idx.indexrelid, k.ord::int, true))
				FROM unnest(idx.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
				LEFT JOIN pg_attribute a ON a.attrelid = idx.indrelid AND a.attnum = k.attnum AND k.attnum > 0
				ORDER BY k.ord
			) AS columns
		FROM pg_indexes i
		JOIN pg_namespace n ON n.nspname = i.schemaname
		JOIN pg_class ic ON ic.relname = i.indexname AND ic.relnamespace = n.oid
		JOIN pg_index idx ON idx.indexrelid = ic.oid
		WHERE i.schemaname = $1
		AND i.tablename = $2
		AND NOT idx.indisprimary
		AND NOT EXISTS (
			SELECT 1 FROM pg_constraint con
			WHERE con.conindid = idx.indexrelid
			AND con.conrelid = idx.indrelid
			AND con.contype IN ('p', 'u')
		)
		ORDER BY i.indexname
	`

	var indexes []schema.TableIndex
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var idx schema.TableIndex
		if err := rows.Scan(&idx.Name, &idx.Definition, &idx.Unique, pq.Array(&idx.Columns)); err != nil {
			return err
		}
		indexes = append(indexes, idx)
		return nil
	}, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get indexes: %w", err)
	}
	return indexes, nil
}

// getSequences correlates sequences to columns through pg_depend: 'a' for
// serial ownership, 'i' for identity columns. Sequences a column default
// only calls through nextval depend on pg_attrdef instead and come back
// without an owning column.
func (i *Inspector) getSequences(ctx context.Context, schemaName, table string) ([]schema.TableSequence, error) {
	query := `
		SELECT
			s.relname,
			format_type(seq.seqtypid, NULL),
			seq.seqstart,
			seq.seqmin,
			seq.seqmax,
			seq.seqincrement,
			seq.seqcycle,
			seq.seqcache,
			ps.last_value,
			has_sequence_privilege(s.oid, 'SELECT,USAGE'),
			dep.owner,
			dep.is_identity
		FROM (
			SELECT d.objid AS seqid, a.attname AS owner, d.deptype = 'i' AS is_identity, a.attnum AS pos
			FROM pg_depend d
			JOIN pg_class t ON t.oid = d.refobjid
			JOIN pg_namespace tn ON tn.oid = t.relnamespace
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = d.refobjsubid
			WHERE d.classid = 'pg_class'::regclass
			AND d.refclassid = 'pg_class'::regclass
			AND d.deptype IN ('a', 'i')
			AND tn.nspname = $1
			AND t.relname = $2
			UNION ALL
			SELECT d.refobjid, '', false, ad.adnum
			FROM pg_attrdef ad
			JOIN pg_class t ON t.oid = ad.adrelid
			JOIN pg_namespace tn ON tn.oid = t.relnamespace
			JOIN pg_depend d ON d.objid = ad.oid
				AND d.classid = 'pg_attrdef'::regclass
				AND d.refclassid = 'pg_class'::regclass
				AND d.deptype = 'n'
			WHERE tn.nspname = $1
			AND t.relname = $2
			AND NOT EXISTS (
				SELECT 1 FROM pg_depend o
				WHERE o.objid = d.refobjid
				AND o.classid = 'pg_class'::regclass
				AND o.refobjid = t.oid
				AND o.deptype IN ('a', 'i')
			)
		) dep
		JOIN pg_class s ON s.oid = dep.seqid
		JOIN pg_namespace sn ON sn.oid = s.relnamespace
		JOIN pg_sequence seq ON seq.seqrelid = s.oid
		LEFT JOIN pg_sequences ps ON ps.schemaname = sn.nspname AND ps.sequencename = s.relname
		WHERE s.relkind = 'S'
		AND sn.nspname = $1
		ORDER BY dep.pos, s.relname
	`

	var sequences []schema.TableSequence
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var (
			s        schema.TableSequence
			readable bool
		)
		if err := rows.Scan(&s.Name, &s.DataType, &s.StartValue, &s.MinValue, &s.MaxValue, &s.Increment,
			&s.Cycle, &s.CacheSize, &s.LastValue, &readable, &s.OwnedByColumn, &s.Identity); err != nil {
			return err
		}
		if !readable && !s.Identity {
			slog.Warn("sequence position is not readable, restore will restart it at its start value",
				"schema", schemaName, "table", table, "sequence", s.Name)
		}
		sequences = mergeSequence(sequences, s)
		return nil
	}, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get sequences: %w", err)
	}
	return sequences, nil
}

// mergeSequence appends s unless a sequence of the same name is already
// listed, as happens when several defaults draw from it.
func mergeSequence(sequences []schema.TableSequence, s schema.TableSequence) []schema.TableSequence {
	for _, existing := range sequences {
		if existing.Name == s.Name {
			return sequences
		}
	}
	return append(sequences, s)
}

// ListFunctions keys functions by signature so overloads stay distinct.
// Functions installed by extensions are skipped.
func (i *Inspector) ListFunctions(ctx context.Context, schemaName string) ([]schema.DatabaseObject, error) {
	query := `
		SELECT
			p.proname || '(' || pg_get_function_identity_arguments(p.oid) || ')',
			pg_get_functiondef(p.oid)
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		WHERE n.nspname = $1
		AND p.prokind IN ('f', 'p')
		AND NOT EXISTS (
			SELECT 1 FROM pg_depend d
			WHERE d.objid = p.oid AND d.deptype = 'e'
		)
		ORDER BY p.proname, p.oid
	`

	var functions []schema.DatabaseObject
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		obj := schema.DatabaseObject{Schema: schemaName}
		if err := rows.Scan(&obj.Name, &obj.Definition); err != nil {
			return err
		}
		functions = append(functions, obj)
		return nil
	}, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to list functions: %w", err)
	}
	return functions, nil
}

func (i *Inspector) ListTriggers(ctx context.Context, schemaName string) ([]schema.DatabaseObject, error) {
	query := `
		SELECT t.tgname, c.relname, pg_get_triggerdef(t.oid, true)
		FROM pg_trigger t
		JOIN pg_class c ON c.oid = t.tgrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		AND NOT t.tgisinternal
		ORDER BY c.relname, t.tgname
	`

	var triggers []schema.DatabaseObject
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		obj := schema.DatabaseObject{Schema: schemaName}
		if err := rows.Scan(&obj.Name, &obj.Table, &obj.Definition); err != nil {
			return err
		}
		triggers = append(triggers, obj)
		return nil
	}, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to list triggers: %w", err)
	}
	return triggers, nil
}
