package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

// Inspector reads table metadata from the ALL_* dictionary views.
type Inspector struct {
	conn engine.Connection
}

func NewInspector(conn engine.Connection) *Inspector {
	return &Inspector{conn: conn}
}

func (i *Inspector) ListTables(ctx context.Context, owner string, filter []string) ([]string, error) {
	query := `
		SELECT table_name
		FROM all_tables
		WHERE owner = :1
		AND nested = 'NO'
		AND secondary = 'N'
		AND dropped = 'NO'
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
	}, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables = engine.FilterTables(tables, filter)
	slog.Debug("found database tables", "owner", owner, "count", len(tables))
	return tables, nil
}

func (i *Inspector) GetTableMetadata(ctx context.Context, owner, table string) (*schema.TableMetadata, error) {
	var (
		columns     []schema.TableColumn
		constraints []schema.TableConstraint
		indexes     []schema.TableIndex
		sequences   []schema.TableSequence
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		columns, err = i.getColumns(gctx, owner, table)
		return err
	})
	g.Go(func() (err error) {
		constraints, err = i.getConstraints(gctx, owner, table)
		return err
	})
	g.Go(func() (err error) {
		indexes, err = i.getIndexes(gctx, owner, table)
		return err
	})
	g.Go(func() (err error) {
		sequences, err = i.getSequences(gctx, owner, table)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to inspect table %s.%s: %w", owner, table, err)
	}

	slog.Debug("inspected table",
		"table", table,
		"columns", len(columns),
		"constraints", len(constraints),
		"indexes", len(indexes),
		"sequences", len(sequences))

	return &schema.TableMetadata{
		Name:        table,
		Schema:      owner,
		Columns:     columns,
		Constraints: constraints,
		Indexes:     indexes,
		Sequences:   sequences,
	}, nil
}

func (i *Inspector) getColumns(ctx context.Context, owner, table string) ([]schema.TableColumn, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.nullable,
			c.data_default,
			CASE WHEN c.char_used IS NOT NULL THEN c.char_length END,
			c.data_precision,
			c.data_scale,
			i.generation_type
		FROM all_tab_cols c
		LEFT JOIN all_tab_identity_cols i
			ON i.owner = c.owner AND i.table_name = c.table_name AND i.column_name = c.column_name
		WHERE c.owner = :1
		AND c.table_name = :2
		AND c.hidden_column = 'NO'
		ORDER BY c.column_id
	`

	var columns []schema.TableColumn
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var col schema.TableColumn
		var nullable string
		var identity sql.NullString
		if err := rows.Scan(&col.Name, &col.DataType, &nullable, &col.DefaultValue,
			&col.CharacterLength, &col.NumericPrecision, &col.NumericScale, &identity); err != nil {
			return err
		}

		col.Nullable = nullable == "Y"
		col.UDTName = baseType(col.DataType)
		col.DataType = displayType(col)
		if identity.Valid {
			col.Identity = identity.String
			col.DefaultValue = sql.NullString{}
		} else if col.DefaultValue.Valid {
			col.DefaultValue.String = strings.TrimSpace(col.DefaultValue.String)
		}

		columns = append(columns, col)
		return nil
	}, owner, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	return columns, nil
}

var typePrecision = regexp.MustCompile(`\(\d+\)`)

// baseType drops fractional-second precision, so TIMESTAMP(6) WITH TIME ZONE
// compares as TIMESTAMP WITH TIME ZONE.
func baseType(dataType string) string {
	return typePrecision.ReplaceAllString(dataType, "")
}

func displayType(col schema.TableColumn) string {
	switch {
	case col.CharacterLength.Valid && col.CharacterLength.Int64 > 0:
		return fmt.Sprintf("%s(%d)", col.UDTName, col.CharacterLength.Int64)
	case col.UDTName == "NUMBER" && col.NumericPrecision.Valid && col.NumericScale.Valid:
		return fmt.Sprintf("NUMBER(%d,%d)", col.NumericPrecision.Int64, col.NumericScale.Int64)
	case col.UDTName == "NUMBER" && col.NumericPrecision.Valid:
		return fmt.Sprintf("NUMBER(%d)", col.NumericPrecision.Int64)
	}
	return col.DataType
}

var notNullCheck = regexp.MustCompile(`^"?[^"\s]+"?\s+IS\s+NOT\s+NULL$`)

// getConstraints pairs each key column with the referenced column at the
// same position. System NOT NULL checks are skipped; they belong to the
// column definition.
func (i *Inspector) getConstraints(ctx context.Context, owner, table string) ([]schema.TableConstraint, error) {
	query := `
		SELECT
			c.constraint_name,
			c.constraint_type,
			cc.column_name,
			r.owner,
			r.table_name,
			rcc.column_name,
			c.delete_rule,
			c.search_condition
		FROM all_constraints c
		LEFT JOIN all_cons_columns cc
			ON cc.owner = c.owner AND cc.constraint_name = c.constraint_name AND cc.table_name = c.table_name
		LEFT JOIN all_constraints r
			ON r.owner = c.r_owner AND r.constraint_name = c.r_constraint_name
		LEFT JOIN all_cons_columns rcc
			ON rcc.owner = r.owner AND rcc.constraint_name = r.constraint_name AND rcc.position = cc.position
		WHERE c.owner = :1
		AND c.table_name = :2
		AND c.constraint_type IN ('P', 'R', 'U', 'C')
		ORDER BY c.constraint_name, cc.position
	`

	var flat []engine.ConstraintRow
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var name, kind string
		var column, refOwner, refTable, refColumn, deleteRule, condition sql.NullString
		if err := rows.Scan(&name, &kind, &column, &refOwner, &refTable, &refColumn, &deleteRule, &condition); err != nil {
			return err
		}

		r := engine.ConstraintRow{
			Name:      name,
			Kind:      constraintKinds[kind],
			Column:    column.String,
			RefSchema: refOwner.String,
			RefTable:  refTable.String,
			RefColumn: refColumn.String,
		}
		switch r.Kind {
		case schema.Check:
			cond := strings.TrimSpace(condition.String)
			if notNullCheck.MatchString(cond) {
				return nil
			}
			r.Definition = "CHECK (" + cond + ")"
		case schema.ForeignKey:
			if deleteRule.String != "NO ACTION" {
				r.OnDelete = deleteRule.String
			}
		}
		flat = append(flat, r)
		return nil
	}, owner, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get constraints: %w", err)
	}
	return engine.AggregateConstraints(flat), nil
}

var constraintKinds = map[string]schema.ConstraintKind{
	"P": schema.PrimaryKey,
	"R": schema.ForeignKey,
	"U": schema.Unique,
	"C": schema.Check,
}

// getIndexes rebuilds CREATE INDEX statements from index columns and
// function-based index expressions. Indexes enforcing primary key or unique
// constraints and LOB indexes are skipped.
func (i *Inspector) getIndexes(ctx context.Context, owner, table string) ([]schema.TableIndex, error) {
	query := `
		SELECT
			i.index_name,
			i.uniqueness,
			ic.column_name,
			ic.descend,
			ie.column_expression
		FROM all_indexes i
		JOIN all_ind_columns ic
			ON ic.index_owner = i.owner AND ic.index_name = i.index_name
		LEFT JOIN all_ind_expressions ie
			ON ie.index_owner = ic.index_owner AND ie.index_name = ic.index_name AND ie.column_position = ic.column_position
		WHERE i.table_owner = :1
		AND i.table_name = :2
		AND i.index_type <> 'LOB'
		AND NOT EXISTS (
			SELECT 1 FROM all_constraints c
			WHERE c.owner = i.table_owner
			AND c.table_name = i.table_name
			AND c.index_name = i.index_name
			AND c.constraint_type IN ('P', 'U')
		)
		ORDER BY i.index_name, ic.column_position
	`

	var indexes []schema.TableIndex
	pos := make(map[string]int)
	var parts [][]string

	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var name, uniqueness, column string
		var descend, expression sql.NullString
		if err := rows.Scan(&name, &uniqueness, &column, &descend, &expression); err != nil {
			return err
		}

		n, ok := pos[name]
		if !ok {
			n = len(indexes)
			pos[name] = n
			indexes = append(indexes, schema.TableIndex{Name: name, Unique: uniqueness == "UNIQUE"})
			parts = append(parts, nil)
		}

		part := quoteIdent(column)
		key := column
		if expression.Valid && expression.String != "" {
			part = strings.TrimSpace(expression.String)
			key = part
		}
		if descend.String == "DESC" && !expression.Valid {
			part += " DESC"
		}
		indexes[n].Columns = append(indexes[n].Columns, key)
		parts[n] = append(parts[n], part)
		return nil
	}, owner, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get indexes: %w", err)
	}

	for n := range indexes {
		unique := ""
		if indexes[n].Unique {
			unique = "UNIQUE "
		}
		indexes[n].Definition = fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
			unique, qualified(owner, indexes[n].Name), qualified(owner, table), strings.Join(parts[n], ", "))
	}
	return indexes, nil
}

// getSequences returns identity generators. LAST_NUMBER is the dictionary
// high-water mark, at or past the last value handed out, so it is used as the
// restart point.
func (i *Inspector) getSequences(ctx context.Context, owner, table string) ([]schema.TableSequence, error) {
	query := `
		SELECT
			s.sequence_name,
			TO_CHAR(s.min_value),
			TO_CHAR(s.max_value),
			s.increment_by,
			s.cycle_flag,
			s.cache_size,
			TO_CHAR(s.last_number),
			i.column_name
		FROM all_tab_identity_cols i
		JOIN all_sequences s
			ON s.sequence_owner = i.owner AND s.sequence_name = i.sequence_name
		WHERE i.owner = :1
		AND i.table_name = :2
	`

	var sequences []schema.TableSequence
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var s schema.TableSequence
		var minValue, maxValue, lastNumber, cycle string
		if err := rows.Scan(&s.Name, &minValue, &maxValue, &s.Increment, &cycle, &s.CacheSize, &lastNumber, &s.OwnedByColumn); err != nil {
			return err
		}
		s.DataType = "NUMBER"
		s.MinValue = parseBound(minValue)
		s.MaxValue = parseBound(maxValue)
		s.StartValue = parseBound(lastNumber)
		s.Cycle = cycle == "Y"
		s.Identity = true
		sequences = append(sequences, s)
		return nil
	}, owner, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get sequences: %w", err)
	}
	return sequences, nil
}

// parseBound clamps Oracle's 28-digit sequence bounds to int64.
func parseBound(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err == nil {
		return n
	}
	if strings.HasPrefix(strings.TrimSpace(s), "-") {
		return math.MinInt64
	}
	return math.MaxInt64
}

// ListFunctions assembles standalone functions and procedures from
// ALL_SOURCE, one row per source line.
func (i *Inspector) ListFunctions(ctx context.Context, owner string) ([]schema.DatabaseObject, error) {
	query := `
		SELECT name, type, text
		FROM all_source
		WHERE owner = :1
		AND type IN ('FUNCTION', 'PROCEDURE')
		ORDER BY name, type, line
	`

	var functions []schema.DatabaseObject
	var body strings.Builder
	current := ""

	flush := func() {
		if current == "" {
			return
		}
		functions = append(functions, schema.DatabaseObject{
			Name:       current,
			Schema:     owner,
			Definition: "CREATE OR REPLACE " + strings.TrimRight(body.String(), " \n"),
		})
		body.Reset()
	}

	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var name, kind string
		var text sql.NullString
		if err := rows.Scan(&name, &kind, &text); err != nil {
			return err
		}
		if name != current {
			flush()
			current = name
		}
		body.WriteString(text.String)
		return nil
	}, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list functions: %w", err)
	}
	flush()
	return functions, nil
}

func (i *Inspector) ListTriggers(ctx context.Context, owner string) ([]schema.DatabaseObject, error) {
	query := `
		SELECT trigger_name, table_name, description, when_clause, trigger_body
		FROM all_triggers
		WHERE owner = :1
		AND base_object_type = 'TABLE'
		ORDER BY table_name, trigger_name
	`

	var triggers []schema.DatabaseObject
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		obj := schema.DatabaseObject{Schema: owner}
		var description, when, body sql.NullString
		if err := rows.Scan(&obj.Name, &obj.Table, &description, &when, &body); err != nil {
			return err
		}

		var sb strings.Builder
		sb.WriteString("CREATE OR REPLACE TRIGGER ")
		sb.WriteString(strings.TrimSpace(description.String))
		sb.WriteString("\n")
		if when.Valid && when.String != "" {
			fmt.Fprintf(&sb, "WHEN (%s)\n", when.String)
		}
		sb.WriteString(strings.TrimRight(body.String, " \n"))
		obj.Definition = sb.String()

		triggers = append(triggers, obj)
		return nil
	}, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list triggers: %w", err)
	}
	return triggers, nil
}
