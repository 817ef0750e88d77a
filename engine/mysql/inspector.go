package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"golang.org/x/sync/errgroup"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

// errUnknownTable is raised by servers without information_schema tables
// added in later releases, such as CHECK_CONSTRAINTS before 8.0.16.
const errUnknownTable = 1109

// Inspector reads table metadata from information_schema.
type Inspector struct {
	conn engine.Connection
}

func NewInspector(conn engine.Connection) *Inspector {
	return &Inspector{conn: conn}
}

func (i *Inspector) ListTables(ctx context.Context, database string, filter []string) ([]string, error) {
	query := `
		SELECT TABLE_NAME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ?
		AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`

	var tables []string
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		tables = append(tables, name)
		return nil
	}, database)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables = engine.FilterTables(tables, filter)
	slog.Debug("found database tables", "database", database, "count", len(tables))
	return tables, nil
}

func (i *Inspector) GetTableMetadata(ctx context.Context, database, table string) (*schema.TableMetadata, error) {
	var (
		columns     []schema.TableColumn
		constraints []schema.TableConstraint
		checks      []schema.TableConstraint
		indexes     []schema.TableIndex
		sequences   []schema.TableSequence
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		columns, err = i.getColumns(gctx, database, table)
		return err
	})
	g.Go(func() (err error) {
		constraints, err = i.getConstraints(gctx, database, table)
		return err
	})
	g.Go(func() (err error) {
		checks, err = i.getChecks(gctx, database, table)
		return err
	})
	g.Go(func() (err error) {
		indexes, err = i.getIndexes(gctx, database, table)
		return err
	})
	g.Go(func() (err error) {
		sequences, err = i.getSequences(gctx, database, table)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to inspect table %s.%s: %w", database, table, err)
	}

	constraints = append(constraints, checks...)

	slog.Debug("inspected table",
		"table", table,
		"columns", len(columns),
		"constraints", len(constraints),
		"indexes", len(indexes),
		"sequences", len(sequences))

	return &schema.TableMetadata{
		Name:        table,
		Schema:      database,
		Columns:     columns,
		Constraints: constraints,
		Indexes:     indexes,
		Sequences:   sequences,
	}, nil
}

// lengthTypes carry CHARACTER_MAXIMUM_LENGTH worth keeping; text and blob
// types report their storage maximum, which is not part of the type.
var lengthTypes = map[string]bool{
	"char":      true,
	"varchar":   true,
	"binary":    true,
	"varbinary": true,
}

func (i *Inspector) getColumns(ctx context.Context, database, table string) ([]schema.TableColumn, error) {
	query := `
		SELECT
			COLUMN_NAME,
			COLUMN_TYPE,
			DATA_TYPE,
			IS_NULLABLE,
			COLUMN_DEFAULT,
			CHARACTER_MAXIMUM_LENGTH,
			NUMERIC_PRECISION,
			NUMERIC_SCALE,
			EXTRA
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ?
		AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`

	var columns []schema.TableColumn
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var col schema.TableColumn
		var nullable, extra string
		var def sql.NullString
		var length, precision, scale sql.NullInt64
		if err := rows.Scan(&col.Name, &col.DataType, &col.UDTName, &nullable, &def,
			&length, &precision, &scale, &extra); err != nil {
			return err
		}

		col.UDTName = strings.ToLower(col.UDTName)
		col.Nullable = nullable == "YES"
		if lengthTypes[col.UDTName] {
			col.CharacterLength = length
		}
		if col.UDTName == "decimal" {
			col.NumericPrecision = precision
			col.NumericScale = scale
		}

		extra = strings.ToLower(extra)
		if strings.Contains(extra, "auto_increment") {
			col.Identity = schema.IdentityByDefault
		} else {
			col.DefaultValue = normalizeDefault(col.UDTName, def, extra)
		}

		columns = append(columns, col)
		return nil
	}, database, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	return columns, nil
}

var numericDefaults = map[string]bool{
	"tinyint":   true,
	"smallint":  true,
	"mediumint": true,
	"int":       true,
	"bigint":    true,
	"decimal":   true,
	"float":     true,
	"double":    true,
	"year":      true,
}

// normalizeDefault turns COLUMN_DEFAULT into a SQL expression. MySQL reports
// literal defaults unquoted and flags expressions as DEFAULT_GENERATED;
// MariaDB quotes literals and reports a NULL default as the word NULL.
func normalizeDefault(udt string, def sql.NullString, extra string) sql.NullString {
	if !def.Valid {
		return def
	}
	v := def.String

	switch {
	case v == "NULL":
		return sql.NullString{}
	case strings.HasPrefix(v, "'"), strings.HasPrefix(v, "b'"), strings.HasPrefix(v, "("):
		return def
	case strings.Contains(extra, "default_generated"):
		if isTimestampFunc(v) {
			return def
		}
		return sql.NullString{String: "(" + v + ")", Valid: true}
	case isTimestampFunc(v):
		return def
	case numericDefaults[udt]:
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return def
		}
	}
	return sql.NullString{String: quoteString(v), Valid: true}
}

func isTimestampFunc(v string) bool {
	upper := strings.ToUpper(v)
	for _, fn := range []string{"CURRENT_TIMESTAMP", "NOW(", "LOCALTIMESTAMP", "CURRENT_DATE", "CURRENT_TIME"} {
		if strings.HasPrefix(upper, fn) {
			return true
		}
	}
	return false
}

// getConstraints reads primary, unique and foreign keys. Columns come in key
// order; the primary key sorts first.
func (i *Inspector) getConstraints(ctx context.Context, database, table string) ([]schema.TableConstraint, error) {
	query := `
		SELECT
			tc.CONSTRAINT_NAME,
			tc.CONSTRAINT_TYPE,
			k.COLUMN_NAME,
			k.REFERENCED_TABLE_SCHEMA,
			k.REFERENCED_TABLE_NAME,
			k.REFERENCED_COLUMN_NAME,
			rc.DELETE_RULE,
			rc.UPDATE_RULE
		FROM information_schema.TABLE_CONSTRAINTS tc
		JOIN information_schema.KEY_COLUMN_USAGE k
			ON k.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA
			AND k.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
			AND k.TABLE_NAME = tc.TABLE_NAME
		LEFT JOIN information_schema.REFERENTIAL_CONSTRAINTS rc
			ON rc.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA
			AND rc.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
			AND rc.TABLE_NAME = tc.TABLE_NAME
		WHERE tc.TABLE_SCHEMA = ?
		AND tc.TABLE_NAME = ?
		AND tc.CONSTRAINT_TYPE IN ('PRIMARY KEY', 'UNIQUE', 'FOREIGN KEY')
		ORDER BY FIELD(tc.CONSTRAINT_TYPE, 'PRIMARY KEY', 'UNIQUE', 'FOREIGN KEY'),
			tc.CONSTRAINT_NAME, k.ORDINAL_POSITION
	`

	var flat []engine.ConstraintRow
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var r engine.ConstraintRow
		var kind string
		var refSchema, refTable, refColumn, onDelete, onUpdate sql.NullString
		if err := rows.Scan(&r.Name, &kind, &r.Column, &refSchema, &refTable, &refColumn, &onDelete, &onUpdate); err != nil {
			return err
		}
		r.Kind = schema.ConstraintKind(kind)
		r.RefSchema = refSchema.String
		r.RefTable = refTable.String
		r.RefColumn = refColumn.String
		r.OnDelete = referentialAction(onDelete.String)
		r.OnUpdate = referentialAction(onUpdate.String)
		flat = append(flat, r)
		return nil
	}, database, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get constraints: %w", err)
	}
	return engine.AggregateConstraints(flat), nil
}

func referentialAction(rule string) string {
	if rule == "NO ACTION" {
		return ""
	}
	return rule
}

// getChecks reads CHECK constraints. Servers that predate them report none.
func (i *Inspector) getChecks(ctx context.Context, database, table string) ([]schema.TableConstraint, error) {
	query := `
		SELECT cc.CONSTRAINT_NAME, cc.CHECK_CLAUSE
		FROM information_schema.CHECK_CONSTRAINTS cc
		JOIN information_schema.TABLE_CONSTRAINTS tc
			ON tc.CONSTRAINT_SCHEMA = cc.CONSTRAINT_SCHEMA
			AND tc.CONSTRAINT_NAME = cc.CONSTRAINT_NAME
		WHERE tc.TABLE_SCHEMA = ?
		AND tc.TABLE_NAME = ?
		AND tc.CONSTRAINT_TYPE = 'CHECK'
		ORDER BY cc.CONSTRAINT_NAME
	`

	var checks []schema.TableConstraint
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var name, clause string
		if err := rows.Scan(&name, &clause); err != nil {
			return err
		}
		checks = append(checks, schema.TableConstraint{
			Name:       name,
			Kind:       schema.Check,
			Definition: "CHECK (" + clause + ")",
		})
		return nil
	}, database, table)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == errUnknownTable {
			slog.Debug("check constraints not available", "table", table)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get check constraints: %w", err)
	}
	return checks, nil
}

// getIndexes rebuilds secondary index statements from STATISTICS. Indexes
// backing primary key and unique constraints are left to the constraints;
// functional index parts have no column name and skip their index.
func (i *Inspector) getIndexes(ctx context.Context, database, table string) ([]schema.TableIndex, error) {
	query := `
		SELECT
			s.INDEX_NAME,
			s.NON_UNIQUE,
			s.INDEX_TYPE,
			s.COLUMN_NAME,
			s.SUB_PART,
			s.COLLATION
		FROM information_schema.STATISTICS s
		WHERE s.TABLE_SCHEMA = ?
		AND s.TABLE_NAME = ?
		AND NOT EXISTS (
			SELECT 1 FROM information_schema.TABLE_CONSTRAINTS tc
			WHERE tc.TABLE_SCHEMA = s.TABLE_SCHEMA
			AND tc.TABLE_NAME = s.TABLE_NAME
			AND tc.CONSTRAINT_NAME = s.INDEX_NAME
			AND tc.CONSTRAINT_TYPE IN ('PRIMARY KEY', 'UNIQUE')
		)
		ORDER BY s.INDEX_NAME, s.SEQ_IN_INDEX
	`

	var indexes []schema.TableIndex
	pos := make(map[string]int)
	var parts [][]string
	skipped := make(map[string]bool)
	kinds := make(map[string]string)

	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var name, indexType string
		var nonUnique int
		var column, collation sql.NullString
		var subPart sql.NullInt64
		if err := rows.Scan(&name, &nonUnique, &indexType, &column, &subPart, &collation); err != nil {
			return err
		}
		if !column.Valid {
			skipped[name] = true
			return nil
		}

		n, ok := pos[name]
		if !ok {
			n = len(indexes)
			pos[name] = n
			indexes = append(indexes, schema.TableIndex{Name: name, Unique: nonUnique == 0})
			parts = append(parts, nil)
			kinds[name] = indexType
		}

		part := quoteIdent(column.String)
		if subPart.Valid {
			part += fmt.Sprintf("(%d)", subPart.Int64)
		}
		if collation.String == "D" {
			part += " DESC"
		}
		indexes[n].Columns = append(indexes[n].Columns, column.String)
		parts[n] = append(parts[n], part)
		return nil
	}, database, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get indexes: %w", err)
	}

	out := make([]schema.TableIndex, 0, len(indexes))
	for n, idx := range indexes {
		if skipped[idx.Name] {
			slog.Warn("skipping functional index", "table", table, "index", idx.Name)
			continue
		}
		prefix := ""
		switch {
		case kinds[idx.Name] == "FULLTEXT":
			prefix = "FULLTEXT "
		case kinds[idx.Name] == "SPATIAL":
			prefix = "SPATIAL "
		case idx.Unique:
			prefix = "UNIQUE "
		}
		idx.Definition = fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
			prefix, quoteIdent(idx.Name), qualified(database, table), strings.Join(parts[n], ", "))
		out = append(out, idx)
	}
	return out, nil
}

// getSequences models the AUTO_INCREMENT counter as an identity generator.
// The counter in TABLES may be cached, so the highest stored value also
// bounds the restart point.
func (i *Inspector) getSequences(ctx context.Context, database, table string) ([]schema.TableSequence, error) {
	query := `
		SELECT c.COLUMN_NAME, c.DATA_TYPE, t.AUTO_INCREMENT
		FROM information_schema.COLUMNS c
		JOIN information_schema.TABLES t
			ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
		WHERE c.TABLE_SCHEMA = ?
		AND c.TABLE_NAME = ?
		AND c.EXTRA LIKE '%auto_increment%'
	`

	var sequences []schema.TableSequence
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var s schema.TableSequence
		var counter sql.NullInt64
		if err := rows.Scan(&s.OwnedByColumn, &s.DataType, &counter); err != nil {
			return err
		}
		s.Name = table + "_" + s.OwnedByColumn + "_seq"
		s.StartValue = 1
		s.Increment = 1
		s.Identity = true
		if counter.Valid && counter.Int64 > 1 {
			s.LastValue = sql.NullInt64{Int64: counter.Int64 - 1, Valid: true}
		}
		sequences = append(sequences, s)
		return nil
	}, database, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get sequences: %w", err)
	}

	for n, s := range sequences {
		stmt := fmt.Sprintf("SELECT MAX(%s) FROM %s", quoteIdent(s.OwnedByColumn), qualified(database, table))
		err := i.conn.Query(ctx, stmt, func(rows *sql.Rows) error {
			var highest sql.NullInt64
			if err := rows.Scan(&highest); err != nil {
				return err
			}
			if highest.Valid && (!s.LastValue.Valid || highest.Int64 > s.LastValue.Int64) {
				sequences[n].LastValue = highest
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read auto increment high-water mark: %w", err)
		}
	}
	return sequences, nil
}

// ListFunctions rebuilds stored functions and procedures from ROUTINES and
// PARAMETERS.
func (i *Inspector) ListFunctions(ctx context.Context, database string) ([]schema.DatabaseObject, error) {
	params, err := i.routineParameters(ctx, database)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			ROUTINE_NAME,
			ROUTINE_TYPE,
			DTD_IDENTIFIER,
			ROUTINE_DEFINITION,
			IS_DETERMINISTIC,
			SQL_DATA_ACCESS,
			SECURITY_TYPE
		FROM information_schema.ROUTINES
		WHERE ROUTINE_SCHEMA = ?
		ORDER BY ROUTINE_NAME, ROUTINE_TYPE
	`

	var functions []schema.DatabaseObject
	err = i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var r routine
		var returns, body sql.NullString
		if err := rows.Scan(&r.name, &r.kind, &returns, &body, &r.deterministic, &r.access, &r.security); err != nil {
			return err
		}
		r.returns = returns.String
		r.body = body.String
		r.params = params[r.kind+"."+r.name]

		functions = append(functions, schema.DatabaseObject{
			Name:       r.name,
			Schema:     database,
			Definition: r.definition(),
		})
		return nil
	}, database)
	if err != nil {
		return nil, fmt.Errorf("failed to list functions: %w", err)
	}
	return functions, nil
}

type routine struct {
	name, kind, returns, body       string
	deterministic, access, security string
	params                          []string
}

func (r routine) definition() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE %s %s(%s)", r.kind, quoteIdent(r.name), strings.Join(r.params, ", "))
	if r.kind == "FUNCTION" {
		fmt.Fprintf(&sb, " RETURNS %s", r.returns)
	}
	if r.deterministic == "YES" {
		sb.WriteString(" DETERMINISTIC")
	}
	if r.access != "" {
		sb.WriteString(" " + r.access)
	}
	if r.security != "" {
		sb.WriteString(" SQL SECURITY " + r.security)
	}
	sb.WriteString("\n")
	sb.WriteString(strings.TrimSpace(r.body))
	return sb.String()
}

// routineParameters returns rendered parameter lists keyed by
// "<ROUTINE_TYPE>.<name>".
func (i *Inspector) routineParameters(ctx context.Context, database string) (map[string][]string, error) {
	query := `
		SELECT SPECIFIC_NAME, ROUTINE_TYPE, PARAMETER_MODE, PARAMETER_NAME, DTD_IDENTIFIER
		FROM information_schema.PARAMETERS
		WHERE SPECIFIC_SCHEMA = ?
		AND ORDINAL_POSITION > 0
		ORDER BY SPECIFIC_NAME, ROUTINE_TYPE, ORDINAL_POSITION
	`

	params := make(map[string][]string)
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		var name, kind, typ string
		var mode, param sql.NullString
		if err := rows.Scan(&name, &kind, &mode, &param, &typ); err != nil {
			return err
		}
		p := quoteIdent(param.String) + " " + typ
		if kind == "PROCEDURE" && mode.Valid {
			p = mode.String + " " + p
		}
		key := kind + "." + name
		params[key] = append(params[key], p)
		return nil
	}, database)
	if err != nil {
		return nil, fmt.Errorf("failed to list routine parameters: %w", err)
	}
	return params, nil
}

func (i *Inspector) ListTriggers(ctx context.Context, database string) ([]schema.DatabaseObject, error) {
	query := `
		SELECT
			TRIGGER_NAME,
			EVENT_OBJECT_TABLE,
			ACTION_TIMING,
			EVENT_MANIPULATION,
			ACTION_STATEMENT
		FROM information_schema.TRIGGERS
		WHERE TRIGGER_SCHEMA = ?
		ORDER BY EVENT_OBJECT_TABLE, TRIGGER_NAME
	`

	var triggers []schema.DatabaseObject
	err := i.conn.Query(ctx, query, func(rows *sql.Rows) error {
		obj := schema.DatabaseObject{Schema: database}
		var timing, event, statement string
		if err := rows.Scan(&obj.Name, &obj.Table, &timing, &event, &statement); err != nil {
			return err
		}
		obj.Definition = fmt.Sprintf("CREATE TRIGGER %s %s %s ON %s FOR EACH ROW\n%s",
			quoteIdent(obj.Name), timing, event, quoteIdent(obj.Table), strings.TrimSpace(statement))
		triggers = append(triggers, obj)
		return nil
	}, database)
	if err != nil {
		return nil, fmt.Errorf("failed to list triggers: %w", err)
	}
	return triggers, nil
}
