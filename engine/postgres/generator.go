package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

// Generator renders PostgreSQL DDL for metadata captured from a source engine.
type Generator struct {
	source engine.Type
}

func NewGenerator(source engine.Type) *Generator {
	return &Generator{source: source}
}

func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = pq.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

func qualified(schemaName, name string) string {
	if schemaName == "" {
		return pq.QuoteIdentifier(name)
	}
	return pq.QuoteIdentifier(schemaName) + "." + pq.QuoteIdentifier(name)
}

func (g *Generator) CreateDatabase(name string) (string, error) {
	return fmt.Sprintf("CREATE DATABASE %s;", pq.QuoteIdentifier(name)), nil
}

func (g *Generator) CreateSchema(name string) (string, error) {
	return fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s;", pq.QuoteIdentifier(name)), nil
}

func (g *Generator) UseSchema(name string) (string, error) {
	if name == "public" {
		return "SET search_path TO public;", nil
	}
	return fmt.Sprintf("SET search_path TO %s, public;", pq.QuoteIdentifier(name)), nil
}

// CreateSequence emits the sequence and moves it to the last value handed
// out, so restored rows never collide with future values. Identity
// sequences are recreated by their column and produce nothing here.
func (g *Generator) CreateSequence(schemaName string, seq schema.TableSequence) []string {
	if seq.Identity {
		return nil
	}

	name := qualified(schemaName, seq.Name)

	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE SEQUENCE IF NOT EXISTS %s", name)
	if seq.DataType != "" && g.source == engine.PostgreSQL {
		fmt.Fprintf(&sb, " AS %s", seq.DataType)
	}
	fmt.Fprintf(&sb, " INCREMENT BY %d", increment(seq))
	if seq.MinValue != 0 || seq.MaxValue != 0 {
		fmt.Fprintf(&sb, " MINVALUE %d MAXVALUE %d", seq.MinValue, seq.MaxValue)
	}
	fmt.Fprintf(&sb, " START WITH %d", seq.StartValue)
	if seq.CacheSize > 1 {
		fmt.Fprintf(&sb, " CACHE %d", seq.CacheSize)
	}
	if seq.Cycle {
		sb.WriteString(" CYCLE")
	}
	sb.WriteString(";")

	var setval string
	if seq.LastValue.Valid {
		setval = fmt.Sprintf("SELECT setval(%s, %d, true);", pq.QuoteLiteral(name), seq.LastValue.Int64)
	} else {
		setval = fmt.Sprintf("SELECT setval(%s, %d, false);", pq.QuoteLiteral(name), seq.StartValue)
	}

	return []string{sb.String(), setval}
}

func increment(seq schema.TableSequence) int64 {
	if seq.Increment == 0 {
		return 1
	}
	return seq.Increment
}

// CreateTable emits the table with columns inline, then its primary key and
// sequence ownership as trailing ALTER statements.
func (g *Generator) CreateTable(table *schema.TableMetadata) string {
	name := qualified(table.Schema, table.Name)

	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE %s (\n", name)

	defs := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		defs[i] = "    " + g.columnDefinition(table, col)
	}
	sb.WriteString(strings.Join(defs, ",\n"))
	sb.WriteString("\n);")

	if pk, ok := table.PrimaryKey(); ok {
		stmt, _ := g.AddConstraint(table.Schema, table.Name, pk)
		sb.WriteString("\n")
		sb.WriteString(stmt)
	}

	for _, seq := range table.Sequences {
		if seq.Identity || seq.OwnedByColumn == "" {
			continue
		}
		fmt.Fprintf(&sb, "\nALTER SEQUENCE %s OWNED BY %s.%s;",
			qualified(table.Schema, seq.Name), name, pq.QuoteIdentifier(seq.OwnedByColumn))
	}

	return sb.String()
}

func (g *Generator) columnDefinition(table *schema.TableMetadata, col schema.TableColumn) string {
	var sb strings.Builder
	sb.WriteString(pq.QuoteIdentifier(col.Name))
	sb.WriteString(" ")
	sb.WriteString(g.MapType(col))

	if col.Identity != "" {
		mode := col.Identity
		if g.source != engine.PostgreSQL {
			mode = schema.IdentityByDefault
		}
		fmt.Fprintf(&sb, " GENERATED %s AS IDENTITY", mode)
		if seq, ok := table.SequenceFor(col.Name); ok {
			fmt.Fprintf(&sb, " (START WITH %d INCREMENT BY %d)", seq.NextValue(), increment(seq))
		}
	} else if col.DefaultValue.Valid {
		fmt.Fprintf(&sb, " DEFAULT %s", col.DefaultValue.String)
	}

	if !col.Nullable {
		sb.WriteString(" NOT NULL")
	}
	return sb.String()
}

func (g *Generator) CreateIndexes(table *schema.TableMetadata) []string {
	stmts := make([]string, 0, len(table.Indexes))
	for _, idx := range table.Indexes {
		stmts = append(stmts, g.createIndex(table, idx))
	}
	return stmts
}

// createIndex reuses the captured definition for PostgreSQL sources and
// rebuilds a plain index for others.
func (g *Generator) createIndex(table *schema.TableMetadata, idx schema.TableIndex) string {
	if g.source == engine.PostgreSQL && idx.Definition != "" {
		return terminate(idx.Definition)
	}

	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s);",
		unique, pq.QuoteIdentifier(idx.Name), qualified(table.Schema, table.Name), g.indexColumns(table, idx.Columns))
}

// indexColumns quotes plain column names and keeps expressions as captured.
func (g *Generator) indexColumns(table *schema.TableMetadata, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		if _, ok := table.Column(c); ok {
			parts[i] = pq.QuoteIdentifier(c)
		} else {
			parts[i] = c
		}
	}
	return strings.Join(parts, ", ")
}

// CreateConstraints emits the constraints deferred past data load: foreign
// keys, unique and check constraints, in catalog order.
func (g *Generator) CreateConstraints(table *schema.TableMetadata) []string {
	var stmts []string
	for _, c := range table.ConstraintsOf(schema.ForeignKey, schema.Unique, schema.Check) {
		stmt, err := g.AddConstraint(table.Schema, table.Name, c)
		if err != nil {
			continue
		}
		stmts = append(stmts, stmt)
	}
	return stmts
}

func (g *Generator) CreateObject(obj schema.DatabaseObject) string {
	return terminate(obj.Definition)
}

func (g *Generator) AddColumn(schemaName, table string, col schema.TableColumn) string {
	def := g.columnDefinition(&schema.TableMetadata{Name: table, Schema: schemaName}, col)
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", qualified(schemaName, table), def)
}

func (g *Generator) AlterColumnType(schemaName, table string, col schema.TableColumn) string {
	typ := g.MapType(col)
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s;",
		qualified(schemaName, table), pq.QuoteIdentifier(col.Name), typ, pq.QuoteIdentifier(col.Name), typ)
}

func (g *Generator) AlterColumnNullability(schemaName, table string, col schema.TableColumn) string {
	action := "SET NOT NULL"
	if col.Nullable {
		action = "DROP NOT NULL"
	}
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s;", qualified(schemaName, table), pq.QuoteIdentifier(col.Name), action)
}

func (g *Generator) AlterColumnDefault(schemaName, table string, col schema.TableColumn) string {
	action := "DROP DEFAULT"
	if col.DefaultValue.Valid {
		action = "SET DEFAULT " + col.DefaultValue.String
	}
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s;", qualified(schemaName, table), pq.QuoteIdentifier(col.Name), action)
}

// AddConstraint dispatches on the constraint kind.
func (g *Generator) AddConstraint(schemaName, table string, c schema.TableConstraint) (string, error) {
	prefix := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s", qualified(schemaName, table), pq.QuoteIdentifier(c.Name))

	switch c.Kind {
	case schema.PrimaryKey:
		return fmt.Sprintf("%s PRIMARY KEY (%s);", prefix, quoteIdents(c.Columns)), nil
	case schema.Unique:
		return fmt.Sprintf("%s UNIQUE (%s);", prefix, quoteIdents(c.Columns)), nil
	case schema.ForeignKey:
		refSchema := c.RefSchema
		if refSchema == "" {
			refSchema = schemaName
		}
		stmt := fmt.Sprintf("%s FOREIGN KEY (%s) REFERENCES %s (%s)",
			prefix, quoteIdents(c.Columns), qualified(refSchema, c.RefTable), quoteIdents(c.RefColumns))
		if c.OnDelete != "" {
			stmt += " ON DELETE " + c.OnDelete
		}
		if c.OnUpdate != "" {
			stmt += " ON UPDATE " + c.OnUpdate
		}
		return stmt + ";", nil
	case schema.Check:
		return fmt.Sprintf("%s %s;", prefix, checkClause(c.Definition)), nil
	}
	return "", fmt.Errorf("unknown constraint kind %q for %s", c.Kind, c.Name)
}

func checkClause(def string) string {
	def = strings.TrimSpace(def)
	if strings.HasPrefix(strings.ToUpper(def), "CHECK") {
		return def
	}
	return "CHECK (" + def + ")"
}

func (g *Generator) DropTrigger(obj schema.DatabaseObject) string {
	return fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s;", pq.QuoteIdentifier(obj.Name), qualified(obj.Schema, obj.Table))
}

// IntegrityBypass switches the session replication role, which disables
// foreign key and user trigger enforcement while data loads.
func (g *Generator) IntegrityBypass() (string, string, error) {
	return "SET session_replication_role = replica;", "SET session_replication_role = DEFAULT;", nil
}

func (g *Generator) DeferFunctionChecks() string {
	return "SET check_function_bodies = false;"
}

// MapType resolves a column's PostgreSQL type. Arrays and user-defined types
// keep their catalog name; unknown types fall back to the display type.
func (g *Generator) MapType(col schema.TableColumn) string {
	if g.source == engine.PostgreSQL {
		switch col.DataType {
		case "ARRAY":
			return elementType(col.UDTName) + "[]"
		case "USER-DEFINED":
			return pq.QuoteIdentifier(col.UDTName)
		}
	}

	if native, ok := typeMaps.For(g.source).Resolve(col); ok {
		return native
	}
	if g.source == engine.PostgreSQL || col.UDTName == "" {
		return strings.ToUpper(col.DataType)
	}
	return strings.ToUpper(col.UDTName)
}

// elementType strips the array marker from an array's catalog type name.
func elementType(udt string) string {
	return strings.TrimPrefix(udt, "_")
}

func terminate(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if strings.HasSuffix(stmt, ";") {
		return stmt
	}
	return stmt + ";"
}
