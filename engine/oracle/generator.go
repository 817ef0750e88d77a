package oracle

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

// Generator renders Oracle DDL for metadata captured from a source engine.
type Generator struct {
	source engine.Type
}

func NewGenerator(source engine.Type) *Generator {
	return &Generator{source: source}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func qualified(owner, name string) string {
	if owner == "" {
		return quoteIdent(name)
	}
	return quoteIdent(owner) + "." + quoteIdent(name)
}

func (g *Generator) CreateDatabase(string) (string, error) {
	return "", &engine.UnsupportedOperationError{
		Engine:    engine.Oracle,
		Operation: "CREATE DATABASE",
		Reason:    "databases are provisioned outside of a SQL script",
	}
}

func (g *Generator) CreateSchema(string) (string, error) {
	return "", &engine.UnsupportedOperationError{
		Engine:    engine.Oracle,
		Operation: "CREATE SCHEMA",
		Reason:    "schemas are user accounts",
	}
}

func (g *Generator) UseSchema(name string) (string, error) {
	return fmt.Sprintf("ALTER SESSION SET CURRENT_SCHEMA = %s;", quoteIdent(name)), nil
}

// CreateSequence emits a standalone sequence starting at the next value to
// hand out. Identity generators are recreated by their column.
func (g *Generator) CreateSequence(owner string, seq schema.TableSequence) []string {
	if seq.Identity {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE SEQUENCE %s START WITH %d INCREMENT BY %d",
		qualified(owner, seq.Name), seq.NextValue(), increment(seq))
	if seq.MinValue != 0 || seq.MaxValue != 0 {
		fmt.Fprintf(&sb, " MINVALUE %d MAXVALUE %d", seq.MinValue, seq.MaxValue)
	}
	if seq.CacheSize > 1 {
		fmt.Fprintf(&sb, " CACHE %d", seq.CacheSize)
	} else {
		sb.WriteString(" NOCACHE")
	}
	if seq.Cycle {
		sb.WriteString(" CYCLE")
	} else {
		sb.WriteString(" NOCYCLE")
	}
	sb.WriteString(";")
	return []string{sb.String()}
}

func increment(seq schema.TableSequence) int64 {
	if seq.Increment == 0 {
		return 1
	}
	return seq.Increment
}

// CreateTable emits the table with columns inline and its primary key as a
// trailing ALTER statement.
func (g *Generator) CreateTable(table *schema.TableMetadata) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE %s (\n", qualified(table.Schema, table.Name))

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
	return sb.String()
}

// columnDefinition always recreates identities as BY DEFAULT so restored
// rows can carry their original keys.
func (g *Generator) columnDefinition(table *schema.TableMetadata, col schema.TableColumn) string {
	var sb strings.Builder
	sb.WriteString(quoteIdent(col.Name))
	sb.WriteString(" ")
	sb.WriteString(g.MapType(col))

	if col.Identity != "" {
		sb.WriteString(" GENERATED BY DEFAULT AS IDENTITY")
		if seq, ok := table.SequenceFor(col.Name); ok {
			fmt.Fprintf(&sb, " (START WITH %d INCREMENT BY %d)", seq.NextValue(), increment(seq))
		}
	} else if col.DefaultValue.Valid {
		fmt.Fprintf(&sb, " DEFAULT %s", g.defaultValue(table.Schema, col.DefaultValue.String))
	}

	if !col.Nullable {
		sb.WriteString(" NOT NULL")
	}
	return sb.String()
}

var (
	nextval  = regexp.MustCompile(`(?i)^nextval\('(?:"?([^".']+)"?\.)?"?([^".']+)"?'(?:::regclass)?\)$`)
	pgCast   = regexp.MustCompile(`::(?:"[^"]+"|character varying|double precision|timestamp (?:with|without) time zone|time (?:with|without) time zone|[a-z_][a-z0-9_]*)(?:\[\])?`)
	pgBool   = regexp.MustCompile(`(?i)^(true|false)$`)
	pgNowish = regexp.MustCompile(`(?i)^(now\(\)|current_timestamp|localtimestamp)$`)
)

// defaultValue rewrites foreign column defaults into Oracle expressions.
func (g *Generator) defaultValue(owner, def string) string {
	def = strings.TrimSpace(def)
	if g.source == engine.Oracle {
		return def
	}

	if m := nextval.FindStringSubmatch(def); m != nil {
		seqOwner := m[1]
		if seqOwner == "" || seqOwner == "public" {
			seqOwner = owner
		}
		return qualified(seqOwner, m[2]) + ".NEXTVAL"
	}

	def = pgCast.ReplaceAllString(def, "")
	switch {
	case pgBool.MatchString(def):
		if strings.EqualFold(def, "true") {
			return "1"
		}
		return "0"
	case pgNowish.MatchString(def):
		return "SYSTIMESTAMP"
	}
	return def
}

func (g *Generator) CreateIndexes(table *schema.TableMetadata) []string {
	stmts := make([]string, 0, len(table.Indexes))
	for _, idx := range table.Indexes {
		stmts = append(stmts, g.createIndex(table, idx))
	}
	return stmts
}

// createIndex reuses the synthesized definition for Oracle sources and
// rebuilds one over plain columns otherwise.
func (g *Generator) createIndex(table *schema.TableMetadata, idx schema.TableIndex) string {
	if g.source == engine.Oracle && idx.Definition != "" {
		return terminate(idx.Definition)
	}

	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	parts := make([]string, 0, len(idx.Columns))
	for _, c := range idx.Columns {
		if _, ok := table.Column(c); ok {
			parts = append(parts, quoteIdent(c))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("-- skipped index %s: expression index from %s", idx.Name, g.source)
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s);",
		unique, qualified(table.Schema, idx.Name), qualified(table.Schema, table.Name), strings.Join(parts, ", "))
}

// CreateConstraints emits foreign keys, unique and check constraints in
// catalog order.
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

// CreateObject terminates PL/SQL units with a slash so SQL*Plus style
// runners execute them.
func (g *Generator) CreateObject(obj schema.DatabaseObject) string {
	def := strings.TrimRight(strings.TrimSpace(obj.Definition), "/")
	def = strings.TrimSpace(def)
	if !strings.HasSuffix(def, ";") {
		def += ";"
	}
	return def + "\n/"
}

func (g *Generator) AddColumn(owner, table string, col schema.TableColumn) string {
	def := g.columnDefinition(&schema.TableMetadata{Name: table, Schema: owner}, col)
	return fmt.Sprintf("ALTER TABLE %s ADD (%s);", qualified(owner, table), def)
}

func (g *Generator) AlterColumnType(owner, table string, col schema.TableColumn) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY (%s %s);", qualified(owner, table), quoteIdent(col.Name), g.MapType(col))
}

func (g *Generator) AlterColumnNullability(owner, table string, col schema.TableColumn) string {
	action := "NOT NULL"
	if col.Nullable {
		action = "NULL"
	}
	return fmt.Sprintf("ALTER TABLE %s MODIFY (%s %s);", qualified(owner, table), quoteIdent(col.Name), action)
}

func (g *Generator) AlterColumnDefault(owner, table string, col schema.TableColumn) string {
	def := "NULL"
	if col.DefaultValue.Valid {
		def = g.defaultValue(owner, col.DefaultValue.String)
	}
	return fmt.Sprintf("ALTER TABLE %s MODIFY (%s DEFAULT %s);", qualified(owner, table), quoteIdent(col.Name), def)
}

// AddConstraint dispatches on the constraint kind. Oracle has no ON UPDATE
// actions and only CASCADE and SET NULL delete rules.
func (g *Generator) AddConstraint(owner, table string, c schema.TableConstraint) (string, error) {
	prefix := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s", qualified(owner, table), quoteIdent(c.Name))

	switch c.Kind {
	case schema.PrimaryKey:
		return fmt.Sprintf("%s PRIMARY KEY (%s);", prefix, quoteIdents(c.Columns)), nil
	case schema.Unique:
		return fmt.Sprintf("%s UNIQUE (%s);", prefix, quoteIdents(c.Columns)), nil
	case schema.ForeignKey:
		refOwner := c.RefSchema
		if refOwner == "" {
			refOwner = owner
		}
		stmt := fmt.Sprintf("%s FOREIGN KEY (%s) REFERENCES %s (%s)",
			prefix, quoteIdents(c.Columns), qualified(refOwner, c.RefTable), quoteIdents(c.RefColumns))
		switch strings.ToUpper(c.OnDelete) {
		case "CASCADE":
			stmt += " ON DELETE CASCADE"
		case "SET NULL":
			stmt += " ON DELETE SET NULL"
		}
		return stmt + ";", nil
	case schema.Check:
		return fmt.Sprintf("%s %s;", prefix, g.checkClause(c.Definition)), nil
	}
	return "", fmt.Errorf("unknown constraint kind %q for %s", c.Kind, c.Name)
}

func (g *Generator) checkClause(def string) string {
	def = strings.TrimSpace(def)
	if g.source != engine.Oracle {
		def = pgCast.ReplaceAllString(def, "")
	}
	if strings.HasPrefix(strings.ToUpper(def), "CHECK") {
		return def
	}
	return "CHECK (" + def + ")"
}

func (g *Generator) DropTrigger(obj schema.DatabaseObject) string {
	return fmt.Sprintf("DROP TRIGGER %s;", qualified(obj.Schema, obj.Name))
}

func (g *Generator) IntegrityBypass() (string, string, error) {
	return "", "", &engine.UnsupportedOperationError{
		Engine:    engine.Oracle,
		Operation: "session integrity bypass",
		Reason:    "constraints must be disabled per table",
	}
}

// DeferFunctionChecks is empty: routines that fail to compile are stored
// invalid and recompiled on first use.
func (g *Generator) DeferFunctionChecks() string {
	return ""
}

// MapType resolves a column's Oracle type, falling back to VARCHAR2(4000)
// for foreign types with no counterpart.
func (g *Generator) MapType(col schema.TableColumn) string {
	if native, ok := typeMaps.For(g.source).Resolve(col); ok {
		return native
	}
	if g.source == engine.Oracle {
		return strings.ToUpper(col.DataType)
	}
	return fallbackType
}

func terminate(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if strings.HasSuffix(stmt, ";") {
		return stmt
	}
	return stmt + ";"
}
