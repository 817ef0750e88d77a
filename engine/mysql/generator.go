package mysql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

// Generator renders MySQL DDL for metadata captured from a source engine.
type Generator struct {
	source engine.Type
}

func NewGenerator(source engine.Type) *Generator {
	return &Generator{source: source}
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func qualified(database, name string) string {
	if database == "" {
		return quoteIdent(name)
	}
	return quoteIdent(database) + "." + quoteIdent(name)
}

func (g *Generator) CreateDatabase(name string) (string, error) {
	return fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s;", quoteIdent(name)), nil
}

// CreateSchema creates a database; MySQL schemas and databases are the same
// object.
func (g *Generator) CreateSchema(name string) (string, error) {
	return g.CreateDatabase(name)
}

func (g *Generator) UseSchema(name string) (string, error) {
	return fmt.Sprintf("USE %s;", quoteIdent(name)), nil
}

// CreateSequence has nothing to emit: MySQL has no standalone sequences, and
// a sequence feeding a column default becomes that column's AUTO_INCREMENT.
func (g *Generator) CreateSequence(database string, seq schema.TableSequence) []string {
	if seq.Identity || seq.OwnedByColumn != "" {
		return nil
	}
	return []string{fmt.Sprintf("-- sequence %s skipped: no MySQL equivalent", qualified(database, seq.Name))}
}

// CreateTable emits the table with its primary key inline, as MySQL requires
// an AUTO_INCREMENT column to be indexed. The counter resumes after the last
// value handed out.
func (g *Generator) CreateTable(table *schema.TableMetadata) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE %s (\n", qualified(table.Schema, table.Name))

	defs := make([]string, 0, len(table.Columns)+1)
	var next int64
	for _, col := range table.Columns {
		def, counter := g.columnDefinition(table, col)
		if counter > next {
			next = counter
		}
		defs = append(defs, "    "+def)
	}
	if pk, ok := table.PrimaryKey(); ok {
		defs = append(defs, fmt.Sprintf("    PRIMARY KEY (%s)", quoteIdents(pk.Columns)))
	}
	sb.WriteString(strings.Join(defs, ",\n"))
	sb.WriteString("\n)")

	if next > 1 {
		fmt.Fprintf(&sb, " AUTO_INCREMENT=%d", next)
	}
	sb.WriteString(";")
	return sb.String()
}

// columnDefinition renders one column. The returned counter is the next
// AUTO_INCREMENT value, zero when the column is not auto-incremented.
func (g *Generator) columnDefinition(table *schema.TableMetadata, col schema.TableColumn) (string, int64) {
	typ := g.MapType(col)

	var sb strings.Builder
	sb.WriteString(quoteIdent(col.Name))
	sb.WriteString(" ")
	sb.WriteString(typ)

	if !col.Nullable || col.Identity != "" {
		sb.WriteString(" NOT NULL")
	}

	var counter int64
	seq, hasSeq := table.SequenceFor(col.Name)
	switch {
	case col.Identity != "" || (hasSeq && g.isSequenceDefault(col)):
		sb.WriteString(" AUTO_INCREMENT")
		counter = 1
		if hasSeq {
			counter = seq.NextValue()
		}
	case col.DefaultValue.Valid:
		fmt.Fprintf(&sb, " DEFAULT %s", fitDefault(typ, g.defaultValue(col.DefaultValue.String)))
	}
	return sb.String(), counter
}

var (
	nextval   = regexp.MustCompile(`(?i)^nextval\(`)
	oracleSeq = regexp.MustCompile(`(?i)\.nextval$`)
	pgCast    = regexp.MustCompile(`::(?:"[^"]+"|character varying|double precision|timestamp (?:with|without) time zone|time (?:with|without) time zone|[a-z_][a-z0-9_]*)(?:\[\])?`)
	nowish    = regexp.MustCompile(`(?i)^(now\(\)|current_timestamp|localtimestamp|sysdate|systimestamp)$`)
)

func (g *Generator) isSequenceDefault(col schema.TableColumn) bool {
	if !col.DefaultValue.Valid {
		return false
	}
	def := strings.TrimSpace(col.DefaultValue.String)
	return nextval.MatchString(def) || oracleSeq.MatchString(def)
}

// defaultValue rewrites foreign column defaults into MySQL expressions.
func (g *Generator) defaultValue(def string) string {
	def = strings.TrimSpace(def)
	if g.source == engine.MySQL {
		return def
	}
	def = pgCast.ReplaceAllString(def, "")
	if nowish.MatchString(def) {
		return "CURRENT_TIMESTAMP"
	}
	return def
}

var (
	fractional = regexp.MustCompile(`(?i)^(?:datetime|timestamp)\((\d)\)`)
	lobTypes   = regexp.MustCompile(`(?i)^(?:tiny|medium|long)?(?:text|blob)$|^json$`)
)

// fitDefault adapts a default to its column type: CURRENT_TIMESTAMP takes
// the column's fractional precision, and TEXT, BLOB and JSON columns only
// accept expression defaults.
func fitDefault(typ, def string) string {
	if strings.EqualFold(def, "CURRENT_TIMESTAMP") {
		if m := fractional.FindStringSubmatch(typ); m != nil {
			return "CURRENT_TIMESTAMP(" + m[1] + ")"
		}
		return def
	}
	if lobTypes.MatchString(typ) && !strings.HasPrefix(def, "(") {
		return "(" + def + ")"
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

func (g *Generator) createIndex(table *schema.TableMetadata, idx schema.TableIndex) string {
	if g.source == engine.MySQL && idx.Definition != "" {
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
		unique, quoteIdent(idx.Name), qualified(table.Schema, table.Name), strings.Join(parts, ", "))
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

// CreateObject wraps a routine or trigger in DELIMITER directives so its
// body can hold semicolons.
func (g *Generator) CreateObject(obj schema.DatabaseObject) string {
	def := strings.TrimSuffix(strings.TrimSpace(obj.Definition), ";")
	return "DELIMITER $$\n" + def + " $$\nDELIMITER ;"
}

func (g *Generator) AddColumn(database, table string, col schema.TableColumn) string {
	def, _ := g.columnDefinition(&schema.TableMetadata{Name: table, Schema: database}, col)
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", qualified(database, table), def)
}

// AlterColumnType restates the whole column, as MODIFY resets attributes it
// does not mention.
func (g *Generator) AlterColumnType(database, table string, col schema.TableColumn) string {
	def, _ := g.columnDefinition(&schema.TableMetadata{Name: table, Schema: database}, col)
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s;", qualified(database, table), def)
}

func (g *Generator) AlterColumnNullability(database, table string, col schema.TableColumn) string {
	return g.AlterColumnType(database, table, col)
}

func (g *Generator) AlterColumnDefault(database, table string, col schema.TableColumn) string {
	action := "DROP DEFAULT"
	if col.DefaultValue.Valid {
		action = "SET DEFAULT " + fitDefault(g.MapType(col), g.defaultValue(col.DefaultValue.String))
	}
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s;", qualified(database, table), quoteIdent(col.Name), action)
}

// AddConstraint dispatches on the constraint kind. SET DEFAULT actions are
// rejected by InnoDB and dropped.
func (g *Generator) AddConstraint(database, table string, c schema.TableConstraint) (string, error) {
	target := qualified(database, table)

	switch c.Kind {
	case schema.PrimaryKey:
		return fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s);", target, quoteIdents(c.Columns)), nil
	case schema.Unique:
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s);", target, quoteIdent(c.Name), quoteIdents(c.Columns)), nil
	case schema.ForeignKey:
		refDatabase := c.RefSchema
		if refDatabase == "" {
			refDatabase = database
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			target, quoteIdent(c.Name), quoteIdents(c.Columns), qualified(refDatabase, c.RefTable), quoteIdents(c.RefColumns))
		if action := referential(c.OnDelete); action != "" {
			stmt += " ON DELETE " + action
		}
		if action := referential(c.OnUpdate); action != "" {
			stmt += " ON UPDATE " + action
		}
		return stmt + ";", nil
	case schema.Check:
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s;", target, quoteIdent(c.Name), g.checkClause(c.Definition)), nil
	}
	return "", fmt.Errorf("unknown constraint kind %q for %s", c.Kind, c.Name)
}

func referential(action string) string {
	switch strings.ToUpper(action) {
	case "CASCADE", "SET NULL", "RESTRICT", "NO ACTION":
		return strings.ToUpper(action)
	}
	return ""
}

func (g *Generator) checkClause(def string) string {
	def = strings.TrimSpace(def)
	if g.source != engine.MySQL {
		def = pgCast.ReplaceAllString(def, "")
	}
	if strings.HasPrefix(strings.ToUpper(def), "CHECK") {
		return def
	}
	return "CHECK (" + def + ")"
}

func (g *Generator) DropTrigger(obj schema.DatabaseObject) string {
	return fmt.Sprintf("DROP TRIGGER IF EXISTS %s;", qualified(obj.Schema, obj.Name))
}

func (g *Generator) IntegrityBypass() (string, string, error) {
	return "SET FOREIGN_KEY_CHECKS = 0;", "SET FOREIGN_KEY_CHECKS = 1;", nil
}

// DeferFunctionChecks is empty: routine bodies are resolved on first call.
func (g *Generator) DeferFunctionChecks() string {
	return ""
}

// MapType keeps MySQL column types verbatim and maps foreign ones, falling
// back to LONGTEXT.
func (g *Generator) MapType(col schema.TableColumn) string {
	if g.source == engine.MySQL && col.DataType != "" {
		return col.DataType
	}
	if native, ok := typeMaps.For(g.source).Resolve(col); ok {
		return native
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
