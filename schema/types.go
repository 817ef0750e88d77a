// Package schema holds the engine-neutral metadata model shared by the
// inspectors, generators, extractors and the comparator.
package schema

import (
	"database/sql"
	"fmt"
)

// ConnectionConfig identifies one reachable database.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	// Schema is the schema (Postgres), owner (Oracle) or database (MySQL) to
	// work in. Empty means the engine default.
	Schema string
	// Params carries driver-specific connection options (sslmode, tls, ...).
	Params map[string]string
}

// String renders the config without its password.
func (c ConnectionConfig) String() string {
	return fmt.Sprintf("%s@%s:%d/%s", c.User, c.Host, c.Port, c.Database)
}

// SchemaOrDefault returns the configured schema, or def when none is set.
func (c ConnectionConfig) SchemaOrDefault(def string) string {
	if c.Schema != "" {
		return c.Schema
	}
	return def
}

// Identity generation modes for identity columns.
const (
	IdentityAlways    = "ALWAYS"
	IdentityByDefault = "BY DEFAULT"
)

// TableColumn represents a column in catalog ordinal order.
type TableColumn struct {
	Name string
	// DataType is the display form reported by the catalog.
	DataType string
	// UDTName is the underlying catalog type name, used for equality checks.
	UDTName          string
	Nullable         bool
	DefaultValue     sql.NullString
	CharacterLength  sql.NullInt64
	NumericPrecision sql.NullInt64
	NumericScale     sql.NullInt64
	// Identity is IdentityAlways, IdentityByDefault or empty.
	Identity string
}

// ConstraintKind is the kind of a table constraint.
type ConstraintKind string

const (
	PrimaryKey ConstraintKind = "PRIMARY KEY"
	ForeignKey ConstraintKind = "FOREIGN KEY"
	Unique     ConstraintKind = "UNIQUE"
	Check      ConstraintKind = "CHECK"
)

// TableConstraint represents a constraint. Column order is significant.
type TableConstraint struct {
	Name    string
	Kind    ConstraintKind
	Columns []string

	// Foreign key target.
	RefSchema  string
	RefTable   string
	RefColumns []string
	OnDelete   string
	OnUpdate   string

	// Definition carries the CHECK expression.
	Definition string
}

// TableIndex represents a secondary index.
type TableIndex struct {
	Name string
	// Definition is an executable CREATE INDEX statement, either captured
	// verbatim from the catalog or synthesized by the inspector.
	Definition string
	Columns    []string
	Unique     bool
}

// TableSequence represents a value generator owned by a table column.
type TableSequence struct {
	Name       string
	DataType   string
	StartValue int64
	MinValue   int64
	MaxValue   int64
	Increment  int64
	Cycle      bool
	CacheSize  int64
	// LastValue is the last value handed out, invalid when the sequence was
	// never used.
	LastValue     sql.NullInt64
	OwnedByColumn string
	// Identity marks generators that back identity/auto-increment columns
	// and are recreated through the column definition.
	Identity bool
}

// NextValue returns the value the restored generator must produce next.
func (s TableSequence) NextValue() int64 {
	if !s.LastValue.Valid {
		return s.StartValue
	}
	inc := s.Increment
	if inc == 0 {
		inc = 1
	}
	return s.LastValue.Int64 + inc
}

// TableMetadata is a snapshot of one base table. It must not be modified once
// an inspector returns it.
type TableMetadata struct {
	Name        string
	Schema      string
	Columns     []TableColumn
	Constraints []TableConstraint
	Indexes     []TableIndex
	Sequences   []TableSequence
}

// Column looks a column up by name.
func (t *TableMetadata) Column(name string) (TableColumn, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return TableColumn{}, false
}

// ColumnNames returns column names in catalog order.
func (t *TableMetadata) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// PrimaryKey returns the primary key constraint, if any.
func (t *TableMetadata) PrimaryKey() (TableConstraint, bool) {
	for _, c := range t.Constraints {
		if c.Kind == PrimaryKey {
			return c, true
		}
	}
	return TableConstraint{}, false
}

// ConstraintsOf returns the constraints of the given kinds in catalog order.
func (t *TableMetadata) ConstraintsOf(kinds ...ConstraintKind) []TableConstraint {
	var out []TableConstraint
	for _, c := range t.Constraints {
		for _, k := range kinds {
			if c.Kind == k {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// SequenceFor returns the sequence owned by the named column.
func (t *TableMetadata) SequenceFor(column string) (TableSequence, bool) {
	for _, s := range t.Sequences {
		if s.OwnedByColumn == column {
			return s, true
		}
	}
	return TableSequence{}, false
}

// DatabaseObject is a function or a trigger.
type DatabaseObject struct {
	Name       string
	Schema     string
	Definition string
	// Table is the owning table for triggers, empty for functions.
	Table string
}

// Key identifies the object within a schema.
func (o DatabaseObject) Key() string {
	if o.Table == "" {
		return o.Name
	}
	return o.Table + "." + o.Name
}
