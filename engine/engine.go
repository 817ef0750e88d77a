// Package engine defines the capability set every supported database engine
// implements (connection, inspector, generator, extractor) and the factory
// that selects one variant set by engine type.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"

	"github.com/alc6/sqlsnap/schema"
)

//go:generate mockgen -destination=mocks/mock_engine.go -package=mocks . Inspector,Extractor

// Type is the engine-type tag the factory dispatches on.
type Type string

const (
	PostgreSQL Type = "postgres"
	Oracle     Type = "oracle"
	MySQL      Type = "mysql"
)

// DefaultPageSize is the number of rows fetched per cursor page.
const DefaultPageSize = 1000

var aliases = map[string]Type{
	"postgres":   PostgreSQL,
	"postgresql": PostgreSQL,
	"pg":         PostgreSQL,
	"oracle":     Oracle,
	"ora":        Oracle,
	"mysql":      MySQL,
	"mariadb":    MySQL,
}

var defaultPorts = map[Type]int{
	PostgreSQL: 5432,
	Oracle:     1521,
	MySQL:      3306,
}

// ParseType resolves an engine name or alias.
func ParseType(name string) (Type, error) {
	t, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", &UnsupportedEngineError{Engine: name}
	}
	return t, nil
}

// DefaultPort returns the conventional listener port of an engine.
func DefaultPort(t Type) int {
	return defaultPorts[t]
}

// Connection executes catalog and data queries against one database. It owns
// exactly one pool; callers must not assume statement-level transactions.
type Connection interface {
	Engine() Type
	// Query runs a statement and calls scan once per row.
	Query(ctx context.Context, query string, scan func(*sql.Rows) error, args ...any) error
	// Conn reserves a dedicated session, used for server-side cursors.
	Conn(ctx context.Context) (*sql.Conn, error)
	// Close releases the pool. It is safe to call more than once.
	Close() error
}

// Inspector turns catalog queries into metadata model instances.
type Inspector interface {
	// ListTables returns base tables in catalog order. A non-empty filter
	// restricts the result without reordering it.
	ListTables(ctx context.Context, schemaName string, filter []string) ([]string, error)
	GetTableMetadata(ctx context.Context, schemaName, table string) (*schema.TableMetadata, error)
	ListFunctions(ctx context.Context, schemaName string) ([]schema.DatabaseObject, error)
	ListTriggers(ctx context.Context, schemaName string) ([]schema.DatabaseObject, error)
}

// Generator renders metadata as dialect SQL. Implementations perform no I/O.
type Generator interface {
	CreateDatabase(name string) (string, error)
	CreateSchema(name string) (string, error)
	UseSchema(name string) (string, error)
	CreateSequence(schemaName string, seq schema.TableSequence) []string
	CreateTable(table *schema.TableMetadata) string
	CreateIndexes(table *schema.TableMetadata) []string
	CreateConstraints(table *schema.TableMetadata) []string
	CreateObject(obj schema.DatabaseObject) string

	AddColumn(schemaName, table string, col schema.TableColumn) string
	AlterColumnType(schemaName, table string, col schema.TableColumn) string
	AlterColumnNullability(schemaName, table string, col schema.TableColumn) string
	AlterColumnDefault(schemaName, table string, col schema.TableColumn) string
	AddConstraint(schemaName, table string, c schema.TableConstraint) (string, error)
	DropTrigger(obj schema.DatabaseObject) string

	// IntegrityBypass returns the directives that suspend and restore
	// referential integrity and trigger enforcement for a bulk load.
	IntegrityBypass() (disable, restore string, err error)
	// DeferFunctionChecks returns the directive that lets routines be
	// created before the objects their bodies reference, or "" when the
	// dialect does not resolve bodies at creation.
	DeferFunctionChecks() string
	MapType(col schema.TableColumn) string
}

// Extractor streams table rows as batches of INSERT statements.
type Extractor interface {
	// Batches yields non-empty batches until a fetch returns no rows. The
	// server-side cursor is released when the sequence ends, including when
	// the consumer stops early. An error is yielded at most once, last.
	Batches(ctx context.Context, table *schema.TableMetadata) iter.Seq2[[]string, error]
}

// Driver is one engine's variant set.
type Driver interface {
	Type() Type
	DefaultSchema(cfg schema.ConnectionConfig) string
	Connect(ctx context.Context, cfg schema.ConnectionConfig) (Connection, error)
	NewInspector(conn Connection) Inspector
	// NewGenerator returns a generator emitting this engine's dialect for
	// metadata captured from the source engine.
	NewGenerator(source Type) Generator
	NewExtractor(conn Connection, pageSize int) Extractor
}

// Bundle groups the implementations bound to one open connection.
type Bundle struct {
	Engine    Type
	Config    schema.ConnectionConfig
	Schema    string
	Conn      Connection
	Inspector Inspector
	Generator Generator
	Extractor Extractor
}

// Close releases the underlying connection.
func (b *Bundle) Close() error {
	if b.Conn == nil {
		return nil
	}
	return b.Conn.Close()
}

// String identifies the bundle in reports and logs.
func (b *Bundle) String() string {
	return fmt.Sprintf("%s://%s", b.Engine, b.Config)
}
