package engine

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alc6/sqlsnap/schema"
)

// PoolSettings bounds the database/sql pool of a connection.
type PoolSettings struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

// DefaultPool is applied when a driver passes no pool settings.
var DefaultPool = PoolSettings{MaxOpen: 25, MaxIdle: 5, MaxLifetime: 5 * time.Minute}

// SQLOptions configures OpenSQL.
type SQLOptions struct {
	Pool PoolSettings
	// IsConnectionFailure classifies driver errors that mean the session is
	// unusable (authentication, network), reported as ConnectionError.
	IsConnectionFailure func(error) bool
}

// SQLConnection is a Connection over a database/sql pool.
type SQLConnection struct {
	engine Type
	cfg    schema.ConnectionConfig
	db     *sql.DB
	opts   SQLOptions

	closeOnce sync.Once
	closeErr  error
}

// OpenSQL opens and pings a pool using a registered database/sql driver.
func OpenSQL(ctx context.Context, t Type, driverName, dsn string, cfg schema.ConnectionConfig, opts SQLOptions) (*SQLConnection, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, &ConnectionError{Engine: t, Host: cfg.Host, Port: cfg.Port, Cause: err}
	}

	pool := opts.Pool
	if pool == (PoolSettings{}) {
		pool = DefaultPool
	}
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &ConnectionError{Engine: t, Host: cfg.Host, Port: cfg.Port, Cause: err}
	}

	slog.Debug("connection established", "engine", t, "target", cfg.String())
	return NewSQLConnection(t, cfg, db, opts), nil
}

// NewSQLConnection wraps an already opened pool.
func NewSQLConnection(t Type, cfg schema.ConnectionConfig, db *sql.DB, opts SQLOptions) *SQLConnection {
	return &SQLConnection{engine: t, cfg: cfg, db: db, opts: opts}
}

func (c *SQLConnection) Engine() Type {
	return c.engine
}

// DB exposes the pool for tests and administrative helpers.
func (c *SQLConnection) DB() *sql.DB {
	return c.db
}

func (c *SQLConnection) Query(ctx context.Context, query string, scan func(*sql.Rows) error, args ...any) error {
	start := time.Now()

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return c.Classify(query, err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		if err := scan(rows); err != nil {
			return c.Classify(query, fmt.Errorf("failed to scan row: %w", err))
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return c.Classify(query, err)
	}

	slog.Debug("query executed",
		"engine", c.engine,
		"duration", time.Since(start),
		"rows", n,
		"query", compactStatement(query))
	return nil
}

func (c *SQLConnection) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, &ConnectionError{Engine: c.engine, Host: c.cfg.Host, Port: c.cfg.Port, Cause: err}
	}
	return conn, nil
}

// Classify turns a driver error raised by statement into a ConnectionError
// or a QueryError.
func (c *SQLConnection) Classify(statement string, err error) error {
	if errors.Is(err, driver.ErrBadConn) || (c.opts.IsConnectionFailure != nil && c.opts.IsConnectionFailure(err)) {
		return &ConnectionError{Engine: c.engine, Host: c.cfg.Host, Port: c.cfg.Port, Cause: err}
	}
	return &QueryError{Engine: c.engine, Statement: statement, Cause: err}
}

// Classify reports err through conn's classifier when it has one.
func Classify(conn Connection, statement string, err error) error {
	if c, ok := conn.(interface{ Classify(string, error) error }); ok {
		return c.Classify(statement, err)
	}
	return &QueryError{Engine: conn.Engine(), Statement: statement, Cause: err}
}

func (c *SQLConnection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.db.Close()
		slog.Debug("connection closed", "engine", c.engine, "target", c.cfg.String())
	})
	return c.closeErr
}
