// Package postgres implements the engine capability set for PostgreSQL on top
// of lib/pq.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

// Driver is the PostgreSQL variant set.
type Driver struct{}

func (Driver) Type() engine.Type {
	return engine.PostgreSQL
}

func (Driver) DefaultSchema(schema.ConnectionConfig) string {
	return "public"
}

// Connect opens a pool whose sessions default to read-only transactions.
func (Driver) Connect(ctx context.Context, cfg schema.ConnectionConfig) (engine.Connection, error) {
	return engine.OpenSQL(ctx, engine.PostgreSQL, "postgres", DSN(cfg), cfg, engine.SQLOptions{
		IsConnectionFailure: isConnectionFailure,
	})
}

func (Driver) NewInspector(conn engine.Connection) engine.Inspector {
	return NewInspector(conn)
}

func (Driver) NewGenerator(source engine.Type) engine.Generator {
	return NewGenerator(source)
}

func (Driver) NewExtractor(conn engine.Connection, pageSize int) engine.Extractor {
	return NewExtractor(conn, pageSize)
}

// DSN renders a lib/pq key/value connection string. Params override the
// defaults.
func DSN(cfg schema.ConnectionConfig) string {
	params := map[string]string{
		"host":                          cfg.Host,
		"port":                          strconv.Itoa(cfg.Port),
		"dbname":                        cfg.Database,
		"user":                          cfg.User,
		"sslmode":                       "disable",
		"application_name":              "sqlsnap",
		"default_transaction_read_only": "on",
	}
	if cfg.Password != "" {
		params["password"] = cfg.Password
	}
	for k, v := range cfg.Params {
		params[k] = v
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, quoteDSNValue(params[k])))
	}
	return strings.Join(parts, " ")
}

func quoteDSNValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// isConnectionFailure matches authorization (class 28), unknown database
// and connection exception (class 08) errors.
func isConnectionFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code.Class() {
	case "28", "08":
		return true
	}
	return pqErr.Code == "3D000"
}
