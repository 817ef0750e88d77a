// Package oracle implements the engine capability set for Oracle Database on
// top of godror.
package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/godror/godror"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

// Driver is the Oracle variant set. Schemas are owners; the default owner is
// the connecting user.
type Driver struct{}

func (Driver) Type() engine.Type {
	return engine.Oracle
}

func (Driver) DefaultSchema(cfg schema.ConnectionConfig) string {
	return strings.ToUpper(cfg.User)
}

func (Driver) Connect(ctx context.Context, cfg schema.ConnectionConfig) (engine.Connection, error) {
	return engine.OpenSQL(ctx, engine.Oracle, "godror", DSN(cfg), cfg, engine.SQLOptions{
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

// DSN renders godror connection parameters. Database is the service name.
func DSN(cfg schema.ConnectionConfig) string {
	var p godror.ConnectionParams
	p.Username = cfg.User
	p.Password = godror.NewPassword(cfg.Password)
	p.ConnectString = fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	return p.StringWithPassword()
}

// connectionFailures are ORA codes for invalid credentials, locked accounts
// and listener or network failures.
var connectionFailures = map[int]bool{
	1017:  true,
	28000: true,
	3113:  true,
	3114:  true,
	12154: true,
	12170: true,
	12514: true,
	12541: true,
}

func isConnectionFailure(err error) bool {
	oraErr, ok := godror.AsOraErr(err)
	if !ok {
		return false
	}
	return connectionFailures[oraErr.Code()]
}
