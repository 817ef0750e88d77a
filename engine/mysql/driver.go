// Package mysql implements the engine capability set for MySQL and MariaDB
// on top of go-sql-driver/mysql.
package mysql

import (
	"context"
	"errors"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

// Driver is the MySQL variant set. A schema is a database.
type Driver struct{}

func (Driver) Type() engine.Type {
	return engine.MySQL
}

func (Driver) DefaultSchema(cfg schema.ConnectionConfig) string {
	return cfg.Database
}

func (Driver) Connect(ctx context.Context, cfg schema.ConnectionConfig) (engine.Connection, error) {
	return engine.OpenSQL(ctx, engine.MySQL, "mysql", DSN(cfg), cfg, engine.SQLOptions{
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

// DSN renders a go-sql-driver DSN. Temporal values are read as text so zero
// dates survive the round trip. The tls param selects a registered TLS
// config; other params are sent as session variables.
func DSN(cfg schema.ConnectionConfig) string {
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	c.DBName = cfg.Database
	c.ParseTime = false
	c.Params = map[string]string{}
	for k, v := range cfg.Params {
		if k == "tls" {
			c.TLSConfig = v
			continue
		}
		c.Params[k] = v
	}
	if len(c.Params) == 0 {
		c.Params = nil
	}
	return c.FormatDSN()
}

// connectionFailures are server errors for rejected credentials, denied or
// unknown databases and connection limits.
var connectionFailures = map[uint16]bool{
	1040: true,
	1044: true,
	1045: true,
	1049: true,
	1129: true,
	1203: true,
}

func isConnectionFailure(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return connectionFailures[myErr.Number]
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
