// Package pgtest starts disposable PostgreSQL containers for integration
// tests.
package pgtest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/alc6/sqlsnap/schema"
)

const (
	user     = "testuser"
	password = "testpass"
)

type Database struct {
	Container testcontainers.Container
	DB        *sql.DB
	ConnStr   string
	Config    schema.ConnectionConfig
}

// IsDockerAvailable reports whether a Docker daemon answers.
func IsDockerAvailable() bool {
	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return provider.Health(ctx) == nil
}

func SetupPostgreSQL(ctx context.Context) (*Database, error) {
	slog.Debug("starting postgresql container")
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername(user),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}
	slog.Debug("got database connection string", "connStr", connStr)

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("postgresql container ready")
	return &Database{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
		Config: schema.ConnectionConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "testdb",
			User:     user,
			Password: password,
		},
	}, nil
}

func (d *Database) Close(ctx context.Context) error {
	if d.DB != nil {
		d.DB.Close()
	}
	if d.Container != nil {
		return d.Container.Terminate(ctx)
	}
	return nil
}

// Exec runs SQL scripts in order.
func (d *Database) Exec(ctx context.Context, scripts ...string) error {
	for i, script := range scripts {
		if _, err := d.DB.ExecContext(ctx, script); err != nil {
			return fmt.Errorf("failed to execute script %d: %w", i+1, err)
		}
	}
	slog.Debug("scripts executed", "count", len(scripts))
	return nil
}

// CreateDatabase creates an empty database on the same server and returns
// an open handle to it with its connection config.
func (d *Database) CreateDatabase(ctx context.Context, name string) (*sql.DB, schema.ConnectionConfig, error) {
	if _, err := d.DB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %q", name)); err != nil {
		return nil, schema.ConnectionConfig{}, fmt.Errorf("failed to create database %s: %w", name, err)
	}

	cfg := d.Config
	cfg.Database = name
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, schema.ConnectionConfig{}, fmt.Errorf("failed to open database %s: %w", name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, schema.ConnectionConfig{}, fmt.Errorf("failed to ping database %s: %w", name, err)
	}
	return db, cfg, nil
}
