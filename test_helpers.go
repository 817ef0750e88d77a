package main

import (
	"context"
	"fmt"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

// MockBundleOpener is a mock implementation of BundleOpener for testing
type MockBundleOpener struct {
	OpenFunc      func(ctx context.Context, t engine.Type, cfg schema.ConnectionConfig, pageSize int) (*engine.Bundle, error)
	GeneratorFunc func(target, source engine.Type) (engine.Generator, error)

	// Track calls for verification
	Opened    []schema.ConnectionConfig
	PageSizes []int
}

func (m *MockBundleOpener) Open(ctx context.Context, t engine.Type, cfg schema.ConnectionConfig, pageSize int) (*engine.Bundle, error) {
	m.Opened = append(m.Opened, cfg)
	m.PageSizes = append(m.PageSizes, pageSize)
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, t, cfg, pageSize)
	}
	return nil, fmt.Errorf("no bundle for %s", cfg)
}

func (m *MockBundleOpener) Generator(target, source engine.Type) (engine.Generator, error) {
	if m.GeneratorFunc != nil {
		return m.GeneratorFunc(target, source)
	}
	return newFactory().Generator(target, source)
}

// SimulateError simulates various database errors for testing
func SimulateError(errType string) error {
	switch errType {
	case "connection":
		return &engine.ConnectionError{Engine: engine.PostgreSQL, Host: "localhost", Port: 5432, Cause: fmt.Errorf("connection refused")}
	case "permission":
		return &engine.QueryError{Engine: engine.PostgreSQL, Statement: "select 1", Cause: fmt.Errorf("permission denied")}
	default:
		return fmt.Errorf("simulated error: %s", errType)
	}
}
