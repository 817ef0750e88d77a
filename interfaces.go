package main

import (
	"context"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

// BundleOpener opens engine bundles and resolves cross-engine generators.
// *engine.Factory implements it.
type BundleOpener interface {
	// Open connects to a database and returns its bundle
	Open(ctx context.Context, t engine.Type, cfg schema.ConnectionConfig, pageSize int) (*engine.Bundle, error)
	// Generator returns a generator emitting target DDL for source metadata
	Generator(target, source engine.Type) (engine.Generator, error)
}
