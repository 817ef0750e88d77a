package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/alc6/sqlsnap/schema"
)

// Factory selects a Driver by engine type.
type Factory struct {
	drivers map[Type]Driver
}

// NewFactory creates a factory with the given drivers registered.
func NewFactory(drivers ...Driver) *Factory {
	f := &Factory{drivers: make(map[Type]Driver)}
	for _, d := range drivers {
		f.Register(d)
	}
	return f
}

// Register adds a driver, replacing any driver of the same type.
func (f *Factory) Register(d Driver) {
	f.drivers[d.Type()] = d
}

// Lookup returns the driver for an engine type.
func (f *Factory) Lookup(t Type) (Driver, error) {
	d, ok := f.drivers[t]
	if !ok {
		return nil, &UnsupportedEngineError{Engine: string(t)}
	}
	return d, nil
}

// Types lists registered engine types in name order.
func (f *Factory) Types() []Type {
	types := make([]Type, 0, len(f.drivers))
	for t := range f.drivers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Open connects to a database and assembles its bundle. The engine type is
// resolved before any connection attempt.
func (f *Factory) Open(ctx context.Context, t Type, cfg schema.ConnectionConfig, pageSize int) (*Bundle, error) {
	d, err := f.Lookup(t)
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	slog.Debug("opening connection", "engine", t, "target", cfg.String())
	conn, err := d.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Engine:    t,
		Config:    cfg,
		Schema:    cfg.SchemaOrDefault(d.DefaultSchema(cfg)),
		Conn:      conn,
		Inspector: d.NewInspector(conn),
		Generator: d.NewGenerator(t),
		Extractor: d.NewExtractor(conn, pageSize),
	}, nil
}

// Generator returns a generator emitting the target dialect for metadata
// captured from the source engine.
func (f *Factory) Generator(target, source Type) (Generator, error) {
	d, err := f.Lookup(target)
	if err != nil {
		return nil, err
	}
	if _, err := f.Lookup(source); err != nil {
		return nil, fmt.Errorf("failed to resolve source engine: %w", err)
	}
	return d.NewGenerator(source), nil
}
