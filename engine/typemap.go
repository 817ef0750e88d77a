package engine

import (
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/alc6/sqlsnap/schema"
)

// TypeRule describes how one source type is written in a target dialect.
type TypeRule struct {
	Native string
	// Sized appends the character length, or DefaultLength when the
	// column carries none and DefaultLength is positive.
	Sized         bool
	DefaultLength int64
	// Decimal appends precision and scale when the column carries them.
	Decimal bool
	// Unsized replaces Native when a sized or decimal type carries no
	// length or precision.
	Unsized string
}

func (r TypeRule) render(col schema.TableColumn) string {
	switch {
	case r.Sized && col.CharacterLength.Valid:
		return fmt.Sprintf("%s(%d)", r.Native, col.CharacterLength.Int64)
	case r.Sized && r.DefaultLength > 0:
		return fmt.Sprintf("%s(%d)", r.Native, r.DefaultLength)
	case r.Decimal && col.NumericPrecision.Valid && col.NumericScale.Valid:
		return fmt.Sprintf("%s(%d,%d)", r.Native, col.NumericPrecision.Int64, col.NumericScale.Int64)
	case r.Decimal && col.NumericPrecision.Valid:
		return fmt.Sprintf("%s(%d)", r.Native, col.NumericPrecision.Int64)
	case r.Unsized != "" && (r.Sized || r.Decimal):
		return r.Unsized
	}
	return r.Native
}

// TypeMap maps lower-cased source type names to target rules.
type TypeMap map[string]TypeRule

// Resolve maps a column by its display type, then by its catalog type name.
func (m TypeMap) Resolve(col schema.TableColumn) (string, bool) {
	for _, key := range []string{col.DataType, col.UDTName} {
		if rule, ok := m[strings.ToLower(key)]; ok {
			return rule.render(col), true
		}
	}
	return "", false
}

// TypeMaps holds one target dialect's tables, keyed by source engine.
type TypeMaps struct {
	mu   sync.RWMutex
	maps map[Type]TypeMap
}

// NewTypeMaps creates a registry seeded with built-in tables.
func NewTypeMaps(seed map[Type]TypeMap) *TypeMaps {
	r := &TypeMaps{maps: make(map[Type]TypeMap)}
	for source, m := range seed {
		r.Register(source, m)
	}
	return r
}

// Register merges rules into the table for a source engine. Later rules
// replace earlier ones with the same key.
func (r *TypeMaps) Register(source Type, m TypeMap) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := make(TypeMap)
	maps.Copy(current, r.maps[source])
	for k, v := range m {
		current[strings.ToLower(k)] = v
	}
	r.maps[source] = current
}

// For returns the table registered for a source engine.
func (r *TypeMaps) For(source Type) TypeMap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maps[source]
}
