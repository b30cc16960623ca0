// Package schema exposes entity metadata and resolves dotted field paths
// against it.
//
// A Registry is a read-only snapshot built once at process start, from a YAML
// definition file or by introspecting the backing database. All lookups are
// goroutine-safe.
package schema

import (
	"fmt"
	"sort"

	"github.com/rpattn/advfilters/internal/domain"
	"github.com/rpattn/advfilters/internal/schema/validator"
)

// Registry maps entity type identifiers ("app.Model") to their schema.
type Registry interface {
	// Entity returns the schema for entityType. The bool is false when the
	// type is not registered.
	Entity(entityType string) (domain.EntitySchema, bool)
	// Entities returns every registered schema ordered by type identifier.
	Entities() []domain.EntitySchema
	// HasApp reports whether any entity is registered under the app label.
	HasApp(app string) bool
}

// StaticRegistry is an immutable Registry.
type StaticRegistry struct {
	entities map[string]domain.EntitySchema
	apps     map[string]struct{}
	ordered  []string
}

// NewStaticRegistry validates the definitions and builds a registry.
func NewStaticRegistry(schemas ...domain.EntitySchema) (*StaticRegistry, error) {
	if err := validator.ValidateSchemas(schemas); err != nil {
		return nil, err
	}

	reg := &StaticRegistry{
		entities: make(map[string]domain.EntitySchema, len(schemas)),
		apps:     make(map[string]struct{}),
	}
	for _, es := range schemas {
		if _, exists := reg.entities[es.Type]; exists {
			return nil, fmt.Errorf("entity %s registered twice", es.Type)
		}
		reg.entities[es.Type] = es.Clone()
		reg.apps[es.AppLabel()] = struct{}{}
		reg.ordered = append(reg.ordered, es.Type)
	}
	sort.Strings(reg.ordered)
	return reg, nil
}

// MustStaticRegistry is NewStaticRegistry for fixtures; it panics on error.
func MustStaticRegistry(schemas ...domain.EntitySchema) *StaticRegistry {
	reg, err := NewStaticRegistry(schemas...)
	if err != nil {
		panic(err)
	}
	return reg
}

func (r *StaticRegistry) Entity(entityType string) (domain.EntitySchema, bool) {
	es, ok := r.entities[entityType]
	if !ok {
		return domain.EntitySchema{}, false
	}
	return es.Clone(), true
}

func (r *StaticRegistry) Entities() []domain.EntitySchema {
	out := make([]domain.EntitySchema, 0, len(r.ordered))
	for _, name := range r.ordered {
		es, _ := r.Entity(name)
		out = append(out, es)
	}
	return out
}

func (r *StaticRegistry) HasApp(app string) bool {
	_, ok := r.apps[app]
	return ok
}
