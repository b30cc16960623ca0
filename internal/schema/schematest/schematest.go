// Package schematest provides a small sales schema and matching rows shared
// by package tests.
package schematest

import (
	_ "embed"
	"testing"

	"github.com/rpattn/advfilters/internal/schema"
)

//go:embed schema.yaml
var SchemaYAML []byte

// RowsYAML holds memory source fixtures for the entities in SchemaYAML.
//
//go:embed rows.yaml
var RowsYAML []byte

// Registry loads SchemaYAML.
func Registry(t testing.TB) *schema.StaticRegistry {
	t.Helper()
	reg, err := schema.LoadRegistry(SchemaYAML)
	if err != nil {
		t.Fatalf("failed to load test schema: %v", err)
	}
	return reg
}

// Resolver returns a resolver over Registry.
func Resolver(t testing.TB) *schema.Resolver {
	t.Helper()
	return schema.NewResolver(Registry(t))
}
