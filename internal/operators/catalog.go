// Package operators derives the comparison operators legal for a field from
// its semantic kind.
package operators

import (
	"fmt"
	"strings"

	"github.com/rpattn/advfilters/internal/domain"
)

// global is the full operator table in presentation order. Kinds with no
// entry of their own fall back to it.
var global = []domain.OperatorChoice{
	{Key: domain.OpIExact, Label: "Equals"},
	{Key: domain.OpIContains, Label: "Contains"},
	{Key: domain.OpIRegex, Label: "One of"},
	{Key: domain.OpRange, Label: "DateTime Range"},
	{Key: domain.OpIsNull, Label: "Is NULL"},
	{Key: domain.OpIsTrue, Label: "Is TRUE"},
	{Key: domain.OpIsFalse, Label: "Is FALSE"},
	{Key: domain.OpLT, Label: "Less Than"},
	{Key: domain.OpGT, Label: "Greater Than"},
	{Key: domain.OpLTE, Label: "Less Than or Equal To"},
	{Key: domain.OpGTE, Label: "Greater Than or Equal To"},
}

var (
	textOperators     = []domain.Operator{domain.OpIsNull, domain.OpIExact, domain.OpIContains, domain.OpIRegex}
	booleanOperators  = []domain.Operator{domain.OpIsNull, domain.OpIsTrue, domain.OpIsFalse}
	numericOperators  = []domain.Operator{domain.OpLT, domain.OpGT, domain.OpLTE, domain.OpGTE, domain.OpIsNull}
	temporalOperators = []domain.Operator{domain.OpRange, domain.OpLT, domain.OpGT, domain.OpLTE, domain.OpGTE, domain.OpIsNull}
)

func defaultTable() map[domain.FieldKind][]domain.Operator {
	return map[domain.FieldKind][]domain.Operator{
		domain.FieldKindText:     textOperators,
		domain.FieldKindEmail:    textOperators,
		domain.FieldKindURL:      textOperators,
		domain.FieldKindSlug:     textOperators,
		domain.FieldKindBoolean:  booleanOperators,
		domain.FieldKindInteger:  numericOperators,
		domain.FieldKindFloat:    numericOperators,
		domain.FieldKindDecimal:  numericOperators,
		domain.FieldKindDate:     temporalOperators,
		domain.FieldKindDateTime: temporalOperators,
	}
}

// Label returns the human-readable label of an operator key.
func Label(op domain.Operator) (string, bool) {
	for _, choice := range global {
		if choice.Key == op {
			return choice.Label, true
		}
	}
	return "", false
}

// Global returns a copy of the full operator table.
func Global() []domain.OperatorChoice {
	out := make([]domain.OperatorChoice, len(global))
	copy(out, global)
	return out
}

// Catalog maps field kinds to ordered operator sets. It is read-only after
// construction.
type Catalog struct {
	table    map[domain.FieldKind][]domain.Operator
	disabled *DisabledFields
}

// NewCatalog builds a catalog. overrides replaces the operator list of a
// kind; every key must exist in the global table. disabled may be nil.
func NewCatalog(overrides map[string][]string, disabled *DisabledFields) (*Catalog, error) {
	table := defaultTable()
	for rawKind, keys := range overrides {
		kind, err := domain.ParseFieldKind(rawKind)
		if err != nil {
			return nil, fmt.Errorf("operator override: %w", err)
		}
		ops := make([]domain.Operator, 0, len(keys))
		seen := make(map[domain.Operator]struct{}, len(keys))
		for _, key := range keys {
			op := domain.Operator(strings.ToLower(strings.TrimSpace(key)))
			if _, ok := Label(op); !ok {
				return nil, fmt.Errorf("operator override for %s: unknown operator %q", kind, key)
			}
			if _, dup := seen[op]; dup {
				continue
			}
			seen[op] = struct{}{}
			ops = append(ops, op)
		}
		table[kind] = ops
	}
	if disabled == nil {
		disabled = &DisabledFields{}
	}
	return &Catalog{table: table, disabled: disabled}, nil
}

// MustCatalog is NewCatalog for static configuration; it panics on error.
func MustCatalog(overrides map[string][]string, disabled *DisabledFields) *Catalog {
	c, err := NewCatalog(overrides, disabled)
	if err != nil {
		panic(err)
	}
	return c
}

// Disabled exposes the disabled-field policy shared with the choice provider.
func (c *Catalog) Disabled() *DisabledFields {
	return c.disabled
}

// ForKind returns the operators legal for kind, in presentation order.
func (c *Catalog) ForKind(kind domain.FieldKind) []domain.OperatorChoice {
	ops, ok := c.table[kind]
	if !ok {
		return Global()
	}
	out := make([]domain.OperatorChoice, 0, len(ops))
	for _, op := range ops {
		label, _ := Label(op)
		out = append(out, domain.OperatorChoice{Key: op, Label: label})
	}
	return out
}

// ForField returns the operators for a resolved field, or none when the field
// is disabled for filtering.
func (c *Catalog) ForField(field domain.FieldDescriptor) []domain.OperatorChoice {
	if c.disabled.Matches(field) {
		return []domain.OperatorChoice{}
	}
	return c.ForKind(field.Kind)
}

// Allows reports whether op may be applied to field.
func (c *Catalog) Allows(field domain.FieldDescriptor, op domain.Operator) bool {
	for _, choice := range c.ForField(field) {
		if choice.Key == op {
			return true
		}
	}
	return false
}
