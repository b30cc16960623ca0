package operators

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/rpattn/advfilters/internal/domain"
)

// DisabledFields is the set of field patterns excluded from filtering. A
// pattern matches either the bare field name ("password", "*_token") or the
// qualified name ("auth.User.*").
type DisabledFields struct {
	patterns []string
}

// NewDisabledFields validates the glob patterns.
func NewDisabledFields(patterns []string) (*DisabledFields, error) {
	kept := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid disabled field pattern %q", pattern)
		}
		kept = append(kept, pattern)
	}
	return &DisabledFields{patterns: kept}, nil
}

// Patterns returns a copy of the configured patterns.
func (d *DisabledFields) Patterns() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.patterns...)
}

// Matches reports whether field is disabled for filtering.
func (d *DisabledFields) Matches(field domain.FieldDescriptor) bool {
	if d == nil {
		return false
	}
	qualified := field.QualifiedName()
	for _, pattern := range d.patterns {
		if ok, _ := doublestar.Match(pattern, field.Name); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, qualified); ok {
			return true
		}
	}
	return false
}
