package validator

import (
	"fmt"
	"strings"

	"github.com/rpattn/advfilters/internal/domain"
)

// kinds that never carry a fixed enumeration
var choicelessKinds = map[domain.FieldKind]struct{}{
	domain.FieldKindBoolean:  {},
	domain.FieldKindRelation: {},
	domain.FieldKindJSON:     {},
}

// ValidateFields checks one entity's field definitions: unique non-empty
// names, relation fields declare a target, and only relation fields do.
func ValidateFields(entityType string, fields []domain.FieldDescriptor) error {
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			return fmt.Errorf("entity %s has a field without a name", entityType)
		}
		if strings.Contains(name, ".") {
			return fmt.Errorf("field %s.%s must not contain a dot", entityType, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("field %s.%s is declared twice", entityType, name)
		}
		seen[name] = struct{}{}

		if _, err := domain.ParseFieldKind(string(field.Kind)); err != nil {
			return fmt.Errorf("field %s.%s: %w", entityType, name, err)
		}

		target := strings.TrimSpace(field.Target)
		if field.IsRelation() && target == "" {
			return fmt.Errorf("relation field %s.%s must declare a target entity", entityType, name)
		}
		if !field.IsRelation() && target != "" {
			return fmt.Errorf("field %s.%s cannot declare a target because kind %s is not a relation", entityType, name, field.Kind)
		}

		if _, ok := choicelessKinds[field.Kind]; ok && field.Enumerated() {
			return fmt.Errorf("field %s.%s of kind %s cannot declare choices", entityType, name, field.Kind)
		}
	}
	return nil
}

// ValidateSchemas checks every entity and the cross-entity relation targets.
func ValidateSchemas(schemas []domain.EntitySchema) error {
	known := make(map[string]struct{}, len(schemas))
	for _, es := range schemas {
		if _, _, ok := domain.SplitEntityType(es.Type); !ok {
			return fmt.Errorf("entity type %q must use the app.Model form", es.Type)
		}
		if strings.TrimSpace(es.Table) == "" {
			return fmt.Errorf("entity %s must declare a table", es.Type)
		}
		known[es.Type] = struct{}{}
	}

	for _, es := range schemas {
		if err := ValidateFields(es.Type, es.Fields); err != nil {
			return err
		}
		for _, field := range es.Fields {
			if !field.IsRelation() {
				continue
			}
			if _, ok := known[field.Target]; !ok {
				return fmt.Errorf("relation %s.%s targets unregistered entity %s", es.Type, field.Name, field.Target)
			}
		}
	}
	return nil
}
