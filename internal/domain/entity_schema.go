package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldKind is the semantic kind of a field, independent of the storage column type.
type FieldKind string

const (
	FieldKindText     FieldKind = "text"
	FieldKindEmail    FieldKind = "email"
	FieldKindURL      FieldKind = "url"
	FieldKindSlug     FieldKind = "slug"
	FieldKindBoolean  FieldKind = "boolean"
	FieldKindInteger  FieldKind = "integer"
	FieldKindFloat    FieldKind = "float"
	FieldKindDecimal  FieldKind = "decimal"
	FieldKindDate     FieldKind = "date"
	FieldKindDateTime FieldKind = "datetime"
	FieldKindTime     FieldKind = "time"
	FieldKindRelation FieldKind = "relation"
	FieldKindUUID     FieldKind = "uuid"
	FieldKindJSON     FieldKind = "json"
	// FieldKindOther covers storage types with no closer semantic kind.
	FieldKindOther FieldKind = "other"
)

var knownKinds = map[FieldKind]struct{}{
	FieldKindText: {}, FieldKindEmail: {}, FieldKindURL: {}, FieldKindSlug: {},
	FieldKindBoolean: {}, FieldKindInteger: {}, FieldKindFloat: {}, FieldKindDecimal: {},
	FieldKindDate: {}, FieldKindDateTime: {}, FieldKindTime: {}, FieldKindRelation: {},
	FieldKindUUID: {}, FieldKindJSON: {}, FieldKindOther: {},
}

// ParseFieldKind normalises a kind name. Unknown kinds are rejected.
func ParseFieldKind(raw string) (FieldKind, error) {
	kind := FieldKind(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownKinds[kind]; !ok {
		return "", fmt.Errorf("unknown field kind %q", raw)
	}
	return kind, nil
}

// IsTextual reports whether values of the kind are free-form or identifier-like strings.
func (k FieldKind) IsTextual() bool {
	switch k {
	case FieldKindText, FieldKindEmail, FieldKindURL, FieldKindSlug:
		return true
	}
	return false
}

// IsNumeric reports whether the kind is an integer, float or decimal.
func (k FieldKind) IsNumeric() bool {
	switch k {
	case FieldKindInteger, FieldKindFloat, FieldKindDecimal:
		return true
	}
	return false
}

// IsTemporal reports whether the kind is a date or datetime.
func (k FieldKind) IsTemporal() bool {
	return k == FieldKindDate || k == FieldKindDateTime
}

// Choice is one entry of a fixed enumeration.
type Choice struct {
	Value any    `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// FieldDescriptor describes a single field of an entity schema.
type FieldDescriptor struct {
	Name     string    `json:"name"`
	Kind     FieldKind `json:"kind"`
	Entity   string    `json:"entity"`
	Column   string    `json:"column"`
	Nullable bool      `json:"nullable"`
	Choices  []Choice  `json:"choices,omitempty"`
	// Target is the related entity type for relation fields; TargetKey is the
	// key column on the target table that Column refers to.
	Target    string `json:"target,omitempty"`
	TargetKey string `json:"target_key,omitempty"`
}

// Enumerated reports whether the field carries a fixed set of choices.
func (f FieldDescriptor) Enumerated() bool {
	return len(f.Choices) > 0
}

// IsRelation reports whether the field can be traversed to another entity.
func (f FieldDescriptor) IsRelation() bool {
	return f.Kind == FieldKindRelation
}

// QualifiedName returns "<entity>.<field>".
func (f FieldDescriptor) QualifiedName() string {
	return f.Entity + "." + f.Name
}

// ChoiceList returns a copy of the field's fixed enumeration.
func (f FieldDescriptor) ChoiceList() []Choice {
	if len(f.Choices) == 0 {
		return nil
	}
	clone := make([]Choice, len(f.Choices))
	copy(clone, f.Choices)
	return clone
}

// EntitySchema is the metadata for one entity type, identified as "app.Model".
type EntitySchema struct {
	Type   string            `json:"type"`
	Table  string            `json:"table"`
	Key    string            `json:"key"`
	Fields []FieldDescriptor `json:"fields"`
}

// NewEntitySchema creates a schema, stamping each field with its owning entity.
func NewEntitySchema(entityType, table string, fields []FieldDescriptor) EntitySchema {
	copied := copyFields(fields)
	for i := range copied {
		copied[i].Entity = entityType
		if copied[i].Column == "" {
			copied[i].Column = copied[i].Name
		}
		if copied[i].IsRelation() && copied[i].TargetKey == "" {
			copied[i].TargetKey = "id"
		}
	}
	return EntitySchema{
		Type:   entityType,
		Table:  table,
		Key:    "id",
		Fields: copied,
	}
}

// Clone returns a deep copy with every field stamped with its owner.
func (es EntitySchema) Clone() EntitySchema {
	out := NewEntitySchema(es.Type, es.Table, es.Fields)
	if es.Key != "" {
		out.Key = es.Key
	}
	return out
}

// Field looks up a field by name.
func (es EntitySchema) Field(name string) (FieldDescriptor, bool) {
	for _, field := range es.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FieldDescriptor{}, false
}

// WithField returns a new schema with an added/updated field
func (es EntitySchema) WithField(field FieldDescriptor) EntitySchema {
	newFields := copyFields(es.Fields)
	field.Entity = es.Type
	if field.Column == "" {
		field.Column = field.Name
	}

	found := false
	for i, existingField := range newFields {
		if existingField.Name == field.Name {
			newFields[i] = field
			found = true
			break
		}
	}
	if !found {
		newFields = append(newFields, field)
	}

	return EntitySchema{Type: es.Type, Table: es.Table, Key: es.Key, Fields: newFields}
}

// AppLabel returns the part of the type identifier before the first dot.
func (es EntitySchema) AppLabel() string {
	app, _, _ := SplitEntityType(es.Type)
	return app
}

// ModelName returns the part of the type identifier after the first dot.
func (es EntitySchema) ModelName() string {
	_, model, _ := SplitEntityType(es.Type)
	return model
}

// SplitEntityType splits "app.Model" into its two parts.
func SplitEntityType(entityType string) (app, model string, ok bool) {
	app, model, ok = strings.Cut(entityType, ".")
	if !ok || app == "" || model == "" {
		return "", "", false
	}
	return app, model, true
}

// GetFieldsAsJSON returns the fields encoded for storage.
func (es EntitySchema) GetFieldsAsJSON() (json.RawMessage, error) {
	return json.Marshal(es.Fields)
}

// copyFields creates a deep copy of the fields slice to ensure immutability
func copyFields(fields []FieldDescriptor) []FieldDescriptor {
	if fields == nil {
		return nil
	}
	newFields := make([]FieldDescriptor, len(fields))
	for i, field := range fields {
		field.Choices = field.ChoiceList()
		newFields[i] = field
	}
	return newFields
}

// RelationStep is one hop of a traversed relation path.
type RelationStep struct {
	Entity    string `json:"entity"`
	Field     string `json:"field"`
	Column    string `json:"column"`
	Target    string `json:"target"`
	TargetKey string `json:"target_key"`
}

// ResolvedField is a terminal field reached from a requested entity through
// zero or more relation hops.
type ResolvedField struct {
	Field     FieldDescriptor `json:"field"`
	Entity    string          `json:"entity"`
	Requested string          `json:"requested"`
	Path      string          `json:"path"`
	Steps     []RelationStep  `json:"steps,omitempty"`
}
