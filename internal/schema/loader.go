package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rpattn/advfilters/internal/domain"
)

// Definitions is the on-disk form of a registry.
//
//	entities:
//	  - type: reps.SalesRep
//	    table: reps_salesrep
//	    fields:
//	      - {name: first_name, kind: text}
//	      - {name: region, kind: text, choices: [{value: n, label: North}]}
//	  - type: customers.Client
//	    table: customers_client
//	    fields:
//	      - {name: assigned_to, kind: relation, column: assigned_to_id, target: reps.SalesRep}
type Definitions struct {
	Entities []EntityDefinition `yaml:"entities"`
}

type EntityDefinition struct {
	Type   string            `yaml:"type"`
	Table  string            `yaml:"table"`
	Key    string            `yaml:"key,omitempty"`
	Fields []FieldDefinition `yaml:"fields"`
}

type FieldDefinition struct {
	Name      string          `yaml:"name"`
	Kind      string          `yaml:"kind"`
	Column    string          `yaml:"column,omitempty"`
	Nullable  bool            `yaml:"nullable,omitempty"`
	Choices   []domain.Choice `yaml:"choices,omitempty"`
	Target    string          `yaml:"target,omitempty"`
	TargetKey string          `yaml:"target_key,omitempty"`
}

// Schemas converts the definitions into entity schemas.
func (d Definitions) Schemas() ([]domain.EntitySchema, error) {
	schemas := make([]domain.EntitySchema, 0, len(d.Entities))
	for _, entity := range d.Entities {
		fields := make([]domain.FieldDescriptor, 0, len(entity.Fields))
		for _, def := range entity.Fields {
			kind, err := domain.ParseFieldKind(def.Kind)
			if err != nil {
				return nil, fmt.Errorf("entity %s field %s: %w", entity.Type, def.Name, err)
			}
			fields = append(fields, domain.FieldDescriptor{
				Name:      def.Name,
				Kind:      kind,
				Column:    def.Column,
				Nullable:  def.Nullable,
				Choices:   def.Choices,
				Target:    def.Target,
				TargetKey: def.TargetKey,
			})
		}
		es := domain.NewEntitySchema(entity.Type, entity.Table, fields)
		if entity.Key != "" {
			es.Key = entity.Key
		}
		schemas = append(schemas, es)
	}
	return schemas, nil
}

// LoadDefinitions decodes YAML definitions from r.
func LoadDefinitions(r io.Reader) ([]domain.EntitySchema, error) {
	var defs Definitions
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&defs); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode schema definitions: %w", err)
	}
	return defs.Schemas()
}

// LoadRegistry builds a registry from YAML definitions.
func LoadRegistry(data []byte) (*StaticRegistry, error) {
	schemas, err := LoadDefinitions(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return NewStaticRegistry(schemas...)
}

// LoadRegistryFile builds a registry from a YAML definition file.
func LoadRegistryFile(path string) (*StaticRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	reg, err := LoadRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("schema file %s: %w", path, err)
	}
	return reg, nil
}

// Dump renders schemas back into the YAML definition form.
func Dump(schemas []domain.EntitySchema) ([]byte, error) {
	defs := Definitions{Entities: make([]EntityDefinition, 0, len(schemas))}
	for _, es := range schemas {
		entity := EntityDefinition{Type: es.Type, Table: es.Table, Key: es.Key}
		for _, field := range es.Fields {
			def := FieldDefinition{
				Name:     field.Name,
				Kind:     string(field.Kind),
				Nullable: field.Nullable,
				Choices:  field.ChoiceList(),
				Target:   field.Target,
			}
			if field.Column != field.Name {
				def.Column = field.Column
			}
			if field.IsRelation() && field.TargetKey != "id" {
				def.TargetKey = field.TargetKey
			}
			entity.Fields = append(entity.Fields, def)
		}
		defs.Entities = append(defs.Entities, entity)
	}
	return yaml.Marshal(defs)
}
