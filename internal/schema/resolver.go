package schema

import (
	"strings"

	"github.com/rpattn/advfilters/internal/domain"
	"github.com/rpattn/advfilters/internal/log"
)

// Resolver turns dotted field paths into terminal field descriptors. It holds
// no state besides the registry and is safe for concurrent use.
type Resolver struct {
	registry Registry
}

func NewResolver(registry Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Registry returns the registry the resolver reads from.
func (r *Resolver) Registry() Registry {
	return r.registry
}

// Entity looks up an entity type. Model names match case-insensitively
// within an app; app labels must match exactly.
func (r *Resolver) Entity(entityType string) (domain.EntitySchema, error) {
	app, model, ok := domain.SplitEntityType(entityType)
	if !ok {
		return domain.EntitySchema{}, domain.NewPathError(domain.ErrUnknownEntity, entityType, "",
			"No installed app/model: %s", entityType)
	}
	if es, found := r.registry.Entity(entityType); found {
		return es, nil
	}
	if !r.registry.HasApp(app) {
		return domain.EntitySchema{}, domain.NewPathError(domain.ErrUnknownEntity, entityType, "",
			"No installed app with label '%s'.", app)
	}
	for _, es := range r.registry.Entities() {
		if es.AppLabel() == app && strings.EqualFold(es.ModelName(), model) {
			return es, nil
		}
	}
	return domain.EntitySchema{}, domain.NewPathError(domain.ErrUnknownEntity, entityType, "",
		"App '%s' doesn't have a '%s' model.", app, model)
}

// ValueKind returns the kind operands for field are compared as. Relation
// columns hold the target's key, so they take the kind of that key field;
// an undeclared key is assumed to be an integer.
func (r *Resolver) ValueKind(field domain.FieldDescriptor) domain.FieldKind {
	if !field.IsRelation() {
		return field.Kind
	}
	target, ok := r.registry.Entity(field.Target)
	if !ok {
		return domain.FieldKindInteger
	}
	key, ok := target.Field(field.TargetKey)
	if !ok || key.IsRelation() {
		return domain.FieldKindInteger
	}
	return key.Kind
}

// Resolve walks path from entityType. Every segment but the last must be a
// relation; the result carries the entity that owns the terminal field.
func (r *Resolver) Resolve(entityType, path string) (domain.ResolvedField, error) {
	current, err := r.Entity(entityType)
	if err != nil {
		return domain.ResolvedField{}, err
	}

	segments := strings.Split(path, ".")
	steps := make([]domain.RelationStep, 0, len(segments)-1)
	for i, segment := range segments {
		field, ok := current.Field(segment)
		if !ok {
			return domain.ResolvedField{}, domain.NewPathError(domain.ErrUnknownField, current.Type, path,
				"%s has no field named '%s'", current.ModelName(), segment)
		}
		if i == len(segments)-1 {
			resolved := domain.ResolvedField{
				Field:     field,
				Entity:    current.Type,
				Requested: entityType,
				Path:      path,
			}
			if len(steps) > 0 {
				resolved.Steps = steps
			}
			log.Debugf("resolved %s.%s to %s (%s)", entityType, path, field.QualifiedName(), field.Kind)
			return resolved, nil
		}
		if !field.IsRelation() {
			return domain.ResolvedField{}, domain.NewPathError(domain.ErrInvalidTraversal, current.Type, path,
				"%s.%s is not a relation and cannot be traversed", current.ModelName(), segment)
		}
		next, found := r.registry.Entity(field.Target)
		if !found {
			return domain.ResolvedField{}, domain.NewPathError(domain.ErrUnknownEntity, field.Target, path,
				"No installed app/model: %s", field.Target)
		}
		steps = append(steps, domain.RelationStep{
			Entity:    current.Type,
			Field:     field.Name,
			Column:    field.Column,
			Target:    next.Type,
			TargetKey: field.TargetKey,
		})
		current = next
	}
	// unreachable: strings.Split always yields at least one segment
	return domain.ResolvedField{}, domain.NewPathError(domain.ErrUnknownField, current.Type, path,
		"%s has no field named '%s'", current.ModelName(), path)
}
