package domain

import (
	"encoding/json"
	"fmt"
)

// PredicateKind tags the variant held by a Predicate node.
type PredicateKind string

const (
	PredicateAnd     PredicateKind = "and"
	PredicateOr      PredicateKind = "or"
	PredicateNot     PredicateKind = "not"
	PredicateCompare PredicateKind = "cmp"
	// PredicateTrue matches everything; it is the compiled form of an empty set.
	PredicateTrue PredicateKind = "true"
)

// Predicate is the compiled, storage-independent boolean filter. It is plain
// data so it can be persisted and re-rendered against any backend later.
//
// On leaves, FieldKind is the kind Values were coerced as. For a relation
// field that is the kind of the target's key.
type Predicate struct {
	Kind      PredicateKind `json:"kind"`
	Children  []Predicate   `json:"children,omitempty"`
	Field     string        `json:"field,omitempty"`
	FieldKind FieldKind     `json:"field_kind,omitempty"`
	Op        Operator      `json:"op,omitempty"`
	Values    []string      `json:"values,omitempty"`
}

// True returns the match-all predicate.
func True() Predicate {
	return Predicate{Kind: PredicateTrue}
}

// Compare builds a leaf comparison.
func Compare(field string, kind FieldKind, op Operator, values ...string) Predicate {
	var vals []string
	if len(values) > 0 {
		vals = append([]string(nil), values...)
	}
	return Predicate{
		Kind:      PredicateCompare,
		Field:     field,
		FieldKind: kind,
		Op:        op,
		Values:    vals,
	}
}

// And conjoins children. A single child is returned as is.
func And(children ...Predicate) Predicate {
	return junction(PredicateAnd, children)
}

// Or disjoins children. A single child is returned as is.
func Or(children ...Predicate) Predicate {
	return junction(PredicateOr, children)
}

func junction(kind PredicateKind, children []Predicate) Predicate {
	kept := make([]Predicate, 0, len(children))
	for _, child := range children {
		if child.Kind == PredicateTrue {
			if kind == PredicateOr {
				return True()
			}
			continue
		}
		kept = append(kept, child)
	}
	switch len(kept) {
	case 0:
		return True()
	case 1:
		return kept[0]
	}
	return Predicate{Kind: kind, Children: kept}
}

// Not negates p.
func Not(p Predicate) Predicate {
	if p.Kind == PredicateNot && len(p.Children) == 1 {
		return p.Children[0]
	}
	return Predicate{Kind: PredicateNot, Children: []Predicate{p}}
}

// Conjoin restricts p with externally supplied predicates such as a tenant or
// ownership restriction. p itself is left untouched.
func Conjoin(p Predicate, extra ...Predicate) Predicate {
	return And(append([]Predicate{p}, extra...)...)
}

// IsTrue reports whether p matches everything.
func (p Predicate) IsTrue() bool {
	return p.Kind == PredicateTrue || p.Kind == ""
}

// Fields returns every field path referenced by leaves, in first-seen order.
func (p Predicate) Fields() []string {
	seen := make(map[string]struct{})
	var out []string
	p.Walk(func(node Predicate) {
		if node.Kind != PredicateCompare {
			return
		}
		if _, ok := seen[node.Field]; ok {
			return
		}
		seen[node.Field] = struct{}{}
		out = append(out, node.Field)
	})
	return out
}

// Walk visits p and all descendants depth-first.
func (p Predicate) Walk(fn func(Predicate)) {
	fn(p)
	for _, child := range p.Children {
		child.Walk(fn)
	}
}

// Validate checks the structural shape of a decoded predicate.
func (p Predicate) Validate() error {
	switch p.Kind {
	case PredicateTrue, "":
		return nil
	case PredicateAnd, PredicateOr:
		if len(p.Children) == 0 {
			return fmt.Errorf("%s node requires children", p.Kind)
		}
	case PredicateNot:
		if len(p.Children) != 1 {
			return fmt.Errorf("not node requires exactly one child, got %d", len(p.Children))
		}
	case PredicateCompare:
		if p.Field == "" || p.Op == "" {
			return fmt.Errorf("comparison node requires field and op")
		}
		if len(p.Values) != p.Op.Arity() {
			return fmt.Errorf("operator %s takes %d values, got %d", p.Op, p.Op.Arity(), len(p.Values))
		}
		return nil
	default:
		return fmt.Errorf("unknown predicate kind %q", p.Kind)
	}
	for _, child := range p.Children {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// PredicateToJSON encodes a predicate for persistence.
func PredicateToJSON(p Predicate) (json.RawMessage, error) {
	if p.Kind == "" {
		p = True()
	}
	return json.Marshal(p)
}

// PredicateFromJSON decodes and validates a persisted predicate.
func PredicateFromJSON(data json.RawMessage) (Predicate, error) {
	if len(data) == 0 {
		return True(), nil
	}
	var p Predicate
	if err := json.Unmarshal(data, &p); err != nil {
		return Predicate{}, err
	}
	if err := p.Validate(); err != nil {
		return Predicate{}, err
	}
	return p, nil
}
