// Package compiler validates criteria sets against the schema and operator
// catalog and lowers them into storage-independent predicates.
package compiler

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rpattn/advfilters/internal/domain"
	"github.com/rpattn/advfilters/internal/log"
	"github.com/rpattn/advfilters/internal/operators"
	"github.com/rpattn/advfilters/internal/schema"
)

// Errors collects every criterion that failed to compile.
type Errors []*domain.CriterionError

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func (e Errors) Unwrap() []error {
	out := make([]error, 0, len(e))
	for _, err := range e {
		out = append(out, err)
	}
	return out
}

// Compiler holds no per-call state and is safe for concurrent use.
type Compiler struct {
	resolver *schema.Resolver
	catalog  *operators.Catalog
}

func New(resolver *schema.Resolver, catalog *operators.Catalog) *Compiler {
	return &Compiler{resolver: resolver, catalog: catalog}
}

// Compile validates set and returns its predicate. Operators are checked
// against the catalog again here; client-supplied keys are never trusted.
// Every failing criterion is reported, as Errors.
func (c *Compiler) Compile(set domain.CriteriaSet) (domain.Predicate, error) {
	root, err := c.resolver.Entity(set.Entity)
	if err != nil {
		return domain.Predicate{}, err
	}

	var errs Errors
	p := c.compileSet(root, set, "", &errs)
	if len(errs) > 0 {
		return domain.Predicate{}, errs
	}
	log.Debugf("compiled criteria on %s: %d fields", root.Type, len(p.Fields()))
	return p, nil
}

// CompileFor compiles set against entityType. A set naming another entity is
// rejected.
func (c *Compiler) CompileFor(entityType string, set domain.CriteriaSet) (domain.Predicate, error) {
	if set.Entity == "" {
		set.Entity = entityType
	}
	if err := c.sameEntity(entityType, set.Entity); err != nil {
		return domain.Predicate{}, &domain.CriterionError{Location: "entity", Err: err}
	}
	return c.Compile(set)
}

func (c *Compiler) sameEntity(want, got string) error {
	wantES, err := c.resolver.Entity(want)
	if err != nil {
		return err
	}
	gotES, err := c.resolver.Entity(got)
	if err != nil {
		return err
	}
	if wantES.Type != gotES.Type {
		return fmt.Errorf("%w: criteria target %s, expected %s", domain.ErrValidation, gotES.Type, wantES.Type)
	}
	return nil
}

func (c *Compiler) compileSet(root domain.EntitySchema, set domain.CriteriaSet, prefix string, errs *Errors) domain.Predicate {
	if set.Entity != "" && set.Entity != root.Type {
		if err := c.sameEntity(root.Type, set.Entity); err != nil {
			errs.add(prefix+"entity", "", "", err)
		}
	}

	var join func(...domain.Predicate) domain.Predicate
	switch set.Combinator {
	case domain.CombinatorAll, "":
		join = domain.And
	case domain.CombinatorAny:
		join = domain.Or
	default:
		errs.add(prefix+"combinator", "", "", fmt.Errorf("%w: unknown combinator %q", domain.ErrValidation, set.Combinator))
		join = domain.And
	}

	if set.IsEmpty() {
		return domain.True()
	}

	children := make([]domain.Predicate, 0, len(set.Criteria)+len(set.Sets))
	for i, criterion := range set.Criteria {
		location := fmt.Sprintf("%scriteria[%d]", prefix, i)
		leaf, err := c.compileCriterion(root, criterion)
		if err != nil {
			errs.add(location, criterion.Field, string(criterion.Operator), err)
			continue
		}
		children = append(children, leaf)
	}
	for j, child := range set.Sets {
		if child.IsEmpty() {
			continue
		}
		children = append(children, c.compileSet(root, child, fmt.Sprintf("%ssets[%d].", prefix, j), errs))
	}

	p := join(children...)
	if set.Negate {
		p = domain.Not(p)
	}
	return p
}

func (c *Compiler) compileCriterion(root domain.EntitySchema, criterion domain.Criterion) (domain.Predicate, error) {
	rf, err := c.resolver.Resolve(root.Type, criterion.Field)
	if err != nil {
		return domain.Predicate{}, err
	}

	op := domain.Operator(strings.ToLower(strings.TrimSpace(string(criterion.Operator))))
	if !c.catalog.Allows(rf.Field, op) {
		return domain.Predicate{}, fmt.Errorf("%w: %q is not available for %s", domain.ErrUnsupportedOperator, criterion.Operator, criterion.Field)
	}

	values := []string(criterion.Value)
	switch op.Arity() {
	case 0:
		values = nil
	case 2:
		if len(values) != 2 {
			return domain.Predicate{}, fmt.Errorf("%w: %s requires a start and an end value, got %d", domain.ErrArityMismatch, op, len(values))
		}
	default:
		if len(values) != 1 {
			return domain.Predicate{}, fmt.Errorf("%w: %s requires exactly one value, got %d", domain.ErrArityMismatch, op, len(values))
		}
	}

	kind := c.resolver.ValueKind(rf.Field)
	if err := op.CheckKind(kind); err != nil {
		return domain.Predicate{}, err
	}
	coerced, err := coerce(kind, op, values)
	if err != nil {
		return domain.Predicate{}, err
	}

	leaf := domain.Compare(criterion.Field, kind, op, coerced...)
	if criterion.Negate {
		leaf = domain.Not(leaf)
	}
	return leaf, nil
}

// coerce validates operands for kind and returns them in canonical form.
// Text operators keep the raw input.
func coerce(kind domain.FieldKind, op domain.Operator, values []string) ([]string, error) {
	switch op {
	case domain.OpIsNull, domain.OpIsTrue, domain.OpIsFalse:
		return nil, nil
	case domain.OpIExact, domain.OpIContains:
		return values, nil
	case domain.OpIRegex:
		if _, err := regexp.Compile("(?i)" + values[0]); err != nil {
			return nil, fmt.Errorf("%w: %q is not a valid pattern", domain.ErrInvalidValue, values[0])
		}
		return values, nil
	}

	out := make([]string, len(values))
	for i, raw := range values {
		normalized, err := domain.NormalizeValue(kind, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidValue, err)
		}
		out[i] = normalized
	}

	if op == domain.OpRange {
		if kind == domain.FieldKindDateTime && domain.IsBareDate(values[1]) {
			out[1] = endOfDay(values[1])
		}
		lo, _ := domain.ParseValue(kind, out[0])
		hi, _ := domain.ParseValue(kind, out[1])
		if domain.CompareValues(lo, hi) > 0 {
			return nil, fmt.Errorf("%w: range start %s is after its end %s", domain.ErrInvalidValue, values[0], values[1])
		}
	}
	return out, nil
}

// endOfDay turns a bare date into the last instant of that day so a datetime
// range ending on it includes the whole day.
func endOfDay(date string) string {
	day, _ := time.Parse(domain.DateLayout, strings.TrimSpace(date))
	return day.Add(24*time.Hour - time.Nanosecond).Format(time.RFC3339Nano)
}

func (e *Errors) add(location, field, op string, err error) {
	*e = append(*e, &domain.CriterionError{Location: location, Field: field, Operator: op, Err: err})
}
