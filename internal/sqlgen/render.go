// Package sqlgen lowers compiled predicates into SQL for the supported
// dialects. The root entity is always aliased t0; each relation prefix used
// by the predicate gets its own LEFT JOIN.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/rpattn/advfilters/internal/db"
	"github.com/rpattn/advfilters/internal/domain"
	"github.com/rpattn/advfilters/internal/schema"
)

const RootAlias = "t0"

// Query renders predicates against one root entity.
type Query struct {
	resolver *schema.Resolver
	dialect  db.Dialect
	root     domain.EntitySchema
	builder  *Builder
	joins    []string
	aliases  map[string]string
}

func NewQuery(resolver *schema.Resolver, dialect db.Dialect, root domain.EntitySchema, builder *Builder) *Query {
	if builder == nil {
		builder = NewBuilder()
	}
	return &Query{
		resolver: resolver,
		dialect:  dialect,
		root:     root,
		builder:  builder,
		aliases:  make(map[string]string),
	}
}

func (q *Query) Builder() *Builder {
	return q.builder
}

// From returns the FROM clause body including every join requested so far.
// Call it after rendering.
func (q *Query) From() string {
	parts := append([]string{Ident(q.root.Table) + " AS " + RootAlias}, q.joins...)
	return strings.Join(parts, " ")
}

// Column resolves path from the root and returns the qualified column,
// adding joins for each relation hop.
func (q *Query) Column(path string) (string, domain.ResolvedField, error) {
	rf, err := q.resolver.Resolve(q.root.Type, path)
	if err != nil {
		return "", domain.ResolvedField{}, err
	}
	alias := RootAlias
	prefix := ""
	for _, step := range rf.Steps {
		if prefix == "" {
			prefix = step.Field
		} else {
			prefix += "." + step.Field
		}
		next, ok := q.aliases[prefix]
		if !ok {
			target, found := q.resolver.Registry().Entity(step.Target)
			if !found {
				return "", domain.ResolvedField{}, fmt.Errorf("%w: %s", domain.ErrUnknownEntity, step.Target)
			}
			next = fmt.Sprintf("t%d", len(q.aliases)+1)
			q.aliases[prefix] = next
			q.joins = append(q.joins, fmt.Sprintf("LEFT JOIN %s AS %s ON %s = %s",
				Ident(target.Table), next,
				QualifiedIdent(next, step.TargetKey),
				QualifiedIdent(alias, step.Column)))
		}
		alias = next
	}
	return QualifiedIdent(alias, rf.Field.Column), rf, nil
}

// Where renders p as a boolean SQL expression.
func (q *Query) Where(p domain.Predicate) (string, error) {
	switch p.Kind {
	case domain.PredicateTrue, "":
		return "TRUE", nil
	case domain.PredicateAnd, domain.PredicateOr:
		if len(p.Children) == 0 {
			return "TRUE", nil
		}
		parts := make([]string, 0, len(p.Children))
		for _, child := range p.Children {
			expr, err := q.Where(child)
			if err != nil {
				return "", err
			}
			parts = append(parts, expr)
		}
		sep := " AND "
		if p.Kind == domain.PredicateOr {
			sep = " OR "
		}
		return "(" + strings.Join(parts, sep) + ")", nil
	case domain.PredicateNot:
		if len(p.Children) != 1 {
			return "", fmt.Errorf("not node requires exactly one child, got %d", len(p.Children))
		}
		expr, err := q.Where(p.Children[0])
		if err != nil {
			return "", err
		}
		// a NULL comparison counts as false, so its negation matches
		return "NOT COALESCE(" + expr + ", FALSE)", nil
	case domain.PredicateCompare:
		return q.compare(p)
	}
	return "", fmt.Errorf("unknown predicate kind %q", p.Kind)
}

func (q *Query) compare(p domain.Predicate) (string, error) {
	if len(p.Values) != p.Op.Arity() {
		return "", fmt.Errorf("%w: %s takes %d values, got %d", domain.ErrArityMismatch, p.Op, p.Op.Arity(), len(p.Values))
	}
	col, rf, err := q.Column(p.Field)
	if err != nil {
		return "", err
	}
	kind := p.FieldKind
	if kind == "" {
		kind = q.resolver.ValueKind(rf.Field)
	}
	if err := p.Op.CheckKind(kind); err != nil {
		return "", err
	}
	asText := "CAST(" + col + " AS TEXT)"

	switch p.Op {
	case domain.OpIsNull:
		return col + " IS NULL", nil
	case domain.OpIsTrue:
		return col + " = TRUE", nil
	case domain.OpIsFalse:
		return col + " = FALSE", nil
	case domain.OpIExact:
		return fmt.Sprintf("LOWER(%s) = LOWER(%s)", asText, q.builder.Arg(p.Values[0])), nil
	case domain.OpIContains:
		pattern := "%" + EscapeLike(p.Values[0]) + "%"
		return fmt.Sprintf(`%s ILIKE %s ESCAPE '\'`, asText, q.builder.Arg(pattern)), nil
	case domain.OpIRegex:
		if q.dialect == db.DialectDuckDB {
			return fmt.Sprintf("regexp_matches(%s, %s, 'i')", asText, q.builder.Arg(p.Values[0])), nil
		}
		return fmt.Sprintf("%s ~* %s", asText, q.builder.Arg(p.Values[0])), nil
	case domain.OpRange:
		lo, err := q.operand(kind, p.Values[0])
		if err != nil {
			return "", err
		}
		hi, err := q.operand(kind, p.Values[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", col, lo, hi), nil
	case domain.OpLT, domain.OpGT, domain.OpLTE, domain.OpGTE:
		rhs, err := q.operand(kind, p.Values[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", col, comparisonSymbols[p.Op], rhs), nil
	}
	return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedOperator, p.Op)
}

var comparisonSymbols = map[domain.Operator]string{
	domain.OpLT:  "<",
	domain.OpGT:  ">",
	domain.OpLTE: "<=",
	domain.OpGTE: ">=",
}

// operand binds raw as a typed argument for comparisons against kind.
func (q *Query) operand(kind domain.FieldKind, raw string) (string, error) {
	v, err := domain.ParseValue(kind, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidValue, err)
	}
	switch kind {
	case domain.FieldKindDecimal:
		return q.cast(domain.FormatValue(kind, v), q.decimalType()), nil
	case domain.FieldKindDate:
		return q.cast(domain.FormatValue(kind, v), "DATE"), nil
	case domain.FieldKindTime:
		return q.cast(v, "TIME"), nil
	case domain.FieldKindUUID:
		return q.cast(v, "UUID"), nil
	}
	return q.builder.Arg(v), nil
}

func (q *Query) cast(v any, sqlType string) string {
	return fmt.Sprintf("CAST(%s AS %s)", q.builder.Arg(v), sqlType)
}

func (q *Query) decimalType() string {
	if q.dialect == db.DialectDuckDB {
		return "DOUBLE"
	}
	return "NUMERIC"
}

// EscapeLike escapes LIKE wildcards with a backslash.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Render is a convenience for a single predicate: it returns the FROM body
// and WHERE expression, with arguments collected in builder.
func Render(resolver *schema.Resolver, dialect db.Dialect, root domain.EntitySchema, p domain.Predicate, builder *Builder) (from, where string, err error) {
	q := NewQuery(resolver, dialect, root, builder)
	where, err = q.Where(p)
	if err != nil {
		return "", "", err
	}
	return q.From(), where, nil
}
