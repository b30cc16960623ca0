package datasource

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/rpattn/advfilters/internal/db"
	"github.com/rpattn/advfilters/internal/domain"
	"github.com/rpattn/advfilters/internal/schema"
)

// Row is one record keyed by column name.
type Row map[string]any

// MemorySource serves entity data held in memory. It is used for the memory
// driver and in tests.
type MemorySource struct {
	resolver *schema.Resolver

	mu   sync.RWMutex
	rows map[string][]Row
}

func NewMemorySource(resolver *schema.Resolver) *MemorySource {
	return &MemorySource{resolver: resolver, rows: make(map[string][]Row)}
}

// Insert appends rows for entityType.
func (m *MemorySource) Insert(entityType string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		copied := make(Row, len(row))
		for k, v := range row {
			copied[k] = v
		}
		m.rows[entityType] = append(m.rows[entityType], copied)
	}
}

// LoadFixtures reads YAML of the form
//
//	reps.SalesRep:
//	  - {id: 1, first_name: Cindy}
func (m *MemorySource) LoadFixtures(r io.Reader) error {
	var fixtures map[string][]Row
	if err := yaml.NewDecoder(r).Decode(&fixtures); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("failed to decode fixtures: %w", err)
	}
	for entityType, rows := range fixtures {
		es, err := m.resolver.Entity(entityType)
		if err != nil {
			return fmt.Errorf("fixtures: %w", err)
		}
		m.Insert(es.Type, rows...)
	}
	return nil
}

// LoadFixturesFile reads fixtures from path.
func (m *MemorySource) LoadFixturesFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open fixtures %s: %w", path, err)
	}
	defer f.Close()
	return m.LoadFixtures(f)
}

func (m *MemorySource) snapshot(entityType string) []Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Row(nil), m.rows[entityType]...)
}

func (m *MemorySource) DistinctValues(ctx context.Context, entity domain.EntitySchema, field domain.FieldDescriptor, search string, limit, offset int) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, db.Classify("distinct values", err)
	}
	needle := fold(search)
	seen := make(map[string]struct{})
	var values []any
	for _, row := range m.snapshot(entity.Type) {
		v := normalizeRowValue(row[field.Column])
		if v == nil {
			continue
		}
		text := domain.TextOf(v)
		if needle != "" && !strings.Contains(fold(text), needle) {
			continue
		}
		key := fmt.Sprintf("%T:%s", v, text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		values = append(values, v)
	}
	sort.SliceStable(values, func(i, j int) bool {
		return domain.CompareValues(values[i], values[j]) < 0
	})
	return paginate(values, limit, offset), nil
}

func (m *MemorySource) Select(ctx context.Context, entity domain.EntitySchema, where domain.Predicate, limit, offset int) (ResultSet, error) {
	if err := ctx.Err(); err != nil {
		return ResultSet{}, db.Classify("select rows", err)
	}
	var matched []Row
	for _, row := range m.snapshot(entity.Type) {
		ok, err := m.eval(entity, row, where)
		if err != nil {
			return ResultSet{}, err
		}
		if ok {
			matched = append(matched, row)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return domain.CompareValues(normalizeRowValue(matched[i][entity.Key]), normalizeRowValue(matched[j][entity.Key])) < 0
	})

	page := paginate(matched, limit+1, offset)
	result := ResultSet{Columns: columnsOf(entity), Rows: make([][]any, 0, len(page))}
	for _, row := range page {
		values := make([]any, 0, len(entity.Fields))
		for _, field := range entity.Fields {
			values = append(values, normalizeRowValue(row[field.Column]))
		}
		result.Rows = append(result.Rows, values)
	}
	if len(result.Rows) > limit {
		result.Rows = result.Rows[:limit]
		result.HasMore = true
	}
	return result, nil
}

// Matches evaluates where against a single row of entity.
func (m *MemorySource) Matches(entity domain.EntitySchema, row Row, where domain.Predicate) (bool, error) {
	return m.eval(entity, row, where)
}

func (m *MemorySource) eval(entity domain.EntitySchema, row Row, p domain.Predicate) (bool, error) {
	switch p.Kind {
	case domain.PredicateTrue, "":
		return true, nil
	case domain.PredicateAnd:
		for _, child := range p.Children {
			ok, err := m.eval(entity, row, child)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case domain.PredicateOr:
		for _, child := range p.Children {
			ok, err := m.eval(entity, row, child)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return len(p.Children) == 0, nil
	case domain.PredicateNot:
		if len(p.Children) != 1 {
			return false, fmt.Errorf("not node requires exactly one child, got %d", len(p.Children))
		}
		ok, err := m.eval(entity, row, p.Children[0])
		return !ok, err
	case domain.PredicateCompare:
		return m.compare(entity, row, p)
	}
	return false, fmt.Errorf("unknown predicate kind %q", p.Kind)
}

func (m *MemorySource) compare(entity domain.EntitySchema, row Row, p domain.Predicate) (bool, error) {
	if len(p.Values) != p.Op.Arity() {
		return false, fmt.Errorf("%w: %s takes %d values, got %d", domain.ErrArityMismatch, p.Op, p.Op.Arity(), len(p.Values))
	}
	rf, err := m.resolver.Resolve(entity.Type, p.Field)
	if err != nil {
		return false, err
	}
	v := m.follow(row, rf)
	kind := p.FieldKind
	if kind == "" {
		kind = m.resolver.ValueKind(rf.Field)
	}
	if err := p.Op.CheckKind(kind); err != nil {
		return false, err
	}

	switch p.Op {
	case domain.OpIsNull:
		return v == nil, nil
	case domain.OpIsTrue, domain.OpIsFalse:
		b, ok := asBool(v)
		return ok && b == (p.Op == domain.OpIsTrue), nil
	}
	if v == nil {
		return false, nil
	}
	text := domain.TextOf(v)

	switch p.Op {
	case domain.OpIExact:
		return fold(text) == fold(p.Values[0]), nil
	case domain.OpIContains:
		return strings.Contains(fold(text), fold(p.Values[0])), nil
	case domain.OpIRegex:
		re, err := regexp.Compile("(?i)" + p.Values[0])
		if err != nil {
			return false, fmt.Errorf("%w: %v", domain.ErrInvalidValue, err)
		}
		return re.MatchString(text), nil
	case domain.OpRange:
		lo, err := operandValue(kind, p.Values[0])
		if err != nil {
			return false, err
		}
		hi, err := operandValue(kind, p.Values[1])
		if err != nil {
			return false, err
		}
		cv := coerceStored(kind, v)
		return domain.CompareValues(cv, lo) >= 0 && domain.CompareValues(cv, hi) <= 0, nil
	case domain.OpLT, domain.OpGT, domain.OpLTE, domain.OpGTE:
		rhs, err := operandValue(kind, p.Values[0])
		if err != nil {
			return false, err
		}
		c := domain.CompareValues(coerceStored(kind, v), rhs)
		switch p.Op {
		case domain.OpLT:
			return c < 0, nil
		case domain.OpGT:
			return c > 0, nil
		case domain.OpLTE:
			return c <= 0, nil
		}
		return c >= 0, nil
	}
	return false, fmt.Errorf("%w: %s", domain.ErrUnsupportedOperator, p.Op)
}

// follow walks the relation steps from row and returns the terminal value,
// or nil when a link is missing.
func (m *MemorySource) follow(row Row, rf domain.ResolvedField) any {
	current := row
	for _, step := range rf.Steps {
		ref := normalizeRowValue(current[step.Column])
		if ref == nil {
			return nil
		}
		var next Row
		for _, candidate := range m.snapshot(step.Target) {
			if domain.TextOf(normalizeRowValue(candidate[step.TargetKey])) == domain.TextOf(ref) {
				next = candidate
				break
			}
		}
		if next == nil {
			return nil
		}
		current = next
	}
	return normalizeRowValue(current[rf.Field.Column])
}

func operandValue(kind domain.FieldKind, raw string) (any, error) {
	v, err := domain.ParseValue(kind, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidValue, err)
	}
	return v, nil
}

// coerceStored converts a stored value to the Go type ParseValue produces
// for kind, so both sides of a comparison share a family.
func coerceStored(kind domain.FieldKind, v any) any {
	switch kind {
	case domain.FieldKindInteger, domain.FieldKindFloat, domain.FieldKindDecimal,
		domain.FieldKindDate, domain.FieldKindDateTime, domain.FieldKindBoolean:
		if _, isTime := v.(time.Time); isTime {
			return v
		}
		if parsed, err := domain.ParseValue(kind, domain.TextOf(v)); err == nil {
			return parsed
		}
	}
	return v
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case nil:
		return false, false
	}
	parsed, err := domain.ParseValue(domain.FieldKindBoolean, domain.TextOf(v))
	if err != nil {
		return false, false
	}
	return parsed.(bool), true
}

// normalizeRowValue maps YAML-decoded numbers onto int64/float64.
func normalizeRowValue(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case []byte:
		return string(n)
	}
	return v
}

func fold(s string) string {
	return cases.Fold().String(s)
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) || limit <= 0 {
		return []T{}
	}
	if offset < 0 {
		offset = 0
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return append([]T(nil), items[offset:end]...)
}
