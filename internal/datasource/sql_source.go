package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rpattn/advfilters/internal/db"
	"github.com/rpattn/advfilters/internal/domain"
	"github.com/rpattn/advfilters/internal/log"
	"github.com/rpattn/advfilters/internal/schema"
	"github.com/rpattn/advfilters/internal/sqlgen"
)

// SQLSource queries entity tables through database/sql.
type SQLSource struct {
	db       *sql.DB
	dialect  db.Dialect
	resolver *schema.Resolver
}

func NewSQLSource(conn *sql.DB, dialect db.Dialect, resolver *schema.Resolver) *SQLSource {
	return &SQLSource{db: conn, dialect: dialect, resolver: resolver}
}

func (s *SQLSource) DistinctValues(ctx context.Context, entity domain.EntitySchema, field domain.FieldDescriptor, search string, limit, offset int) ([]any, error) {
	b := sqlgen.NewBuilder()
	col := sqlgen.QualifiedIdent(sqlgen.RootAlias, field.Column)

	where := []string{col + " IS NOT NULL"}
	if search != "" {
		pattern := "%" + sqlgen.EscapeLike(search) + "%"
		where = append(where, fmt.Sprintf(`CAST(%s AS TEXT) ILIKE %s ESCAPE '\'`, col, b.Arg(pattern)))
	}

	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s AS %s WHERE %s ORDER BY %s LIMIT %s OFFSET %s",
		col,
		sqlgen.Ident(entity.Table), sqlgen.RootAlias,
		strings.Join(where, " AND "),
		col,
		b.Arg(limit), b.Arg(offset),
	)
	log.Debugf("distinct values query: %s", query)

	rows, err := s.db.QueryContext(ctx, query, b.Args()...)
	if err != nil {
		return nil, db.Classify("query distinct values", err)
	}
	defer rows.Close()

	values := make([]any, 0, limit)
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, db.Classify("scan distinct value", err)
		}
		values = append(values, normalizeScanned(v))
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("read distinct values", err)
	}
	return values, nil
}

func (s *SQLSource) Select(ctx context.Context, entity domain.EntitySchema, where domain.Predicate, limit, offset int) (ResultSet, error) {
	q := sqlgen.NewQuery(s.resolver, s.dialect, entity, nil)
	cond, err := q.Where(where)
	if err != nil {
		return ResultSet{}, err
	}
	b := q.Builder()

	columns := columnsOf(entity)
	selectList := make([]string, 0, len(entity.Fields))
	for _, field := range entity.Fields {
		selectList = append(selectList, sqlgen.QualifiedIdent(sqlgen.RootAlias, field.Column))
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT %s OFFSET %s",
		strings.Join(selectList, ", "),
		q.From(),
		cond,
		sqlgen.QualifiedIdent(sqlgen.RootAlias, entity.Key),
		b.Arg(limit+1), b.Arg(offset),
	)
	log.Debugf("select query: %s", query)

	rows, err := s.db.QueryContext(ctx, query, b.Args()...)
	if err != nil {
		return ResultSet{}, db.Classify("query rows", err)
	}
	defer rows.Close()

	result := ResultSet{Columns: columns, Rows: make([][]any, 0, limit)}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return ResultSet{}, db.Classify("scan row", err)
		}
		for i := range values {
			values[i] = normalizeScanned(values[i])
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, db.Classify("read rows", err)
	}
	if len(result.Rows) > limit {
		result.Rows = result.Rows[:limit]
		result.HasMore = true
	}
	return result, nil
}

// normalizeScanned turns driver byte slices into strings so values encode as
// JSON text.
func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
