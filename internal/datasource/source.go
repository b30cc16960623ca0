// Package datasource reads live entity data: distinct field values for
// choice lookups and filtered rows for applying saved filters.
package datasource

import (
	"context"

	"github.com/rpattn/advfilters/internal/domain"
)

// Source is the storage layer the engine queries. Implementations must be
// safe for concurrent use and report transient failures as
// domain.ErrRetryable.
type Source interface {
	// DistinctValues returns distinct non-null values of field on entity
	// whose text form contains search case-insensitively, ascending by raw
	// value.
	DistinctValues(ctx context.Context, entity domain.EntitySchema, field domain.FieldDescriptor, search string, limit, offset int) ([]any, error)
	// Select returns rows of entity matching where, ordered by key.
	Select(ctx context.Context, entity domain.EntitySchema, where domain.Predicate, limit, offset int) (ResultSet, error)
}

// ResultSet is one page of rows. Columns are field names of the entity.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	HasMore bool     `json:"more"`
}

// Records returns the rows keyed by column.
func (rs ResultSet) Records() []map[string]any {
	out := make([]map[string]any, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		record := make(map[string]any, len(rs.Columns))
		for i, col := range rs.Columns {
			if i < len(row) {
				record[col] = row[i]
			}
		}
		out = append(out, record)
	}
	return out
}

// columnsOf lists the entity's field names in declaration order.
func columnsOf(entity domain.EntitySchema) []string {
	cols := make([]string, 0, len(entity.Fields))
	for _, field := range entity.Fields {
		cols = append(cols, field.Name)
	}
	return cols
}
