package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/rpattn/advfilters/internal/db"
	"github.com/rpattn/advfilters/internal/domain"
	"github.com/rpattn/advfilters/internal/log"
)

// IntrospectOptions controls how database tables become entity types.
type IntrospectOptions struct {
	// Schema is the database schema to read; defaults to "public" on
	// PostgreSQL and "main" on DuckDB.
	Schema string
	// AppLabel, when set, is used for every table. Otherwise the table name
	// prefix before the first underscore is the app label ("reps_salesrep"
	// becomes reps.Salesrep).
	AppLabel string
	// Exclude lists tables to skip.
	Exclude []string
}

const columnsQuery = `
SELECT table_name, column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, ordinal_position`

const foreignKeysQuery = `
SELECT kcu.table_name, kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1`

type foreignKey struct {
	targetTable  string
	targetColumn string
}

// Introspect reads table metadata from the database and derives one entity
// schema per table. Foreign keys are only discovered on PostgreSQL.
func Introspect(ctx context.Context, conn *sql.DB, dialect db.Dialect, opts IntrospectOptions) ([]domain.EntitySchema, error) {
	schemaName := opts.Schema
	if schemaName == "" {
		schemaName = "public"
		if dialect == db.DialectDuckDB {
			schemaName = "main"
		}
	}
	excluded := make(map[string]struct{}, len(opts.Exclude))
	for _, table := range opts.Exclude {
		excluded[table] = struct{}{}
	}

	fks := map[string]map[string]foreignKey{}
	if dialect == db.DialectPostgres {
		var err error
		fks, err = loadForeignKeys(ctx, conn, schemaName)
		if err != nil {
			return nil, err
		}
	}

	rows, err := conn.QueryContext(ctx, columnsQuery, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	defer rows.Close()

	tables := map[string][]domain.FieldDescriptor{}
	var order []string
	for rows.Next() {
		var table, column, dataType, nullable string
		if err := rows.Scan(&table, &column, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		if _, skip := excluded[table]; skip {
			continue
		}
		if _, seen := tables[table]; !seen {
			order = append(order, table)
		}
		field := domain.FieldDescriptor{
			Name:     column,
			Kind:     KindForColumnType(dataType),
			Column:   column,
			Nullable: strings.EqualFold(nullable, "YES"),
		}
		if fk, ok := fks[table][column]; ok {
			field.Name = strings.TrimSuffix(column, "_id")
			field.Kind = domain.FieldKindRelation
			field.Target = entityTypeForTable(fk.targetTable, opts.AppLabel)
			field.TargetKey = fk.targetColumn
		}
		tables[table] = append(tables[table], field)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	known := make(map[string]struct{}, len(order))
	for _, table := range order {
		known[entityTypeForTable(table, opts.AppLabel)] = struct{}{}
	}

	schemas := make([]domain.EntitySchema, 0, len(order))
	for _, table := range order {
		fields := tables[table]
		for i := range fields {
			if !fields[i].IsRelation() {
				continue
			}
			// relations into excluded tables degrade to plain key columns
			if _, ok := known[fields[i].Target]; !ok {
				fields[i].Name = fields[i].Column
				fields[i].Kind = domain.FieldKindOther
				fields[i].Target = ""
				fields[i].TargetKey = ""
			}
		}
		schemas = append(schemas, domain.NewEntitySchema(entityTypeForTable(table, opts.AppLabel), table, fields))
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Type < schemas[j].Type })
	log.Infof("introspected %d tables from schema %s", len(schemas), schemaName)
	return schemas, nil
}

func loadForeignKeys(ctx context.Context, conn *sql.DB, schemaName string) (map[string]map[string]foreignKey, error) {
	rows, err := conn.QueryContext(ctx, foreignKeysQuery, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to list foreign keys: %w", err)
	}
	defer rows.Close()

	out := map[string]map[string]foreignKey{}
	for rows.Next() {
		var table, column string
		var fk foreignKey
		if err := rows.Scan(&table, &column, &fk.targetTable, &fk.targetColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		if out[table] == nil {
			out[table] = map[string]foreignKey{}
		}
		out[table][column] = fk
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read foreign keys: %w", err)
	}
	return out, nil
}

var integerTypes = map[string]bool{
	"smallint": true, "integer": true, "bigint": true, "int": true,
	"int2": true, "int4": true, "int8": true, "tinyint": true, "hugeint": true,
	"utinyint": true, "usmallint": true, "uinteger": true, "ubigint": true, "uhugeint": true,
	"serial": true, "bigserial": true,
}

// KindForColumnType maps an information_schema data type to a field kind.
func KindForColumnType(dataType string) domain.FieldKind {
	t := strings.ToLower(strings.TrimSpace(dataType))
	switch {
	case t == "boolean" || t == "bool":
		return domain.FieldKindBoolean
	case t == "uuid":
		return domain.FieldKindUUID
	case t == "json" || t == "jsonb":
		return domain.FieldKindJSON
	case t == "date":
		return domain.FieldKindDate
	case strings.HasPrefix(t, "timestamp"):
		return domain.FieldKindDateTime
	case strings.HasPrefix(t, "time"):
		return domain.FieldKindTime
	case strings.HasPrefix(t, "numeric") || strings.HasPrefix(t, "decimal"):
		return domain.FieldKindDecimal
	case t == "real" || t == "double precision" || t == "double" || t == "float" || t == "float4" || t == "float8":
		return domain.FieldKindFloat
	case integerTypes[t]:
		return domain.FieldKindInteger
	case strings.Contains(t, "char") || t == "text" || t == "citext" || t == "name" || t == "varchar":
		return domain.FieldKindText
	}
	return domain.FieldKindOther
}

func entityTypeForTable(table, appLabel string) string {
	if appLabel != "" {
		return appLabel + "." + modelName(table)
	}
	if app, rest, ok := strings.Cut(table, "_"); ok && app != "" && rest != "" {
		return app + "." + modelName(rest)
	}
	return "db." + modelName(table)
}

// modelName turns a snake_case table name into a model name.
func modelName(table string) string {
	parts := strings.Split(table, "_")
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
