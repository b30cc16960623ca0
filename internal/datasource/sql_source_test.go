package datasource

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/advfilters/internal/db"
	"github.com/rpattn/advfilters/internal/domain"
	"github.com/rpattn/advfilters/internal/schema/schematest"
)

func newSQLSource(t *testing.T) (*SQLSource, sqlmock.Sqlmock, domain.EntitySchema) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	resolver := schematest.Resolver(t)
	client, err := resolver.Entity("customers.Client")
	require.NoError(t, err)
	return NewSQLSource(conn, db.DialectPostgres, resolver), mock, client
}

func TestSQLSource_DistinctValues(t *testing.T) {
	src, mock, client := newSQLSource(t)
	email, _ := client.Field("email")

	query := `SELECT DISTINCT t0."email" FROM "customers_client" AS t0 ` +
		`WHERE t0."email" IS NOT NULL AND CAST(t0."email" AS TEXT) ILIKE $1 ESCAPE '\' ` +
		`ORDER BY t0."email" LIMIT $2 OFFSET $3`
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("%ci%", 21, 20).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).
			AddRow([]byte("cindy@example.com")).
			AddRow("francisco@example.com"))

	got, err := src.DistinctValues(context.Background(), client, email, "ci", 21, 20)
	require.NoError(t, err)
	require.Equal(t, []any{"cindy@example.com", "francisco@example.com"}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_DistinctValuesWithoutSearch(t *testing.T) {
	src, mock, client := newSQLSource(t)
	visits, _ := client.Field("visits")

	query := `SELECT DISTINCT t0."visits" FROM "customers_client" AS t0 ` +
		`WHERE t0."visits" IS NOT NULL ORDER BY t0."visits" LIMIT $1 OFFSET $2`
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(4, 0).
		WillReturnRows(sqlmock.NewRows([]string{"visits"}).AddRow(int64(0)).AddRow(int64(4)))

	got, err := src.DistinctValues(context.Background(), client, visits, "", 4, 0)
	require.NoError(t, err)
	require.Equal(t, []any{int64(0), int64(4)}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_TransientFailuresAreRetryable(t *testing.T) {
	src, mock, client := newSQLSource(t)
	email, _ := client.Field("email")

	mock.ExpectQuery("SELECT DISTINCT").WillReturnError(&pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"})

	_, err := src.DistinctValues(context.Background(), client, email, "", 10, 0)
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrRetryable))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_Select(t *testing.T) {
	src, mock, client := newSQLSource(t)

	where := domain.And(
		domain.Compare("assigned_to.first_name", domain.FieldKindText, domain.OpIExact, "bob"),
		domain.Compare("visits", domain.FieldKindInteger, domain.OpGTE, "5"),
	)

	query := `SELECT t0."id", t0."first_name", t0."last_name", t0."email", t0."language", t0."is_active", ` +
		`t0."created_at", t0."balance", t0."visits", t0."external_id", t0."assigned_to_id" ` +
		`FROM "customers_client" AS t0 LEFT JOIN "reps_salesrep" AS t1 ON t1."id" = t0."assigned_to_id" ` +
		`WHERE (LOWER(CAST(t1."first_name" AS TEXT)) = LOWER($1) AND t0."visits" >= $2) ` +
		`ORDER BY t0."id" LIMIT $3 OFFSET $4`

	row := func(id int64) []driver.Value {
		return []driver.Value{id, "Cindy", "Brown", "cindy@example.com", "en", true, nil, []byte("10.00"), int64(12), nil, int64(2)}
	}
	rows := sqlmock.NewRows(columnNames(client))
	rows.AddRow(row(2)...)
	rows.AddRow(row(5)...)
	rows.AddRow(row(7)...)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("bob", int64(5), 3, 0).
		WillReturnRows(rows)

	rs, err := src.Select(context.Background(), client, where, 2, 0)
	require.NoError(t, err)
	require.True(t, rs.HasMore)
	require.Len(t, rs.Rows, 2)
	require.Equal(t, columnNames(client), rs.Columns)

	rec := rs.Records()[0]
	require.Equal(t, int64(2), rec["id"])
	require.Equal(t, "10.00", rec["balance"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_SelectRejectsUnknownFields(t *testing.T) {
	src, mock, client := newSQLSource(t)

	_, err := src.Select(context.Background(), client, domain.Compare("nope", domain.FieldKindText, domain.OpIExact, "x"), 10, 0)
	require.Error(t, err)
	require.True(t, domain.IsPathError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func columnNames(es domain.EntitySchema) []string {
	return columnsOf(es)
}
