package db

import (
	"context"
	"database/sql"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/pkg/errors"
)

// OpenDuckDB opens a DuckDB database at path, or an in-memory one when path
// is empty.
func OpenDuckDB(ctx context.Context, path string) (conn *Connection, err error) {

	db, err := sql.Open("duckdb", path)
	if err != nil {
		err = errors.Wrapf(err, "failed to open duckdb at %q", path)
		return
	}

	// an in-memory database lives and dies with its only connection
	if path == "" {
		db.SetMaxOpenConns(1)
	}

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		err = errors.Wrapf(err, "failed to ping duckdb")
		return
	}

	conn = &Connection{DB: db, Dialect: DialectDuckDB}
	return
}
