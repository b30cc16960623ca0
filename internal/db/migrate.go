package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/rpattn/advfilters/internal/log"
)

//go:embed migrations
var migrationFS embed.FS

// RunMigrations applies the embedded migrations for the connection's dialect.
func RunMigrations(ctx context.Context, conn *Connection) error {
	switch conn.Dialect {
	case DialectPostgres:
		m, err := newPostgresMigrator(conn)
		if err != nil {
			return err
		}
		defer closeMigrator(m)
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		version, dirty, _ := m.Version()
		log.Infof("database schema at version %d (dirty=%t)", version, dirty)
		return nil
	case DialectDuckDB:
		return runDuckDBMigrations(ctx, conn)
	}
	return fmt.Errorf("no migrations for dialect %q", conn.Dialect)
}

// RollbackMigrations reverts every PostgreSQL migration.
func RollbackMigrations(conn *Connection) error {
	if conn.Dialect != DialectPostgres {
		return fmt.Errorf("rollback is only supported for %s", DialectPostgres)
	}
	m, err := newPostgresMigrator(conn)
	if err != nil {
		return err
	}
	defer closeMigrator(m)
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return nil
}

// newPostgresMigrator works on its own database handle because closing the
// migrator closes the handle it was given.
func newPostgresMigrator(conn *Connection) (*migrate.Migrate, error) {
	if conn.Pool == nil {
		return nil, errors.New("postgres migrations require a connection pool")
	}
	source, err := iofs.New(migrationFS, "migrations/postgres")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	sqlDB := stdlib.OpenDB(*conn.Pool.Config().ConnConfig)
	driver, err := migratepgx.WithInstance(sqlDB, &migratepgx.Config{})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

func closeMigrator(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil || dbErr != nil {
		log.Warnf("failed to close migrator: source=%v database=%v", srcErr, dbErr)
	}
}

// runDuckDBMigrations executes every .up.sql file in name order. The files
// are written to be idempotent.
func runDuckDBMigrations(ctx context.Context, conn *Connection) error {
	const dir = "migrations/duckdb"
	entries, err := fs.ReadDir(migrationFS, dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		stmt, err := fs.ReadFile(migrationFS, path.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}
		if _, err := conn.DB.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", entry.Name(), err)
		}
		log.Infof("executed migration %s", entry.Name())
	}

	return nil
}
