package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/rpattn/advfilters/internal/log"
)

// Dialect names the SQL flavour spoken by a connection.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectDuckDB   Dialect = "duckdb"
)

// ParseDialect normalises a driver name from configuration.
func ParseDialect(raw string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(raw))) {
	case DialectPostgres, "postgresql", "pgx":
		return DialectPostgres, nil
	case DialectDuckDB:
		return DialectDuckDB, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", raw)
}

// Config holds database configuration
type Config struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// DuckDBPath is the database file for the duckdb driver; empty means in-memory.
	DuckDBPath string
	// Migrate runs the embedded migrations at startup.
	Migrate bool
}

// DSN renders the PostgreSQL connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Connection wraps a database handle. Pool is only set for PostgreSQL; DB is
// always usable through database/sql.
type Connection struct {
	Pool    *pgxpool.Pool
	DB      *sql.DB
	Dialect Dialect
}

// Open connects using the configured driver.
func Open(ctx context.Context, config Config) (*Connection, error) {
	dialect, err := ParseDialect(config.Driver)
	if err != nil {
		return nil, err
	}
	if dialect == DialectDuckDB {
		return OpenDuckDB(ctx, config.DuckDBPath)
	}
	return NewConnection(ctx, config)
}

// NewConnection creates a new PostgreSQL connection
func NewConnection(ctx context.Context, config Config) (*Connection, error) {
	poolConfig, err := pgxpool.ParseConfig(config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 5
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Minute * 30
	poolConfig.MaxConnIdleTime = time.Minute * 5
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Connection{
		Pool:    pool,
		DB:      stdlib.OpenDBFromPool(pool),
		Dialect: DialectPostgres,
	}, nil
}

// Close closes the database handles
func (c *Connection) Close() {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			log.Warnf("failed to close database handle: %v", err)
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WithTx executes a function within a database transaction
func (c *Connection) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return WithTx(ctx, c.DB, nil, fn)
}

// WithTx runs fn inside a transaction on db, rolling back on error or panic.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if err := tx.Rollback(); err != nil {
				log.Errorf("failed to rollback transaction: %v", err)
			}
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DefaultConfig returns a default database configuration
func DefaultConfig() Config {
	return Config{
		Driver:   string(DialectPostgres),
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "admin",
		DBName:   "advanced_filters",
		SSLMode:  "disable",
		Migrate:  true,
	}
}
