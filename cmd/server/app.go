package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpattn/advfilters/internal/api"
	"github.com/rpattn/advfilters/internal/choices"
	"github.com/rpattn/advfilters/internal/compiler"
	"github.com/rpattn/advfilters/internal/config"
	"github.com/rpattn/advfilters/internal/datasource"
	"github.com/rpattn/advfilters/internal/db"
	"github.com/rpattn/advfilters/internal/export"
	"github.com/rpattn/advfilters/internal/filters"
	"github.com/rpattn/advfilters/internal/log"
	"github.com/rpattn/advfilters/internal/operators"
	"github.com/rpattn/advfilters/internal/repository"
	"github.com/rpattn/advfilters/internal/schema"
)

// internalTables never become entity types during introspection.
var internalTables = []string{"advanced_filters", "advanced_filter_users", "schema_migrations"}

type app struct {
	conn     *db.Connection
	repo     repository.FilterSpecRepository
	resolver *schema.Resolver
	catalog  *operators.Catalog
	server   *api.Server
}

// openDatabase connects and migrates when the driver is SQL backed. It
// returns nil for the memory driver.
func openDatabase(ctx context.Context, cfg config.Config) (*db.Connection, error) {
	if !cfg.UsesSQL() {
		return nil, nil
	}
	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := db.RunMigrations(ctx, conn); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func loadRegistry(ctx context.Context, cfg config.Config, conn *db.Connection) (*schema.StaticRegistry, error) {
	if file := strings.TrimSpace(cfg.Schema.File); file != "" {
		return schema.LoadRegistryFile(file)
	}
	if conn == nil {
		return nil, fmt.Errorf("schema introspection needs a database connection")
	}
	schemas, err := schema.Introspect(ctx, conn.DB, conn.Dialect, schema.IntrospectOptions{
		Schema:   cfg.Schema.IntrospectSchema,
		AppLabel: cfg.Schema.AppLabel,
		Exclude:  append(append([]string{}, internalTables...), cfg.Schema.Exclude...),
	})
	if err != nil {
		return nil, err
	}
	log.Infof("introspected %d entity types", len(schemas))
	return schema.NewStaticRegistry(schemas...)
}

func newCatalog(cfg config.Config) (*operators.Catalog, error) {
	disabled, err := operators.NewDisabledFields(cfg.Filters.DisabledFields)
	if err != nil {
		return nil, err
	}
	return operators.NewCatalog(cfg.Filters.OperatorOverrides, disabled)
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	conn, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{conn: conn}
	if err := a.wire(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, cfg config.Config) error {
	reg, err := loadRegistry(ctx, cfg, a.conn)
	if err != nil {
		return err
	}
	a.resolver = schema.NewResolver(reg)

	a.catalog, err = newCatalog(cfg)
	if err != nil {
		return err
	}

	var source datasource.Source
	if a.conn != nil {
		source = datasource.NewSQLSource(a.conn.DB, a.conn.Dialect, a.resolver)
		a.repo = repository.NewFilterSpecRepository(a.conn.DB, a.conn.Dialect)
	} else {
		mem := datasource.NewMemorySource(a.resolver)
		if cfg.Schema.Fixtures != "" {
			if err := mem.LoadFixturesFile(cfg.Schema.Fixtures); err != nil {
				return err
			}
		}
		source = mem
		a.repo = repository.NewMemoryFilterSpecRepository()
	}

	c := compiler.New(a.resolver, a.catalog)
	filterSvc := filters.NewService(a.repo, c, a.resolver, source, filters.Options{
		EditByUser:      cfg.Filters.EditByUser,
		ResultsPageSize: cfg.Filters.ResultsPageSize,
	})
	a.server = api.NewServer(api.Dependencies{
		Resolver: a.resolver,
		Catalog:  a.catalog,
		Choices: choices.NewProvider(a.resolver, source, choices.Options{
			PageSize: cfg.Filters.PageSize,
			Disabled: a.catalog.Disabled(),
		}),
		Compiler: c,
		Filters:  filterSvc,
		Export:   export.NewService(filterSvc, export.WithMaxRows(cfg.Filters.ExportMaxRows)),
		Settings: api.Settings{
			MinimumInput: cfg.Filters.MinimumInput,
			QuietMillis:  cfg.Filters.QuietMillis,
			PageSize:     cfg.Filters.PageSize,
		},
	})
	return nil
}

func (a *app) Close() {
	if a.conn != nil {
		a.conn.Close()
	}
}
