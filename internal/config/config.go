// Package config loads service configuration from config.yaml and
// ADVFILTERS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rpattn/advfilters/internal/db"
	"github.com/rpattn/advfilters/internal/log"
)

const (
	EnvPrefix = "ADVFILTERS"

	// DriverMemory keeps filters and entity rows in process memory.
	DriverMemory = "memory"
)

type Config struct {
	Server   ServerConfig
	Database db.Config
	Schema   SchemaConfig
	Filters  FiltersConfig
	Auth     AuthConfig
	Log      LogConfig
}

type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// SchemaConfig says where entity definitions come from. File wins over
// introspection when both are set.
type SchemaConfig struct {
	File             string
	Introspect       bool
	IntrospectSchema string
	AppLabel         string
	Exclude          []string
	// Fixtures seeds the memory driver with entity rows.
	Fixtures string
}

type FiltersConfig struct {
	PageSize          int
	ResultsPageSize   int
	ExportMaxRows     int
	DisabledFields    []string
	OperatorOverrides map[string][]string
	EditByUser        bool
	MinimumInput      int
	QuietMillis       int
}

type AuthConfig struct {
	UserHeader     string
	ElevatedHeader string
}

type LogConfig struct {
	Level string
}

func setDefaults(v *viper.Viper) {
	dbDefaults := db.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.driver", dbDefaults.Driver)
	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.user", dbDefaults.User)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.dbname", dbDefaults.DBName)
	v.SetDefault("database.sslmode", dbDefaults.SSLMode)
	v.SetDefault("database.duckdb_path", "")
	v.SetDefault("database.migrate", dbDefaults.Migrate)

	v.SetDefault("schema.file", "")
	v.SetDefault("schema.introspect", false)
	v.SetDefault("schema.introspect_schema", "")
	v.SetDefault("schema.app_label", "")
	v.SetDefault("schema.exclude", []string{})
	v.SetDefault("schema.fixtures", "")

	v.SetDefault("filters.page_size", 20)
	v.SetDefault("filters.results_page_size", 50)
	v.SetDefault("filters.export_max_rows", 10000)
	v.SetDefault("filters.disabled_fields", []string{})
	v.SetDefault("filters.edit_by_user", true)
	v.SetDefault("filters.minimum_input", 2)
	v.SetDefault("filters.quiet_millis", 300)

	v.SetDefault("auth.user_header", "X-User")
	v.SetDefault("auth.elevated_header", "X-User-Elevated")

	v.SetDefault("log.level", log.LevelInfo)
}

// Load reads config.yaml from configPath (a directory, or a file path ending
// in .yaml/.yml). A missing file is not an error: defaults and environment
// variables apply. Nested keys map to variables such as
// ADVFILTERS_DATABASE_HOST.
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	switch ext := strings.ToLower(filepath.Ext(configPath)); ext {
	case ".yaml", ".yml":
		v.SetConfigFile(configPath)
	default:
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if configPath != "" {
			v.AddConfigPath(configPath)
		}
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		log.Infof("no config.yaml found, using defaults and env vars")
	} else {
		log.Infof("loaded config from %s", v.ConfigFileUsed())
	}

	cfg := Config{
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			CORSOrigins:     v.GetStringSlice("server.cors_origins"),
		},
		Database: db.Config{
			Driver:     strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
			Host:       v.GetString("database.host"),
			Port:       v.GetInt("database.port"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			DBName:     v.GetString("database.dbname"),
			SSLMode:    v.GetString("database.sslmode"),
			DuckDBPath: v.GetString("database.duckdb_path"),
			Migrate:    v.GetBool("database.migrate"),
		},
		Schema: SchemaConfig{
			File:             v.GetString("schema.file"),
			Introspect:       v.GetBool("schema.introspect"),
			IntrospectSchema: v.GetString("schema.introspect_schema"),
			AppLabel:         v.GetString("schema.app_label"),
			Exclude:          v.GetStringSlice("schema.exclude"),
			Fixtures:         v.GetString("schema.fixtures"),
		},
		Filters: FiltersConfig{
			PageSize:          v.GetInt("filters.page_size"),
			ResultsPageSize:   v.GetInt("filters.results_page_size"),
			ExportMaxRows:     v.GetInt("filters.export_max_rows"),
			DisabledFields:    v.GetStringSlice("filters.disabled_fields"),
			OperatorOverrides: v.GetStringMapStringSlice("filters.operator_overrides"),
			EditByUser:        v.GetBool("filters.edit_by_user"),
			MinimumInput:      v.GetInt("filters.minimum_input"),
			QuietMillis:       v.GetInt("filters.quiet_millis"),
		},
		Auth: AuthConfig{
			UserHeader:     v.GetString("auth.user_header"),
			ElevatedHeader: v.GetString("auth.elevated_header"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// UsesSQL reports whether the configured driver is backed by a database.
func (c Config) UsesSQL() bool {
	return c.Database.Driver != DriverMemory
}

// Validate checks settings that would otherwise fail at first use.
func (c Config) Validate() error {
	if c.UsesSQL() {
		if _, err := db.ParseDialect(c.Database.Driver); err != nil {
			return fmt.Errorf("database.driver: %w", err)
		}
	}
	if strings.TrimSpace(c.Schema.File) == "" && !c.Schema.Introspect {
		return errors.New("schema: set schema.file or enable schema.introspect")
	}
	if c.Schema.Introspect && strings.TrimSpace(c.Schema.File) == "" && !c.UsesSQL() {
		return errors.New("schema.introspect requires a postgres or duckdb database")
	}
	if c.Filters.PageSize <= 0 {
		return fmt.Errorf("filters.page_size must be positive, got %d", c.Filters.PageSize)
	}
	if c.Filters.ResultsPageSize <= 0 {
		return fmt.Errorf("filters.results_page_size must be positive, got %d", c.Filters.ResultsPageSize)
	}
	if c.Filters.ExportMaxRows <= 0 {
		return fmt.Errorf("filters.export_max_rows must be positive, got %d", c.Filters.ExportMaxRows)
	}
	return nil
}
