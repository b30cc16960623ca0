package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rpattn/advfilters/internal/config"
	"github.com/rpattn/advfilters/internal/db"
	"github.com/rpattn/advfilters/internal/schema/schematest"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.yaml")
	fixturesPath := filepath.Join(dir, "rows.yaml")
	if err := os.WriteFile(schemaPath, schematest.SchemaYAML, 0o600); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	if err := os.WriteFile(fixturesPath, schematest.RowsYAML, 0o600); err != nil {
		t.Fatalf("write fixtures: %v", err)
	}
	return config.Config{
		Database: db.Config{Driver: config.DriverMemory},
		Schema:   config.SchemaConfig{File: schemaPath, Fixtures: fixturesPath},
		Filters: config.FiltersConfig{
			PageSize:        20,
			ResultsPageSize: 50,
			ExportMaxRows:   100,
			DisabledFields:  []string{"email"},
			EditByUser:      true,
			MinimumInput:    2,
			QuietMillis:     300,
		},
	}
}

func TestNewApp_MemoryDriver(t *testing.T) {
	a, err := newApp(context.Background(), memoryConfig(t))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	router := a.server.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/field_choices/customers.Client/first_name?search=ci", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Cindy") {
		t.Fatalf("fixtures were not loaded: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/operator_choices/customers.Client/email", nil))
	if rec.Body.String() != "{\"results\":[]}\n" {
		t.Fatalf("disabled fields must have no operators, got %s", rec.Body.String())
	}
}

func TestNewApp_MissingSchemaFile(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Schema.File = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := newApp(context.Background(), cfg); err == nil {
		t.Fatalf("expected an error for a missing schema file")
	}
}

func TestPrintOperators(t *testing.T) {
	catalog, err := newCatalog(config.Config{Filters: config.FiltersConfig{
		OperatorOverrides: map[string][]string{"integer": {"lt", "gt"}},
	}})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	cmd := NewOperatorsCommand(&rootOptions{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := printOperators(cmd, catalog); err != nil {
		t.Fatalf("print: %v", err)
	}
	text := out.String()
	for _, want := range []string{"boolean", "isnull, istrue, isfalse", "lt, gt\n"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}
