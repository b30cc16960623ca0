// Package api exposes the choice lookups and the saved filter store over
// JSON HTTP.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rpattn/advfilters/internal/choices"
	"github.com/rpattn/advfilters/internal/compiler"
	"github.com/rpattn/advfilters/internal/export"
	"github.com/rpattn/advfilters/internal/filters"
	"github.com/rpattn/advfilters/internal/operators"
	"github.com/rpattn/advfilters/internal/schema"
)

// Settings are handed to the filter form widget.
type Settings struct {
	MinimumInput int `json:"minimum_input"`
	QuietMillis  int `json:"quiet_millis"`
	PageSize     int `json:"page_size"`
}

// DefaultSettings match the select widget defaults of the filter form.
func DefaultSettings() Settings {
	return Settings{MinimumInput: 2, QuietMillis: 300, PageSize: choices.DefaultPageSize}
}

type Dependencies struct {
	Resolver *schema.Resolver
	Catalog  *operators.Catalog
	Choices  *choices.Provider
	Compiler *compiler.Compiler
	Filters  *filters.Service
	Export   *export.Service
	Settings Settings
}

type Server struct {
	resolver *schema.Resolver
	catalog  *operators.Catalog
	choices  *choices.Provider
	compiler *compiler.Compiler
	filters  *filters.Service
	export   *export.Service
	settings Settings
}

func NewServer(deps Dependencies) *Server {
	return &Server{
		resolver: deps.Resolver,
		catalog:  deps.Catalog,
		choices:  deps.Choices,
		compiler: deps.Compiler,
		filters:  deps.Filters,
		export:   deps.Export,
		settings: deps.Settings,
	}
}

// Router registers every route. Fixed segments are registered before the
// {id} routes they would otherwise collide with.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	for _, tmpl := range []string{"/field_choices/{entity}/{field}", "/field_choices/{entity}/{field}/"} {
		r.HandleFunc(tmpl, s.handleFieldChoices).Methods(http.MethodGet)
	}
	r.PathPrefix("/field_choices").HandlerFunc(missingArgs("GetFieldChoices")).Methods(http.MethodGet)

	for _, tmpl := range []string{"/operator_choices/{entity}/{field}", "/operator_choices/{entity}/{field}/"} {
		r.HandleFunc(tmpl, s.handleOperatorChoices).Methods(http.MethodGet)
	}
	r.PathPrefix("/operator_choices").HandlerFunc(missingArgs("GetOperatorChoices")).Methods(http.MethodGet)

	r.HandleFunc("/settings", s.handleSettings).Methods(http.MethodGet)

	r.HandleFunc("/filters", s.handleListFilters).Methods(http.MethodGet)
	r.HandleFunc("/filters", s.handleCreateFilter).Methods(http.MethodPost)
	r.HandleFunc("/filters/delete", s.handleBulkDelete).Methods(http.MethodPost)
	r.HandleFunc("/filters/compile", s.handleCompile).Methods(http.MethodPost)
	r.HandleFunc("/filters/{id}", s.handleGetFilter).Methods(http.MethodGet)
	r.HandleFunc("/filters/{id}", s.handleUpdateFilter).Methods(http.MethodPatch)
	r.HandleFunc("/filters/{id}", s.handleDeleteFilter).Methods(http.MethodDelete)
	r.HandleFunc("/filters/{id}/results", s.handleResults).Methods(http.MethodGet)
	if s.export != nil {
		r.Handle("/filters/{id}/export.xlsx", export.NewHTTPHandler(s.export, writeError)).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "not found")
	})
	return r
}
