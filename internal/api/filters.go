package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/rpattn/advfilters/internal/auth"
	"github.com/rpattn/advfilters/internal/datasource"
	"github.com/rpattn/advfilters/internal/domain"
	"github.com/rpattn/advfilters/internal/filters"
)

type listFiltersResponse struct {
	Results []domain.FilterSpec `json:"results"`
}

type bulkDeletePayload struct {
	IDs []string `json:"ids"`
}

type bulkDeleteResponse struct {
	domain.DeleteResult
	Messages []string `json:"messages"`
}

type compilePayload struct {
	EntityType string             `json:"entity_type"`
	Criteria   domain.CriteriaSet `json:"criteria"`
}

type compileResponse struct {
	EntityType string           `json:"entity_type"`
	Predicate  domain.Predicate `json:"predicate"`
}

type resultsResponse struct {
	datasource.ResultSet
	Page int `json:"page"`
}

func invalidPayload(err error) error {
	return fmt.Errorf("%w: invalid payload: %v", domain.ErrValidation, err)
}

func filterID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(mux.Vars(r)["id"]))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid filter id", domain.ErrValidation)
	}
	return id, nil
}

// actorAndID is the common prelude of the per-filter handlers.
func actorAndID(w http.ResponseWriter, r *http.Request) (auth.Actor, uuid.UUID, bool) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		writeError(w, err)
		return auth.Actor{}, uuid.Nil, false
	}
	id, err := filterID(r)
	if err != nil {
		writeError(w, err)
		return auth.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

func (s *Server) handleListFilters(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	specs, err := s.filters.ListVisible(r.Context(), actor, r.URL.Query().Get("entity_type"))
	if err != nil {
		writeError(w, err)
		return
	}
	if specs == nil {
		specs = []domain.FilterSpec{}
	}
	writeJSON(w, http.StatusOK, listFiltersResponse{Results: specs})
}

func (s *Server) handleCreateFilter(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var in filters.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	spec, err := s.filters.Create(r.Context(), actor, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, spec)
}

func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	spec, err := s.filters.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

func (s *Server) handleUpdateFilter(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var patch domain.FilterSpecPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	spec, err := s.filters.Update(r.Context(), actor, id, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

func (s *Server) handleDeleteFilter(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	if err := s.filters.DeleteOne(r.Context(), actor, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var payload bulkDeletePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	ids := make([]uuid.UUID, 0, len(payload.IDs))
	for _, raw := range payload.IDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid filter id %q", domain.ErrValidation, raw))
			return
		}
		ids = append(ids, id)
	}
	result, err := s.filters.Delete(r.Context(), actor, ids)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkDeleteResponse{DeleteResult: result, Messages: result.Messages()})
}

// handleCompile validates criteria without saving them.
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var payload compilePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	entityType := payload.EntityType
	if entityType == "" {
		entityType = payload.Criteria.Entity
	}
	es, err := s.resolver.Entity(entityType)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := s.compiler.CompileFor(es.Type, payload.Criteria)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %w", domain.ErrValidation, err))
		return
	}
	writeJSON(w, http.StatusOK, compileResponse{EntityType: es.Type, Predicate: p})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	page, ok := parsePage(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, pageNotInteger)
		return
	}
	rs, err := s.filters.Apply(r.Context(), actor, id, page)
	if err != nil {
		writeError(w, err)
		return
	}
	if rs.Rows == nil {
		rs.Rows = [][]any{}
	}
	writeJSON(w, http.StatusOK, resultsResponse{ResultSet: rs, Page: page})
}
