package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/rpattn/advfilters/internal/choices"
	"github.com/rpattn/advfilters/internal/domain"
)

const pageNotInteger = "That page number is not an integer"

type operatorChoicesResponse struct {
	Results []domain.OperatorChoice `json:"results"`
}

// pathArgs returns the entity type and the field path of a choices request.
// Paths may use Django-style "__" between relation segments.
func pathArgs(r *http.Request) (string, string) {
	vars := mux.Vars(r)
	field := strings.ReplaceAll(strings.TrimSpace(vars["field"]), "__", ".")
	return strings.TrimSpace(vars["entity"]), field
}

func missingArgs(view string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusBadRequest, view+" view requires 2 arguments")
	}
}

// parsePage reads a 1-indexed page number; absent means the first page.
func parsePage(r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("page"))
	if raw == "" {
		return 1, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return page, true
}

func (s *Server) handleFieldChoices(w http.ResponseWriter, r *http.Request) {
	entityType, path := pathArgs(r)
	page, ok := parsePage(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, pageNotInteger)
		return
	}
	result, err := s.choices.Lookup(r.Context(), entityType, path, r.URL.Query().Get("search"), page)
	if err != nil {
		writeError(w, err)
		return
	}
	if result.Items == nil {
		result.Items = []choices.Item{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleOperatorChoices(w http.ResponseWriter, r *http.Request) {
	entityType, path := pathArgs(r)
	rf, err := s.resolver.Resolve(entityType, path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, operatorChoicesResponse{Results: s.catalog.ForField(rf.Field)})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings)
}
