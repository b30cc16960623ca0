package export

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/rpattn/advfilters/internal/auth"
	"github.com/rpattn/advfilters/internal/domain"
)

// ErrorWriter renders a failed export. The API layer passes its own so
// status codes match the rest of the endpoints.
type ErrorWriter func(http.ResponseWriter, error)

type Handler struct {
	service  *Service
	writeErr ErrorWriter
}

func NewHTTPHandler(service *Service, writeErr ErrorWriter) http.Handler {
	if writeErr == nil {
		writeErr = func(w http.ResponseWriter, err error) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
	return &Handler{service: service, writeErr: writeErr}
}

// ServeHTTP handles GET /filters/{id}/export.xlsx.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		h.writeErr(w, err)
		return
	}
	id, err := uuid.Parse(strings.TrimSpace(mux.Vars(r)["id"]))
	if err != nil {
		h.writeErr(w, fmt.Errorf("%w: invalid filter id", domain.ErrValidation))
		return
	}

	var buf bytes.Buffer
	summary, err := h.service.Export(r.Context(), actor, id, &buf)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", summary.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Export-Rows", strconv.Itoa(summary.Rows))
	if summary.Truncated {
		w.Header().Set("X-Export-Truncated", "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
