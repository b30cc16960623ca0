package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rpattn/advfilters/internal/auth"
	"github.com/rpattn/advfilters/internal/compiler"
	"github.com/rpattn/advfilters/internal/domain"
	"github.com/rpattn/advfilters/internal/log"
)

type errorBody struct {
	Error  string           `json:"error"`
	Errors []criterionError `json:"errors,omitempty"`
}

type criterionError struct {
	Location string `json:"location"`
	Field    string `json:"field,omitempty"`
	Operator string `json:"operator,omitempty"`
	Message  string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrRetryable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsCompileError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError renders err with the status from statusFor. Path and compile
// messages are shown verbatim; internal failures are not.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}

	var pathErr *domain.PathError
	if errors.As(err, &pathErr) && !errors.Is(err, domain.ErrValidation) {
		body.Error = pathErr.Message
	}
	var compileErrs compiler.Errors
	if errors.As(err, &compileErrs) {
		for _, ce := range compileErrs {
			msg := ce.Err.Error()
			var pe *domain.PathError
			if errors.As(ce.Err, &pe) {
				msg = pe.Message
			}
			body.Errors = append(body.Errors, criterionError{
				Location: ce.Location,
				Field:    ce.Field,
				Operator: ce.Operator,
				Message:  msg,
			})
		}
	}

	switch status {
	case http.StatusInternalServerError:
		log.Errorf("request failed: %v", err)
		body = errorBody{Error: http.StatusText(status)}
	case http.StatusServiceUnavailable:
		log.Warnf("storage unavailable: %v", err)
		w.Header().Set("Retry-After", "1")
		body = errorBody{Error: domain.ErrRetryable.Error()}
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return invalidPayload(err)
	}
	return nil
}
