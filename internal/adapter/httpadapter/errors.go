package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/crime-incident-etl/internal/domain"
	"github.com/couchcryptid/crime-incident-etl/internal/session"
)

// statusFor maps domain and session errors to HTTP status codes.
func statusFor(err error) int {
	var maxBytesErr *http.MaxBytesError
	var schemaErr *domain.SchemaError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &schemaErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, session.ErrNoDataset),
		errors.Is(err, session.ErrNoQuiz),
		errors.Is(err, domain.ErrEmptyDataset):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidPopulation),
		errors.Is(err, domain.ErrInvalidTolerance),
		errors.Is(err, domain.ErrUnknownIndicator),
		errors.Is(err, domain.ErrTableShape):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var schemaErr *domain.SchemaError
	if errors.As(err, &schemaErr) {
		resp.Missing = schemaErr.Missing
	}
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", "error", err)
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
}

// validationMessage flattens validator field errors into one line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// writeJSON marshals v before writing the status, so an unencodable body
// becomes a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n')) //nolint:errcheck // best-effort response body
}
