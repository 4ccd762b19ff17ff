package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mind-engage/masterclass/internal/auth"
	"github.com/mind-engage/masterclass/internal/exam"
)

const maxJSONBody = 1 << 20

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields []exam.FieldError `json:"fields,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, exam.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, exam.ErrUnavailable):
		return http.StatusForbidden
	case errors.Is(err, exam.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, exam.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to status codes. Internal errors are logged
// and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	if status == http.StatusInternalServerError {
		LoggerFrom(r.Context()).ErrorContext(r.Context(), "request failed", "err", err)
		body.Error = "internal error, please retry"
	}
	var ve *exam.ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Fields
	}
	respondJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// decodeJSON reads one JSON value from a size-capped body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", exam.ErrValidation)
		}
		return fmt.Errorf("%w: bad json: %v", exam.ErrValidation, err)
	}
	return nil
}
