// Package api provides HTTP handlers for the Codelab API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/blrlabs/codelab/internal/curriculum"
	"github.com/blrlabs/codelab/internal/sandbox"
	"github.com/blrlabs/codelab/internal/tutor"
)

// maxRequestBodySize bounds request bodies; transcripts are text, 1MB is
// generous.
const maxRequestBodySize = 1 << 20

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a bounded JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusFor maps engine failures to HTTP statuses. External collaborator
// outages are 502 so clients can show a retry-able notice.
func statusFor(err error) int {
	var agentErr *tutor.ErrUnavailable
	var sandboxErr *sandbox.ErrUnavailable
	switch {
	case errors.As(err, &agentErr), errors.As(err, &sandboxErr):
		return http.StatusBadGateway
	case errors.Is(err, curriculum.ErrUnknownGoal):
		return http.StatusNotFound
	case errors.Is(err, curriculum.ErrUnknownModule):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
