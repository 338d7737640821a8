// Package apierr maps the service error taxonomy onto HTTP responses.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"ml-orchestrator/core/models"
)

// ErrorMessage is the body of every error response
type ErrorMessage struct {
	Message string `json:"message"`
}

var sentinels = []struct {
	err    error
	status int
}{
	{models.ErrValidation, http.StatusBadRequest},
	{models.ErrUnsupportedFormat, http.StatusBadRequest},
	{models.ErrUnsupportedModelType, http.StatusBadRequest},
	{models.ErrUnauthorized, http.StatusUnauthorized},
	{models.ErrForbidden, http.StatusForbidden},
	{models.ErrNotFound, http.StatusNotFound},
	{models.ErrInternal, http.StatusInternalServerError},
}

// Status returns the HTTP status for err. Unclassified errors are 500.
func Status(err error) int {
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// Message renders err for a client, without a leading sentinel label
func Message(err error) string {
	msg := err.Error()
	for _, s := range sentinels {
		prefix := s.err.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

// Write sends err as a JSON error response
func Write(w http.ResponseWriter, err error) {
	WriteMessage(w, Status(err), Message(err))
}

// WriteMessage sends a JSON error response with an explicit status and message
func WriteMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorMessage{Message: message})
}
