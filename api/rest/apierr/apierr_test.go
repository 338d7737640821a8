package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ml-orchestrator/core/models"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.Invalid("tenant_id", "is required"), http.StatusBadRequest},
		{fmt.Errorf("%w: .json", models.ErrUnsupportedFormat), http.StatusBadRequest},
		{fmt.Errorf("%w: clustering", models.ErrUnsupportedModelType), http.StatusBadRequest},
		{fmt.Errorf("%w: API key required", models.ErrUnauthorized), http.StatusUnauthorized},
		{fmt.Errorf("%w: Tenant ID mismatch", models.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("model 42: %w", models.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: disk full", models.ErrInternal), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := Status(tt.err); got != tt.want {
			t.Errorf("Status(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMessageDropsSentinelLabel(t *testing.T) {
	if got := Message(fmt.Errorf("%w: Tenant ID mismatch", models.ErrForbidden)); got != "Tenant ID mismatch" {
		t.Errorf("Message = %q", got)
	}
	if got := Message(fmt.Errorf("model 42: %w", models.ErrNotFound)); got != "model 42: not found" {
		t.Errorf("Message = %q", got)
	}
	if got := Message(models.Invalid("limit", "must be a positive integer")); got != "limit: must be a positive integer" {
		t.Errorf("Message = %q", got)
	}
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, fmt.Errorf("%w: invalid API key", models.ErrUnauthorized))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body ErrorMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Message != "invalid API key" {
		t.Errorf("message = %q", body.Message)
	}
}
