package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ml-orchestrator/api/rest/apierr"
	"ml-orchestrator/api/rest/middleware"
	"ml-orchestrator/core/logging"
	"ml-orchestrator/core/models"
	"ml-orchestrator/storage"

	"go.uber.org/zap"
)

var errTenantMismatch = fmt.Errorf("%w: Tenant ID mismatch", models.ErrForbidden)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code; 5xx responses are logged with the request logger
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if status := apierr.Status(err); status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("Request failed", zap.Error(err))
	}
	apierr.Write(w, err)
}

// writeLookupError reports a missing resource with a fixed message and anything else as is
func writeLookupError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	if errors.Is(err, models.ErrNotFound) {
		apierr.WriteMessage(w, http.StatusNotFound, notFound)
		return
	}
	writeError(w, r, err)
}

// tenantOf returns the tenant the authenticated key acts as
func tenantOf(r *http.Request) (string, error) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok || p.TenantID == "" {
		return "", fmt.Errorf("%w: API key required", models.ErrUnauthorized)
	}
	return p.TenantID, nil
}

// bodyTenant checks the tenant named in a request body against the caller's tenant
func bodyTenant(r *http.Request, claimed string) (string, error) {
	tenant, err := tenantOf(r)
	if err != nil {
		return "", err
	}
	if claimed == "" {
		return "", models.Invalid("tenant_id", "is required")
	}
	if claimed != tenant {
		return "", errTenantMismatch
	}
	return tenant, nil
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		return models.Invalid("body", "invalid JSON: %v", err)
	}
	return nil
}

// deleteResult renders a deletion outcome. A removal that failed part way is reported
// with success=false rather than as an error status.
func deleteResult(outcome storage.DeleteOutcome, kind string) (bool, string) {
	if outcome == storage.OutcomeDeleted {
		return true, strings.ToUpper(kind[:1]) + kind[1:] + " deleted successfully"
	}
	return false, "Failed to delete " + kind
}
