package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ml-orchestrator/core/auth"
	"ml-orchestrator/core/monitoring"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newKeys() *auth.KeyStore {
	return auth.NewKeyStore(map[string]auth.APIKey{
		"admin":  {Key: "admin-key", Permissions: []string{auth.PermissionAdmin}},
		"writer": {Key: "writer-key", TenantID: "tenant_1", Permissions: []string{auth.PermissionRead, auth.PermissionWrite}},
		"reader": {Key: "reader-key", TenantID: "tenant_1", Permissions: []string{auth.PermissionRead}},
		"orphan": {Key: "orphan-key", Permissions: []string{auth.PermissionRead}},
	})
}

func serve(h http.Handler, method, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/things", nil)
	if key != "" {
		req.Header.Set(HeaderAPIKey, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuth(t *testing.T) {
	var seen auth.Principal
	handler := func(perm string) http.Handler {
		return Auth(newKeys(), perm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = PrincipalFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))
	}

	tests := []struct {
		name       string
		perm       string
		method     string
		key        string
		wantStatus int
		wantTenant string
	}{
		{"missing key", auth.PermissionRead, http.MethodGet, "", http.StatusUnauthorized, ""},
		{"unknown key", auth.PermissionRead, http.MethodGet, "guess", http.StatusUnauthorized, ""},
		{"key without tenant", auth.PermissionRead, http.MethodGet, "orphan-key", http.StatusForbidden, ""},
		{"reader reads", auth.PermissionRead, http.MethodGet, "reader-key", http.StatusNoContent, "tenant_1"},
		{"reader posts to a read route", auth.PermissionRead, http.MethodPost, "reader-key", http.StatusNoContent, "tenant_1"},
		{"reader writes", auth.PermissionWrite, http.MethodDelete, "reader-key", http.StatusForbidden, ""},
		{"writer writes", auth.PermissionWrite, http.MethodPost, "writer-key", http.StatusNoContent, "tenant_1"},
		{"admin acts as master", auth.PermissionWrite, http.MethodPost, "admin-key", http.StatusNoContent, auth.MasterTenant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = auth.Principal{}
			rec := serve(handler(tt.perm), tt.method, tt.key)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if seen.TenantID != tt.wantTenant {
				t.Errorf("tenant = %q, want %q", seen.TenantID, tt.wantTenant)
			}
		})
	}
}

func TestRequestIDAndLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := RequestID(zap.New(core))(Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/things", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(HeaderRequestID); got != "req-1" {
		t.Errorf("echoed request id = %q", got)
	}
	entries := logs.FilterMessage("HTTP request").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d request lines, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" || fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("log fields = %v", fields)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things", nil))
	if rec.Header().Get(HeaderRequestID) == "" {
		t.Error("no request id generated")
	}
}

func TestMetricsLabelsByRouteTemplate(t *testing.T) {
	m := monitoring.NewMetrics()
	r := mux.NewRouter()
	r.Use(Metrics(m))
	r.HandleFunc("/models/{model_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/models/abc", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `ml_service_http_requests_total{method="GET",path="/models/{model_id}",status="404"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("exposition lacks %s", want)
	}
}
