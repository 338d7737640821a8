// Package middleware holds the HTTP middleware chain: request ids, request logging,
// Prometheus instrumentation and API key authentication.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ml-orchestrator/api/rest/apierr"
	"ml-orchestrator/core/auth"
	"ml-orchestrator/core/logging"
	"ml-orchestrator/core/models"
	"ml-orchestrator/core/monitoring"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	// HeaderRequestID carries the request id in both directions
	HeaderRequestID = "X-Request-ID"
	// HeaderAPIKey carries the caller's API key
	HeaderAPIKey = "X-API-Key"
)

type principalKey struct{}

// statusRecorder captures the status code written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// RequestID adds a unique request ID to each request and a request-scoped logger to its context
func RequestID(base *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(HeaderRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, requestID)

			log := base.With(zap.String("request_id", requestID))
			next.ServeHTTP(w, r.WithContext(logging.WithContext(r.Context(), log)))
		})
	}
}

// Logging writes one log line per request
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		logging.FromContext(r.Context()).Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.code()),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

// Metrics records request counts and durations labelled by route template
func Metrics(m *monitoring.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			path := "unmatched"
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					path = tpl
				}
			}
			m.ObserveRequest(r.Method, path, strconv.Itoa(rec.code()), time.Since(start))
		})
	}
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// Auth resolves the X-API-Key header to a principal holding perm
func Auth(keys *auth.KeyStore, perm string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logging.FromContext(r.Context())

			principal, err := keys.Resolve(r.Header.Get(HeaderAPIKey))
			if err != nil {
				log.Warn("Rejected API key", zap.Error(err))
				apierr.Write(w, err)
				return
			}

			if !principal.Has(perm) {
				log.Warn("API key lacks permission", zap.String("key", principal.Name), zap.String("permission", perm))
				apierr.Write(w, fmt.Errorf("%w: API key lacks %s permission", models.ErrForbidden, perm))
				return
			}

			log = log.With(zap.String("tenant_id", principal.TenantID))
			ctx := WithPrincipal(r.Context(), principal)
			ctx = logging.WithContext(ctx, log)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the authenticated caller
func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}

// WithPrincipal attaches the authenticated caller to ctx
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}
