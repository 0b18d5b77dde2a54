package api

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"sejf-plikow/internal/access"
	"sejf-plikow/internal/auth"
	"sejf-plikow/internal/models"
	"sejf-plikow/internal/service"
)

type contextKey string

const userContextKey = contextKey("user")

const (
	accessCookieName  = "vault_token"
	pendingCookieName = "vault_mfa"
)

// AuthMiddleware resolves the access-token cookie into claims. Tokens that
// are still MFA-pending are rejected the same as missing ones.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(accessCookieName)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		claims, err := auth.VerifyAccessToken(cookie.Value, s.config.JWT.Secret)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireResourceAccess gates a route through the static permission
// table. Denials are audited so attempts on privileged routes leave a
// trace. Runs after AuthMiddleware.
func (s *Server) RequireResourceAccess(resource access.Resource, action access.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r.Context())
			if claims == nil {
				respondError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if err := access.RequireResourceAccess(claims.Role, resource, action); err != nil {
				s.recordAccessDenied(r, claims, "resource", map[string]string{
					"resource": string(resource),
					"action":   string(action),
				})
				respondError(w, http.StatusForbidden, "not permitted")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// recordAccessDenied audits a rejected role or resource gate. Ownership
// denials are audited inside the file pipeline.
func (s *Server) recordAccessDenied(r *http.Request, claims *auth.AppClaims, gate string, detail map[string]string) {
	if detail == nil {
		detail = map[string]string{}
	}
	detail["gate"] = gate
	s.recorder.Record(r.Context(), &models.AuditEvent{
		ActorID:    &claims.UserID,
		Username:   claims.Username,
		Role:       claims.Role,
		Action:     models.ActionAccessDenied,
		TargetID:   r.URL.Path,
		TargetType: "route",
		Outcome:    models.OutcomeDenied,
		Detail:     detail,
		ClientIP:   r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})
}

func GetUserFromContext(ctx context.Context) *auth.AppClaims {
	if claims, ok := ctx.Value(userContextKey).(*auth.AppClaims); ok {
		return claims
	}
	return nil
}

func requestMeta(r *http.Request) service.RequestMeta {
	return service.RequestMeta{
		ClientIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by method and status code.",
		},
		[]string{"method", "code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// Hijack keeps the websocket upgrade working under the metrics wrapper.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// RequestLogger logs one line per request with status and latency.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}

func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
