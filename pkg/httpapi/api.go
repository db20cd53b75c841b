// Package httpapi exposes the authentication and configuration surface over
// HTTP: local login and token validation, identity and permission
// introspection, and the administrative method-enablement endpoints. Every
// route runs behind the dual authentication gate.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gatewise/gatewise-core/pkg/auth"
	"github.com/gatewise/gatewise-core/pkg/catalog"
	gwerr "github.com/gatewise/gatewise-core/pkg/errors"
	"github.com/gatewise/gatewise-core/pkg/settings"
)

// HealthChecker reports whether a backing dependency is reachable. The
// catalog's Postgres store implements it; the in-memory store has nothing
// to check and may be omitted.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// API aggregates the handlers and their collaborators.
type API struct {
	codec    *auth.Codec
	gate     *auth.Gate
	resolver *auth.Resolver
	guard    *settings.Guard
	users    catalog.UserStore
	health   HealthChecker
	logger   *slog.Logger
	limiter  *loginLimiter
}

// New assembles the API. health may be nil when no backing dependency needs
// probing; a nil logger falls back to [slog.Default].
func New(codec *auth.Codec, gate *auth.Gate, resolver *auth.Resolver, guard *settings.Guard, users catalog.UserStore, health HealthChecker, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		codec:    codec,
		gate:     gate,
		resolver: resolver,
		guard:    guard,
		users:    users,
		health:   health,
		logger:   logger,
		limiter:  newLoginLimiter(defaultLoginRate, defaultLoginBurst),
	}
}

// Router builds the route tree. The gate middleware runs on every route;
// routes that require an authenticated identity or a role additionally pass
// through [requireIdentity] or [requireRole].
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(a.gate.Middleware())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/local/login", a.handleLogin)
		r.Post("/local/validate", a.handleValidate)

		r.Group(func(r chi.Router) {
			r.Use(requireIdentity)
			r.Get("/me", a.handleMe)
			r.Get("/permissions", a.handlePermissions)
		})
	})

	r.Route("/config/auth", func(r chi.Router) {
		r.Get("/status", a.handleAuthStatus)

		r.Group(func(r chi.Router) {
			r.Use(requireIdentity)
			r.Use(requireRole(auth.RoleAdmin))
			r.Put("/methods", a.handleUpdateMethods)
		})
	})

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// requireIdentity rejects unauthenticated requests with 401.
func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.IdentityFromContext(r.Context()); !ok {
			renderError(w, gwerr.Unauthorized("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireRole rejects authenticated requests lacking the role authority
// with 403. Must run after [requireIdentity].
func requireRole(authority string) func(http.Handler) http.Handler {
	role := strings.TrimPrefix(authority, auth.RoleAuthorityPrefix)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.MustIdentityFromContext(r.Context())
			if !identity.HasRole(role) {
				renderError(w, gwerr.Forbidden("insufficient privileges"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

// renderJSON writes a JSON response with the given status.
func renderJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorResponse is the wire shape of every error this API returns.
type errorResponse struct {
	Code    gwerr.Code     `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// renderError maps a structured error to its HTTP status and renders it.
func renderError(w http.ResponseWriter, err error) {
	gwe := gwerr.FromError(err)
	renderJSON(w, gwe.HTTPStatus(), errorResponse{
		Code:    gwe.Code,
		Message: gwe.Message,
		Details: gwe.Details,
	})
}

// handleHealth reports liveness, probing the backing store when one is
// wired.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		if err := a.health.Health(r.Context()); err != nil {
			renderError(w, err)
			return
		}
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
