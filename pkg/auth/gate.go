package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	gwerr "github.com/gatewise/gatewise-core/pkg/errors"
	"github.com/gatewise/gatewise-core/pkg/settings"
)

// tracerName is the OpenTelemetry instrumentation scope name for auth spans.
const tracerName = "github.com/gatewise/gatewise-core/pkg/auth"

// bearerPrefix is the scheme prefix expected on the Authorization header.
const bearerPrefix = "Bearer "

// ExternalVerifier is the federated verification pipeline: it fully
// verifies an external token (signature, issuer, audience, expiry) and
// returns its claims. The gate trusts whatever it returns.
type ExternalVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// Gate decision outcomes, used as the metrics outcome label.
const (
	outcomeAnonymous       = "anonymous"
	outcomeAuthenticated   = "authenticated"
	outcomeUnauthenticated = "unauthenticated"
	outcomeMethodDisabled  = "method_disabled"
	outcomeAlreadyResolved = "already_resolved"
)

// GateMetrics holds the Prometheus instruments for gate decisions.
type GateMetrics struct {
	decisions *prometheus.CounterVec
}

// NewGateMetrics creates and registers the gate's metrics. Pass
// [prometheus.DefaultRegisterer] outside of tests.
func NewGateMetrics(reg prometheus.Registerer) *GateMetrics {
	m := &GateMetrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatewise",
			Subsystem: "auth",
			Name:      "gate_decisions_total",
			Help:      "Authentication gate decisions by token source and outcome.",
		}, []string{"source", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.decisions)
	}
	return m
}

func (m *GateMetrics) observe(source, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(source, outcome).Inc()
}

// Gate is the per-request authentication orchestrator. It reads the bearer
// token, classifies it, checks the method-enablement guard, and either
// installs an identity on the request context, leaves the request
// unauthenticated, or rejects it outright when the token's method is
// administratively disabled.
//
// The gate makes one decision per request and holds no cross-request state
// beyond its collaborators.
type Gate struct {
	classifier *Classifier
	codec      *Codec
	converter  *Converter
	guard      *settings.Guard
	external   ExternalVerifier
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *GateMetrics
}

// NewGate assembles a Gate. external may be nil, in which case external
// tokens pass through unauthenticated; metrics may be nil to disable
// instrumentation; a nil logger falls back to [slog.Default].
func NewGate(classifier *Classifier, codec *Codec, converter *Converter, guard *settings.Guard, external ExternalVerifier, metrics *GateMetrics, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		classifier: classifier,
		codec:      codec,
		converter:  converter,
		guard:      guard,
		external:   external,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		metrics:    metrics,
	}
}

// Middleware returns the HTTP middleware form of the gate. The middleware
// never terminates a request except for the disabled-method rejection; an
// invalid or missing token simply leaves the request unauthenticated for a
// downstream authorization layer to judge.
func (g *Gate) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := g.tracer.Start(r.Context(), "auth.Gate")

			// Idempotence: an identity established upstream is not
			// reprocessed.
			if _, ok := IdentityFromContext(ctx); ok {
				g.metrics.observe("none", outcomeAlreadyResolved)
				span.End()
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				g.metrics.observe("none", outcomeAnonymous)
				span.SetAttributes(attribute.String("auth.outcome", outcomeAnonymous))
				span.End()
				next.ServeHTTP(w, r)
				return
			}

			source := g.classifier.Classify(token)
			span.SetAttributes(attribute.String("auth.source", string(source)))

			var (
				identity *Identity
				err      error
			)
			switch source {
			case SourceLocal:
				identity, err = g.processLocal(ctx, token)
			default:
				identity, err = g.processExternal(ctx, token)
			}
			if err != nil {
				g.metrics.observe(string(source), outcomeMethodDisabled)
				span.SetAttributes(attribute.String("auth.outcome", outcomeMethodDisabled))
				span.End()
				writeGateError(w, err)
				return
			}

			outcome := outcomeUnauthenticated
			if identity != nil {
				ctx = ContextWithIdentity(ctx, identity)
				outcome = outcomeAuthenticated
				span.SetAttributes(attribute.String("auth.principal", identity.Principal))
			}
			g.metrics.observe(string(source), outcome)
			span.SetAttributes(attribute.String("auth.outcome", outcome))
			span.End()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// processLocal handles a token classified as locally-issued. A disabled
// local method is the only error path; a token that fails verification
// degrades to an unauthenticated request.
func (g *Gate) processLocal(ctx context.Context, token string) (*Identity, error) {
	enabled, err := g.guard.LocalEnabled(ctx)
	if err != nil {
		// A settings store outage must not take authentication down with
		// it. Enabled is the flag's documented default, so an unreadable
		// flag degrades the same way as an unset one.
		g.logger.Warn("local enablement flag unreadable, treating as enabled", "error", err)
		enabled = true
	}
	if !enabled {
		g.logger.Warn("local token presented while local authentication is disabled")
		return nil, gwerr.MethodDisabled("local")
	}

	if !g.codec.Verify(token) {
		g.logger.Debug("local token failed verification")
		return nil, nil
	}

	subject, err := g.codec.Subject(token)
	if err != nil {
		g.logger.Debug("local token subject extraction failed", "error", err)
		return nil, nil
	}
	authorities, err := g.codec.Authorities(token)
	if err != nil {
		g.logger.Debug("local token authority extraction failed", "error", err)
		return nil, nil
	}

	return &Identity{
		Principal:   subject,
		DisplayName: g.codec.ProfileName(token),
		Authorities: authorities,
		Source:      SourceLocal,
	}, nil
}

// processExternal handles a token classified as external. Verification is
// delegated entirely to the external pipeline; the gate only enforces the
// enablement flag and converts verified claims into an identity.
func (g *Gate) processExternal(ctx context.Context, token string) (*Identity, error) {
	enabled, err := g.guard.ExternalEnabled(ctx)
	if err != nil {
		g.logger.Warn("external enablement flag unreadable, treating as enabled", "error", err)
		enabled = true
	}
	if !enabled {
		g.logger.Warn("external token presented while external authentication is disabled")
		return nil, gwerr.MethodDisabled("external")
	}

	if g.external == nil {
		return nil, nil
	}

	claims, err := g.external.Verify(ctx, token)
	if err != nil {
		g.logger.Debug("external token failed verification", "error", err)
		return nil, nil
	}

	principal := claims.Email()
	if principal == "" {
		principal = claims.Subject()
	}
	return &Identity{
		Principal:   principal,
		DisplayName: claims.DisplayName(),
		Authorities: g.converter.Convert(ctx, claims),
		Source:      SourceExternal,
	}, nil
}

// bearerToken extracts the token from the Authorization header, reporting
// false when the header is absent or not a bearer credential.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	return token, token != ""
}

// writeGateError renders a rejection as JSON with the error's mapped HTTP
// status.
func writeGateError(w http.ResponseWriter, err error) {
	gwe := gwerr.FromError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(gwe.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    gwe.Code,
		"message": gwe.Message,
	})
}
