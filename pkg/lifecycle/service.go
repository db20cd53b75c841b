package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	gwerr "github.com/gatewise/gatewise-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this
// package.
const tracerName = "github.com/gatewise/gatewise-core/pkg/lifecycle"

// StateChangeHandler is a callback invoked on every lifecycle state change
// with the previous and new state.
//
// Handlers execute synchronously under the service's state mutex during
// [Service.SetState]. They must not block or call lifecycle methods on the
// same service. Handlers that panic are recovered and logged without
// preventing the state change.
type StateChangeHandler func(old, new State)

// Hook is a function called during a lifecycle transition (start, stop).
// If a hook returns a non-nil error, the transition is aborted and the
// service moves to [StateFailed].
//
// Hooks execute outside the state mutex, so they may safely call read-only
// methods on the service.
type Hook func(ctx context.Context) error

// HealthCheck probes one backing dependency. Registered checks run in
// order from [Service.Health]; the first failure is returned.
type HealthCheck func(ctx context.Context) error

// Info is a point-in-time snapshot of the service identity, state, and
// uptime. Safe to serialize to JSON for status endpoints.
type Info struct {
	Name      string        `json:"name"`
	Version   string        `json:"version"`
	State     State         `json:"state"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
}

// Service manages the process lifecycle of the authentication service:
// validated state transitions, start/stop hooks for the HTTP listener and
// connection pools, and aggregate health over the backing dependencies.
//
// A Service is safe for concurrent use. Create one with [NewBuilder].
type Service struct {
	name    string
	version string

	mu        sync.RWMutex
	state     State
	startedAt *time.Time

	onStart       Hook
	onStop        Hook
	stateHandlers []StateChangeHandler
	healthChecks  []HealthCheck

	logger *slog.Logger
	tracer trace.Tracer
}

// Name returns the service name. Immutable after construction.
func (s *Service) Name() string {
	return s.name
}

// Version returns the service version. Immutable after construction.
func (s *Service) Version() string {
	return s.version
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Info returns a snapshot of the service identity, state, and uptime.
func (s *Service) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := Info{
		Name:    s.name,
		Version: s.version,
		State:   s.state,
	}
	if s.startedAt != nil && s.state == StateRunning {
		t := *s.startedAt
		info.StartedAt = &t
		info.Uptime = time.Since(t)
	}
	return info
}

// SetState transitions the service to the given state after validating the
// transition. Returns a *[gwerr.Error] with code
// [gwerr.CodeInvalidTransition] if the transition is not allowed.
//
// On success, registered [StateChangeHandler] functions are called
// synchronously with the old and new state values.
func (s *Service) SetState(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.state
	if !ValidTransition(old, next) {
		return gwerr.Newf(gwerr.CodeInvalidTransition,
			"lifecycle: invalid state transition from %q to %q", old, next)
	}

	s.state = next

	// Handlers run under the lock to guarantee ordering. A panicking
	// handler must not corrupt the state machine.
	for _, h := range s.stateHandlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("lifecycle: state change handler panicked",
						"panic", r,
						"service", s.name,
						"old_state", string(old),
						"new_state", string(next),
					)
				}
			}()
			h(old, next)
		}()
	}

	return nil
}

// Start transitions the service through [StateStarting] to [StateRunning],
// executing the OnStart hook between the two transitions.
//
// If the hook returns an error, the service transitions to [StateFailed]
// and the error is returned wrapped with [gwerr.CodeInternal].
func (s *Service) Start(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Start",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("service.name", s.name)),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return gwerr.Wrap(err, gwerr.CodeTimeout,
			"lifecycle: start canceled before execution")
	}

	if err := s.SetState(StateStarting); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.logger.InfoContext(ctx, "lifecycle: starting service",
		"service", s.name,
		"version", s.version,
	)

	if s.onStart != nil {
		if err := s.onStart(ctx); err != nil {
			s.logger.ErrorContext(ctx, "lifecycle: start hook failed",
				"service", s.name,
				"error", err,
			)
			_ = s.SetState(StateFailed)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return gwerr.Wrap(err, gwerr.CodeInternal,
				"lifecycle: start hook failed")
		}
	}

	if err := s.SetState(StateRunning); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.startedAt = &now
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "lifecycle: service started", "service", s.name)
	span.SetStatus(codes.Ok, "")

	return nil
}

// Stop transitions the service through [StateStopping] to [StateStopped],
// executing the OnStop hook between the two transitions.
//
// If the service is already in a terminal state, Stop is a no-op. This
// makes it safe to call from a deferred cleanup.
func (s *Service) Stop(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Stop",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("service.name", s.name)),
	)
	defer span.End()

	if s.State().IsTerminal() {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return gwerr.Wrap(err, gwerr.CodeTimeout,
			"lifecycle: stop canceled before execution")
	}

	if err := s.SetState(StateStopping); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.logger.InfoContext(ctx, "lifecycle: stopping service", "service", s.name)

	if s.onStop != nil {
		if err := s.onStop(ctx); err != nil {
			s.logger.ErrorContext(ctx, "lifecycle: stop hook failed",
				"service", s.name,
				"error", err,
			)
			_ = s.SetState(StateFailed)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return gwerr.Wrap(err, gwerr.CodeInternal,
				"lifecycle: stop hook failed")
		}
	}

	if err := s.SetState(StateStopped); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.mu.Lock()
	s.startedAt = nil
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "lifecycle: service stopped", "service", s.name)
	span.SetStatus(codes.Ok, "")

	return nil
}

// Health reports whether the service is running and its backing
// dependencies are reachable. Returns nil when healthy, a *[gwerr.Error]
// with code [gwerr.CodeUnavailable] when the service is not running, or
// the first failing dependency check's error otherwise.
func (s *Service) Health(ctx context.Context) error {
	if state := s.State(); state != StateRunning {
		return gwerr.Newf(gwerr.CodeUnavailable,
			"lifecycle: service is not running, current state is %q", state)
	}
	for _, check := range s.healthChecks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}
