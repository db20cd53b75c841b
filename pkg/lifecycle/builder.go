package lifecycle

import (
	"log/slog"

	"go.opentelemetry.io/otel"

	gwerr "github.com/gatewise/gatewise-core/pkg/errors"
)

// Builder constructs a [Service] with validated configuration and optional
// lifecycle hooks. Use [NewBuilder] to start building.
//
// All configuration methods return the builder for chaining. Call
// [Builder.Build] to validate the configuration and produce the service.
//
// Example:
//
//	svc, err := lifecycle.NewBuilder("gatewise-core", "1.0.0").
//	    WithOnStart(func(ctx context.Context) error {
//	        go server.ListenAndServe()
//	        return nil
//	    }).
//	    WithOnStop(func(ctx context.Context) error {
//	        return server.Shutdown(ctx)
//	    }).
//	    WithHealthCheck(store.Health).
//	    Build()
type Builder struct {
	name          string
	version       string
	logger        *slog.Logger
	onStart       Hook
	onStop        Hook
	stateHandlers []StateChangeHandler
	healthChecks  []HealthCheck
}

// NewBuilder creates a new builder with the required identity fields. The
// name and version are validated during [Builder.Build].
func NewBuilder(name, version string) *Builder {
	return &Builder{
		name:    name,
		version: version,
	}
}

// WithLogger sets the structured logger. Defaults to [slog.Default] when
// not set.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithOnStart registers the hook executed during [Service.Start] between
// the Starting and Running transitions.
func (b *Builder) WithOnStart(hook Hook) *Builder {
	b.onStart = hook
	return b
}

// WithOnStop registers the hook executed during [Service.Stop] between the
// Stopping and Stopped transitions.
func (b *Builder) WithOnStop(hook Hook) *Builder {
	b.onStop = hook
	return b
}

// OnStateChange registers a handler notified on every state transition.
// Handlers are called in registration order.
func (b *Builder) OnStateChange(handler StateChangeHandler) *Builder {
	b.stateHandlers = append(b.stateHandlers, handler)
	return b
}

// WithHealthCheck registers a dependency probe run by [Service.Health].
// Checks are run in registration order.
func (b *Builder) WithHealthCheck(check HealthCheck) *Builder {
	b.healthChecks = append(b.healthChecks, check)
	return b
}

// Build validates the configuration and returns the service in
// [StateUnknown]. Returns a *[gwerr.Error] with code
// [gwerr.CodeValidation] when name or version is empty.
func (b *Builder) Build() (*Service, error) {
	if b.name == "" {
		return nil, gwerr.New(gwerr.CodeValidation,
			"lifecycle: service name must not be empty")
	}
	if b.version == "" {
		return nil, gwerr.New(gwerr.CodeValidation,
			"lifecycle: service version must not be empty")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		name:          b.name,
		version:       b.version,
		state:         StateUnknown,
		onStart:       b.onStart,
		onStop:        b.onStop,
		stateHandlers: b.stateHandlers,
		healthChecks:  b.healthChecks,
		logger:        logger,
		tracer:        otel.Tracer(tracerName),
	}, nil
}
