// Package settings holds the runtime enablement state for the two
// authentication methods. The guard enforces the standing invariant that at
// least one method stays enabled, validating every change against the state
// that would result from applying it.
package settings

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	gwerr "github.com/gatewise/gatewise-core/pkg/errors"
)

// Settings keys for the two authentication method flags.
const (
	KeyExternalEnabled = "auth.external.enabled"
	KeyLocalEnabled    = "auth.local.enabled"
)

// Store is the persistence backend for method flags. Both
// [catalog.MemoryStore] and [catalog.PostgresStore] satisfy it. A missing
// key reports found=false; the guard treats absent flags as enabled.
type Store interface {
	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// MethodStatus is the readable enablement state of both methods.
type MethodStatus struct {
	ExternalEnabled bool `json:"external_enabled"`
	LocalEnabled    bool `json:"local_enabled"`
}

// Guard mediates all reads and writes of the method flags. Reads go through
// an in-process cache that is evicted on every write, so request-path checks
// never block behind an administrative toggle; they observe the pre- or
// post-write value depending on timing.
//
// Guard is safe for concurrent use.
type Guard struct {
	store  Store
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]bool
}

// NewGuard creates a Guard over store. A nil logger falls back to
// [slog.Default].
func NewGuard(store Store, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		store:  store,
		logger: logger,
		cache:  make(map[string]bool, 2),
	}
}

// ExternalEnabled reports whether external (federated) authentication is
// enabled.
func (g *Guard) ExternalEnabled(ctx context.Context) (bool, error) {
	return g.flag(ctx, KeyExternalEnabled)
}

// LocalEnabled reports whether local (self-issued) authentication is
// enabled.
func (g *Guard) LocalEnabled(ctx context.Context) (bool, error) {
	return g.flag(ctx, KeyLocalEnabled)
}

// Status returns the current state of both flags.
func (g *Guard) Status(ctx context.Context) (MethodStatus, error) {
	external, err := g.flag(ctx, KeyExternalEnabled)
	if err != nil {
		return MethodStatus{}, err
	}
	local, err := g.flag(ctx, KeyLocalEnabled)
	if err != nil {
		return MethodStatus{}, err
	}
	return MethodStatus{ExternalEnabled: external, LocalEnabled: local}, nil
}

// SetExternalEnabled changes the external flag, leaving local untouched.
func (g *Guard) SetExternalEnabled(ctx context.Context, enabled bool) error {
	return g.Update(ctx, &enabled, nil)
}

// SetLocalEnabled changes the local flag, leaving external untouched.
func (g *Guard) SetLocalEnabled(ctx context.Context, enabled bool) error {
	return g.Update(ctx, nil, &enabled)
}

// Update applies a combined change to both flags. A nil pointer leaves that
// flag at its current value. The change is validated against the prospective
// final state as a unit, so a single request flipping both flags is judged
// on where it lands, not on any intermediate combination. If both flags
// would end up disabled, Update returns an invalid transition error carrying
// the current state and persists nothing.
func (g *Guard) Update(ctx context.Context, external, local *bool) error {
	current, err := g.Status(ctx)
	if err != nil {
		return err
	}

	next := current
	if external != nil {
		next.ExternalEnabled = *external
	}
	if local != nil {
		next.LocalEnabled = *local
	}

	if !next.ExternalEnabled && !next.LocalEnabled {
		return gwerr.InvalidTransition(
			"at least one authentication method must remain enabled").
			WithDetails(map[string]any{
				"external_enabled": current.ExternalEnabled,
				"local_enabled":    current.LocalEnabled,
			})
	}

	if external != nil && next.ExternalEnabled != current.ExternalEnabled {
		if err := g.write(ctx, KeyExternalEnabled, next.ExternalEnabled); err != nil {
			return err
		}
	}
	if local != nil && next.LocalEnabled != current.LocalEnabled {
		if err := g.write(ctx, KeyLocalEnabled, next.LocalEnabled); err != nil {
			return err
		}
	}

	g.logger.Info("authentication method state updated",
		"external_enabled", next.ExternalEnabled,
		"local_enabled", next.LocalEnabled,
	)
	return nil
}

// flag reads one flag through the cache. Absent keys default to enabled so
// a fresh deployment accepts both methods until an operator decides
// otherwise.
func (g *Guard) flag(ctx context.Context, key string) (bool, error) {
	g.mu.RLock()
	value, ok := g.cache[key]
	g.mu.RUnlock()
	if ok {
		return value, nil
	}

	raw, found, err := g.store.Setting(ctx, key)
	if err != nil {
		return false, err
	}
	value = true
	if found {
		parsed, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			g.logger.Warn("unparseable method flag, treating as enabled",
				"key", key, "value", raw)
			parsed = true
		}
		value = parsed
	}

	g.mu.Lock()
	g.cache[key] = value
	g.mu.Unlock()
	return value, nil
}

// write persists one flag and evicts its cache entry. Eviction instead of
// in-place update keeps the store authoritative if a concurrent writer
// raced us.
func (g *Guard) write(ctx context.Context, key string, value bool) error {
	if err := g.store.SetSetting(ctx, key, strconv.FormatBool(value)); err != nil {
		return err
	}
	g.mu.Lock()
	delete(g.cache, key)
	g.mu.Unlock()
	return nil
}
