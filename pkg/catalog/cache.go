package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	gwerr "github.com/gatewise/gatewise-core/pkg/errors"
)

// DefaultCacheTTL bounds how stale cached catalog entries may get. Profiles
// and permissions change rarely, so a short TTL mostly absorbs bursts of
// authorization lookups for the same groups.
const DefaultCacheTTL = 5 * time.Minute

// Cmdable defines the Redis operations the cache needs. It is satisfied by
// [*redis.Client] and [redis.UniversalClient], and small enough to fake in
// tests.
type Cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ Cmdable = (*redis.Client)(nil)

// CachedStore is a read-through Redis cache over a [Store]. Cache failures
// never fail a lookup; the store degrades to the underlying catalog and logs
// the cache error. Values are stored as JSON under version-prefixed keys so
// incompatible format changes invalidate naturally.
type CachedStore struct {
	store  Store
	client Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore wraps store with a Redis cache. A non-positive ttl falls
// back to [DefaultCacheTTL]. A nil logger falls back to [slog.Default].
func NewCachedStore(store Store, client Cmdable, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{store: store, client: client, ttl: ttl, logger: logger}
}

const (
	profileKeyPrefix = "gatewise:v1:profile:"
	permissionsKey   = "gatewise:v1:permissions"
)

// ProfileByGroupID implements [Store] with a per-group cache entry. Negative
// results (profile not found) are not cached.
func (c *CachedStore) ProfileByGroupID(ctx context.Context, groupID string) (*Profile, error) {
	key := profileKeyPrefix + groupID

	var cached Profile
	if c.get(ctx, key, &cached) {
		return &cached, nil
	}

	profile, err := c.store.ProfileByGroupID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	c.put(ctx, key, profile)
	return profile, nil
}

// ProfilesByGroupIDs implements [Store] by composing per-group cached
// lookups. Groups without an active profile are skipped; input order is
// preserved and duplicate IDs resolve once.
func (c *CachedStore) ProfilesByGroupIDs(ctx context.Context, ids []string) ([]Profile, error) {
	result := []Profile{}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		profile, err := c.ProfileByGroupID(ctx, id)
		if err != nil {
			if gwerr.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		result = append(result, *profile)
	}
	return result, nil
}

// ProfilesByEmail implements [Store]. User-to-profile assignments are not
// cached; the call passes through.
func (c *CachedStore) ProfilesByEmail(ctx context.Context, email string) ([]Profile, error) {
	return c.store.ProfilesByEmail(ctx, email)
}

// Permissions implements [Store] with a single cache entry for the full
// permission catalog.
func (c *CachedStore) Permissions(ctx context.Context) ([]Permission, error) {
	var cached []Permission
	if c.get(ctx, permissionsKey, &cached) {
		return cached, nil
	}

	permissions, err := c.store.Permissions(ctx)
	if err != nil {
		return nil, err
	}
	c.put(ctx, permissionsKey, permissions)
	return permissions, nil
}

// InvalidateProfile evicts the cache entry for one group. Call after
// mutating a profile or its permission set.
func (c *CachedStore) InvalidateProfile(ctx context.Context, groupID string) {
	c.del(ctx, profileKeyPrefix+groupID)
}

// InvalidatePermissions evicts the permission catalog entry.
func (c *CachedStore) InvalidatePermissions(ctx context.Context) {
	c.del(ctx, permissionsKey)
}

// get loads and decodes a cached value, reporting whether the key was
// present and valid. Misses and cache errors both report false.
func (c *CachedStore) get(ctx context.Context, key string, dest any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.logger.Warn("catalog cache read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("catalog cache entry corrupt, evicting", "key", key, "error", err)
		c.del(ctx, key)
		return false
	}
	return true
}

// put encodes and stores a value. Failures are logged and ignored.
func (c *CachedStore) put(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("catalog cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write failed", "key", key, "error", err)
	}
}

func (c *CachedStore) del(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("catalog cache eviction failed", "key", key, "error", err)
	}
}
