package catalog

import (
	"context"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	gwerr "github.com/gatewise/gatewise-core/pkg/errors"
)

// MemoryStore is an in-memory catalog implementation. It satisfies [Store],
// [UserStore], and the settings store consumed by the method-enablement
// guard, making it a complete backing for examples and tests.
//
// MemoryStore is safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	permissions map[string]*Permission // by code
	profiles    map[string]*Profile    // by name
	users       map[string]*User       // by email
	assignments map[string][]string    // email -> profile names
	settings    map[string]string      // key -> value
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		permissions: make(map[string]*Permission),
		profiles:    make(map[string]*Profile),
		users:       make(map[string]*User),
		assignments: make(map[string][]string),
		settings:    make(map[string]string),
	}
}

// Seed is the YAML-loadable fixture format for a MemoryStore. Profiles
// reference permissions by code; unknown codes are rejected at load time.
type Seed struct {
	Permissions []Permission `yaml:"permissions"`
	Profiles    []struct {
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		GroupID     string   `yaml:"group_id"`
		GroupName   string   `yaml:"group_name"`
		Active      bool     `yaml:"active"`
		Permissions []string `yaml:"permissions"`
	} `yaml:"profiles"`
	Users []struct {
		User     `yaml:",inline"`
		Profiles []string `yaml:"profiles"`
	} `yaml:"users"`
	Settings map[string]string `yaml:"settings"`
}

// LoadSeedFile reads a YAML seed file and applies it via [MemoryStore.LoadSeed].
func (m *MemoryStore) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return gwerr.Wrapf(err, gwerr.CodeInternalConfiguration,
			"catalog: failed to read seed file %q", path)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return gwerr.Wrapf(err, gwerr.CodeInternalConfiguration,
			"catalog: failed to parse seed file %q", path)
	}
	return m.LoadSeed(seed)
}

// LoadSeed applies a seed to the store. Existing entries with the same
// identity are replaced.
func (m *MemoryStore) LoadSeed(seed Seed) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, perm := range seed.Permissions {
		p := perm
		m.permissions[p.Code] = &p
	}
	for _, sp := range seed.Profiles {
		profile := &Profile{
			Name:        sp.Name,
			Description: sp.Description,
			GroupID:     sp.GroupID,
			GroupName:   sp.GroupName,
			Active:      sp.Active,
		}
		for _, code := range sp.Permissions {
			perm, ok := m.permissions[code]
			if !ok {
				return gwerr.Newf(gwerr.CodeInternalConfiguration,
					"catalog: seed profile %q references unknown permission %q", sp.Name, code)
			}
			profile.Permissions = append(profile.Permissions, *perm)
		}
		m.profiles[profile.Name] = profile
	}
	for _, su := range seed.Users {
		u := su.User
		m.users[u.Email] = &u
		m.assignments[u.Email] = append([]string(nil), su.Profiles...)
	}
	for k, v := range seed.Settings {
		m.settings[k] = v
	}
	return nil
}

// AddPermission inserts or replaces a permission.
func (m *MemoryStore) AddPermission(perm Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := perm
	m.permissions[p.Code] = &p
}

// AddProfile inserts or replaces a profile, permission set included.
func (m *MemoryStore) AddProfile(profile Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := profile
	p.Permissions = append([]Permission(nil), profile.Permissions...)
	m.profiles[p.Name] = &p
}

// AddUser inserts or replaces a user and its profile assignments.
func (m *MemoryStore) AddUser(user User, profileNames ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := user
	m.users[u.Email] = &u
	m.assignments[u.Email] = append([]string(nil), profileNames...)
}

// SetProfileActive toggles a profile's active flag. Unknown names are a no-op.
func (m *MemoryStore) SetProfileActive(name string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[name]; ok {
		p.Active = active
	}
}

// ProfileByGroupID implements [Store].
func (m *MemoryStore) ProfileByGroupID(ctx context.Context, groupID string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.profiles {
		if p.Active && p.GroupID != "" && p.GroupID == groupID {
			return copyProfile(p), nil
		}
	}
	return nil, gwerr.Newf(gwerr.CodeNotFoundProfile,
		"catalog: no active profile for group %q", groupID)
}

// ProfilesByGroupIDs implements [Store].
func (m *MemoryStore) ProfilesByGroupIDs(ctx context.Context, ids []string) ([]Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []Profile{}
	seen := make(map[string]struct{})
	for _, id := range ids {
		for _, p := range m.profiles {
			if !p.Active || p.GroupID == "" || p.GroupID != id {
				continue
			}
			if _, dup := seen[p.Name]; dup {
				continue
			}
			seen[p.Name] = struct{}{}
			result = append(result, *copyProfile(p))
		}
	}
	return result, nil
}

// ProfilesByEmail implements [Store].
func (m *MemoryStore) ProfilesByEmail(ctx context.Context, email string) ([]Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []Profile{}
	for _, name := range m.assignments[email] {
		p, ok := m.profiles[name]
		if !ok || !p.Active {
			continue
		}
		result = append(result, *copyProfile(p))
	}
	return result, nil
}

// Permissions implements [Store].
func (m *MemoryStore) Permissions(ctx context.Context) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Permission, 0, len(m.permissions))
	for _, p := range m.permissions {
		result = append(result, *p)
	}
	return result, nil
}

// UserByEmail implements [UserStore].
func (m *MemoryStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[email]
	if !ok {
		return nil, gwerr.Newf(gwerr.CodeNotFound, "catalog: no user %q", email)
	}
	copied := *u
	return &copied, nil
}

// Setting returns the stored value for a settings key and whether it was
// present. It satisfies the settings store consumed by the
// method-enablement guard.
func (m *MemoryStore) Setting(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.settings[key]
	return v, ok, nil
}

// SetSetting stores a settings value.
func (m *MemoryStore) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings[key] = value
	return nil
}

// copyProfile returns a deep copy so callers cannot mutate store state.
func copyProfile(p *Profile) *Profile {
	copied := *p
	copied.Permissions = append([]Permission(nil), p.Permissions...)
	return &copied
}
