// Package catalog defines the profile and permission catalog consumed by the
// Gatewise authentication and authorization core, together with its store
// implementations: a pgx-backed Postgres store, a Redis read-through cache
// decorator, and a goroutine-safe in-memory store for tests and examples.
//
// The catalog is the single source of truth for which external identity
// groups map to which internal profiles, and which permissions each profile
// grants. Authorization decisions are recomputed from the catalog's current
// state on every request, so permission revocations take effect immediately
// for externally-authenticated requests without token reissuance.
package catalog

import (
	"context"
	"strings"
)

// Permission is an atomic, named capability. Its identity is the unique
// Code; Module and Action support coarse queries ("does the caller hold any
// permission in module X?"). Inactive permissions are retained in the
// catalog but never granted.
type Permission struct {
	// Code uniquely identifies the permission (e.g., "USUARIOS_LEER").
	// Permission codes appear verbatim as authority strings on a
	// request's identity.
	Code string `json:"code" yaml:"code"`

	// Name is the human-readable permission name.
	Name string `json:"name" yaml:"name"`

	// Module is the functional area the permission belongs to.
	Module string `json:"module" yaml:"module"`

	// Action is the operation the permission allows within its module.
	Action string `json:"action" yaml:"action"`

	// Active controls whether the permission is currently granted to the
	// profiles that hold it. Toggled by administrative operations.
	Active bool `json:"active" yaml:"active"`
}

// Profile is a named bundle of permissions, optionally mapped to one
// external identity-provider group. A permission may belong to multiple
// profiles; the catalog, not any single profile, governs its lifetime.
type Profile struct {
	// Name uniquely identifies the profile.
	Name string `json:"name" yaml:"name"`

	// Description is a human-readable explanation of the profile's purpose.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// GroupID is the external identity-provider group identifier mapped
	// to this profile, if any.
	GroupID string `json:"groupId,omitempty" yaml:"group_id,omitempty"`

	// GroupName is the external group's display name, if any. Role
	// authorities are derived from it.
	GroupName string `json:"groupName,omitempty" yaml:"group_name,omitempty"`

	// Active controls whether the profile participates in authorization.
	Active bool `json:"active" yaml:"active"`

	// Permissions is the permission set owned by this profile, inactive
	// entries included. Callers filter on Permission.Active.
	Permissions []Permission `json:"permissions" yaml:"permissions"`
}

// ActivePermissions returns the profile's permissions whose Active flag is
// set, preserving catalog order.
func (p *Profile) ActivePermissions() []Permission {
	var active []Permission
	for _, perm := range p.Permissions {
		if perm.Active {
			active = append(active, perm)
		}
	}
	return active
}

// RoleName derives the role authority fragment from the profile's external
// group display name: uppercased, spaces replaced with underscores. When the
// profile has no group name, the profile name is used instead.
func (p *Profile) RoleName() string {
	name := p.GroupName
	if name == "" {
		name = p.Name
	}
	return strings.ReplaceAll(strings.ToUpper(name), " ", "_")
}

// User is a locally-registered principal able to authenticate without a
// federated account. The password hash is a bcrypt digest; the catalog
// never stores plaintext credentials.
type User struct {
	// Email is the principal identifier.
	Email string `json:"email" yaml:"email"`

	// Name is the user's display name.
	Name string `json:"name" yaml:"name"`

	// PasswordHash is the bcrypt digest of the user's password. It is
	// omitted from JSON serialization.
	PasswordHash string `json:"-" yaml:"password_hash"`

	// Active controls whether the user may authenticate.
	Active bool `json:"active" yaml:"active"`
}

// Store is the read interface over the profile/permission catalog. All
// implementations must be safe for concurrent use.
//
// Lookup methods that return profiles only ever return active profiles;
// an inactive profile is indistinguishable from a missing one.
type Store interface {
	// ProfileByGroupID returns the active profile mapped to the given
	// external group identifier, with its permission set loaded. Returns
	// an error with code NF_002 when no active profile matches.
	ProfileByGroupID(ctx context.Context, groupID string) (*Profile, error)

	// ProfilesByGroupIDs returns the active profiles whose group id is in
	// ids, permissions loaded, deduplicated by profile name. A nil or
	// empty input yields an empty, non-nil slice.
	ProfilesByGroupIDs(ctx context.Context, ids []string) ([]Profile, error)

	// ProfilesByEmail returns the active profiles assigned directly to a
	// locally-registered principal. Used at local-token issuance time.
	ProfilesByEmail(ctx context.Context, email string) ([]Profile, error)

	// Permissions returns every permission in the catalog, active or not.
	Permissions(ctx context.Context) ([]Permission, error)
}

// UserStore is the read interface over locally-registered users.
type UserStore interface {
	// UserByEmail returns the user registered under the given email, or
	// an error with code NF_001 when none exists. Inactive users are
	// returned; callers decide how an inactive account fails.
	UserByEmail(ctx context.Context, email string) (*User, error)
}
