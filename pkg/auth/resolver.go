package auth

import (
	"context"
	"log/slog"

	"github.com/gatewise/gatewise-core/pkg/catalog"
	gwerr "github.com/gatewise/gatewise-core/pkg/errors"
)

// DefaultGroupID is the well-known group identifier substituted when an
// identity carries no group authorities, or when its groups resolve to no
// profiles. It guarantees every authenticated principal gets a defined,
// possibly empty, permission set.
const DefaultGroupID = "default-user"

// Resolver computes the effective permission set for an identity from the
// catalog's current state. Resolution runs fresh on every call and is never
// persisted, so a permission revoked in the catalog stops applying on the
// next request without any token reissuance.
type Resolver struct {
	catalog        catalog.Store
	defaultGroupID string
	logger         *slog.Logger
}

// NewResolver creates a Resolver. An empty defaultGroupID falls back to
// [DefaultGroupID]; a nil logger falls back to [slog.Default].
func NewResolver(store catalog.Store, defaultGroupID string, logger *slog.Logger) *Resolver {
	if defaultGroupID == "" {
		defaultGroupID = DefaultGroupID
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{catalog: store, defaultGroupID: defaultGroupID, logger: logger}
}

// Resolve returns the identity's effective permissions: the union of the
// active permissions of every profile matching the identity's group
// authorities, deduplicated by code. An identity with no groups, or whose
// groups match no profiles, resolves through the default group instead.
func (r *Resolver) Resolve(ctx context.Context, identity *Identity) ([]catalog.Permission, error) {
	profiles, err := r.effectiveProfiles(ctx, identity)
	if err != nil {
		return nil, err
	}
	return unionPermissions(profiles), nil
}

// UserInfo is the aggregate view of an authenticated principal: who they
// are, which groups and profiles apply, and the permissions that result.
type UserInfo struct {
	Email           string               `json:"email"`
	Name            string               `json:"name,omitempty"`
	Groups          []string             `json:"groups"`
	Profiles        []string             `json:"profiles"`
	Permissions     []catalog.Permission `json:"permissions"`
	PermissionCodes []string             `json:"permission_codes"`
}

// CurrentUser builds the aggregate view for the identity, using the same
// profile resolution and default-group fallback as Resolve.
func (r *Resolver) CurrentUser(ctx context.Context, identity *Identity) (*UserInfo, error) {
	profiles, err := r.effectiveProfiles(ctx, identity)
	if err != nil {
		return nil, err
	}
	permissions := unionPermissions(profiles)

	info := &UserInfo{
		Email:           identity.Principal,
		Name:            identity.DisplayName,
		Groups:          identity.GroupIDs(),
		Profiles:        make([]string, 0, len(profiles)),
		Permissions:     permissions,
		PermissionCodes: make([]string, 0, len(permissions)),
	}
	for _, profile := range profiles {
		info.Profiles = append(info.Profiles, profile.Name)
	}
	for _, perm := range permissions {
		info.PermissionCodes = append(info.PermissionCodes, perm.Code)
	}
	return info, nil
}

// effectiveProfiles resolves the identity's groups to active profiles,
// falling back to the default group when nothing matches.
func (r *Resolver) effectiveProfiles(ctx context.Context, identity *Identity) ([]catalog.Profile, error) {
	if identity == nil {
		return nil, gwerr.Unauthorized("auth: no identity to resolve")
	}

	groupIDs := identity.GroupIDs()
	profiles, err := r.profilesFor(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		if len(groupIDs) > 0 {
			r.logger.Debug("no profiles for identity groups, using default group",
				"principal", identity.Principal, "group_count", len(groupIDs))
		}
		profiles, err = r.profilesFor(ctx, []string{r.defaultGroupID})
		if err != nil {
			return nil, err
		}
	}
	return profiles, nil
}

// unionPermissions collects the active permissions of every profile,
// deduplicated by code in first-seen order.
func unionPermissions(profiles []catalog.Profile) []catalog.Permission {
	permissions := []catalog.Permission{}
	seen := make(map[string]bool)
	for _, profile := range profiles {
		for _, perm := range profile.ActivePermissions() {
			if !seen[perm.Code] {
				permissions = append(permissions, perm)
				seen[perm.Code] = true
			}
		}
	}
	return permissions
}

// HasPermission reports whether the identity's resolved set contains the
// permission code.
func (r *Resolver) HasPermission(ctx context.Context, identity *Identity, code string) (bool, error) {
	return r.anyPermission(ctx, identity, func(p catalog.Permission) bool {
		return p.Code == code
	})
}

// HasAnyPermission reports whether the identity holds at least one of the
// given permission codes.
func (r *Resolver) HasAnyPermission(ctx context.Context, identity *Identity, codes ...string) (bool, error) {
	want := make(map[string]bool, len(codes))
	for _, code := range codes {
		want[code] = true
	}
	return r.anyPermission(ctx, identity, func(p catalog.Permission) bool {
		return want[p.Code]
	})
}

// HasAllPermissions reports whether the identity holds every one of the
// given permission codes.
func (r *Resolver) HasAllPermissions(ctx context.Context, identity *Identity, codes ...string) (bool, error) {
	permissions, err := r.Resolve(ctx, identity)
	if err != nil {
		return false, err
	}
	held := make(map[string]bool, len(permissions))
	for _, p := range permissions {
		held[p.Code] = true
	}
	for _, code := range codes {
		if !held[code] {
			return false, nil
		}
	}
	return true, nil
}

// HasPermissionInModule reports whether the identity holds any permission
// in the given module.
func (r *Resolver) HasPermissionInModule(ctx context.Context, identity *Identity, module string) (bool, error) {
	return r.anyPermission(ctx, identity, func(p catalog.Permission) bool {
		return p.Module == module
	})
}

// HasPermissionForAction reports whether the identity holds any permission
// with the given action.
func (r *Resolver) HasPermissionForAction(ctx context.Context, identity *Identity, action string) (bool, error) {
	return r.anyPermission(ctx, identity, func(p catalog.Permission) bool {
		return p.Action == action
	})
}

// HasPermissionInModuleAndAction reports whether the identity holds a
// permission matching both module and action.
func (r *Resolver) HasPermissionInModuleAndAction(ctx context.Context, identity *Identity, module, action string) (bool, error) {
	return r.anyPermission(ctx, identity, func(p catalog.Permission) bool {
		return p.Module == module && p.Action == action
	})
}

func (r *Resolver) anyPermission(ctx context.Context, identity *Identity, match func(catalog.Permission) bool) (bool, error) {
	permissions, err := r.Resolve(ctx, identity)
	if err != nil {
		return false, err
	}
	for _, p := range permissions {
		if match(p) {
			return true, nil
		}
	}
	return false, nil
}

// profilesFor resolves group IDs to active profiles, treating an empty
// input as zero profiles rather than querying.
func (r *Resolver) profilesFor(ctx context.Context, groupIDs []string) ([]catalog.Profile, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	profiles, err := r.catalog.ProfilesByGroupIDs(ctx, groupIDs)
	if err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeInternal, "auth: profile resolution failed")
	}
	return profiles, nil
}
