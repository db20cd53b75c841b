package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewise/gatewise-core/pkg/catalog"
)

func adminIdentity() *Identity {
	return &Identity{
		Principal:   "ana@example.com",
		Authorities: []string{"GROUP_admin-group-id", "ROLE_ADMINISTRADORES", "USUARIOS_LEER"},
		Source:      SourceExternal,
	}
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()
	resolver := NewResolver(testCatalog(t), "", nil)

	permissions, err := resolver.Resolve(context.Background(), adminIdentity())
	require.NoError(t, err)

	codes := permissionCodes(permissions)
	assert.ElementsMatch(t, []string{"USUARIOS_LEER", "USUARIOS_CREAR"}, codes,
		"active permissions only, inactive filtered")
}

func TestResolver_EmptyGroupsFallsBackToDefaultProfile(t *testing.T) {
	t.Parallel()
	resolver := NewResolver(testCatalog(t), "", nil)

	identity := &Identity{Principal: "x@example.com", Authorities: []string{RoleUser}}
	permissions, err := resolver.Resolve(context.Background(), identity)
	require.NoError(t, err)

	assert.Equal(t, []string{"DASHBOARD_LEER"}, permissionCodes(permissions),
		"default profile's permission set, not an empty set")
}

func TestResolver_UnmatchedGroupsFallBackToDefaultProfile(t *testing.T) {
	t.Parallel()
	resolver := NewResolver(testCatalog(t), "", nil)

	identity := &Identity{Authorities: []string{"GROUP_no-such-group"}}
	permissions, err := resolver.Resolve(context.Background(), identity)
	require.NoError(t, err)

	assert.Equal(t, []string{"DASHBOARD_LEER"}, permissionCodes(permissions))
}

func TestResolver_UnionDeduplicatesByCode(t *testing.T) {
	t.Parallel()
	store := testCatalog(t)
	store.AddProfile(testOverlapProfile())
	resolver := NewResolver(store, "", nil)

	identity := &Identity{Authorities: []string{"GROUP_admin-group-id", "GROUP_overlap-group-id"}}
	permissions, err := resolver.Resolve(context.Background(), identity)
	require.NoError(t, err)

	codes := permissionCodes(permissions)
	assert.ElementsMatch(t, []string{"USUARIOS_LEER", "USUARIOS_CREAR", "REPORTES_LEER"}, codes)
}

func TestResolver_NilIdentity(t *testing.T) {
	t.Parallel()
	resolver := NewResolver(testCatalog(t), "", nil)

	_, err := resolver.Resolve(context.Background(), nil)
	require.Error(t, err)
}

func TestResolver_CurrentUser(t *testing.T) {
	t.Parallel()
	resolver := NewResolver(testCatalog(t), "", nil)

	identity := adminIdentity()
	identity.DisplayName = "Ana"
	info, err := resolver.CurrentUser(context.Background(), identity)
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", info.Email)
	assert.Equal(t, "Ana", info.Name)
	assert.Equal(t, []string{"admin-group-id"}, info.Groups)
	assert.Equal(t, []string{"Administrador"}, info.Profiles)
	assert.ElementsMatch(t, []string{"USUARIOS_LEER", "USUARIOS_CREAR"}, info.PermissionCodes)
	assert.Len(t, info.Permissions, 2)
}

func TestResolver_CurrentUser_NilIdentity(t *testing.T) {
	t.Parallel()
	resolver := NewResolver(testCatalog(t), "", nil)

	_, err := resolver.CurrentUser(context.Background(), nil)
	require.Error(t, err)
}

func TestResolver_RevocationTakesEffectImmediately(t *testing.T) {
	t.Parallel()
	store := testCatalog(t)
	resolver := NewResolver(store, "", nil)
	identity := adminIdentity()
	ctx := context.Background()

	has, err := resolver.HasPermission(ctx, identity, "USUARIOS_CREAR")
	require.NoError(t, err)
	assert.True(t, has)

	store.SetProfileActive("Administrador", false)

	permissions, err := resolver.Resolve(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, []string{"DASHBOARD_LEER"}, permissionCodes(permissions),
		"deactivated profile drops out on the next resolution")
}

// ---------------------------------------------------------------------------
// Derived queries
// ---------------------------------------------------------------------------

func TestResolver_DerivedQueries(t *testing.T) {
	t.Parallel()
	resolver := NewResolver(testCatalog(t), "", nil)
	identity := adminIdentity()
	ctx := context.Background()

	has, err := resolver.HasPermission(ctx, identity, "USUARIOS_LEER")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = resolver.HasPermission(ctx, identity, "USUARIOS_ELIMINAR")
	require.NoError(t, err)
	assert.False(t, has, "inactive permission never resolves")

	has, err = resolver.HasPermissionInModule(ctx, identity, "USUARIOS")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = resolver.HasPermissionInModule(ctx, identity, "REPORTES")
	require.NoError(t, err)
	assert.False(t, has)

	has, err = resolver.HasPermissionForAction(ctx, identity, "CREAR")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = resolver.HasPermissionInModuleAndAction(ctx, identity, "USUARIOS", "CREAR")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = resolver.HasPermissionInModuleAndAction(ctx, identity, "USUARIOS", "ELIMINAR")
	require.NoError(t, err)
	assert.False(t, has)

	has, err = resolver.HasAnyPermission(ctx, identity, "NO_SUCH", "USUARIOS_LEER")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = resolver.HasAllPermissions(ctx, identity, "USUARIOS_LEER", "USUARIOS_CREAR")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = resolver.HasAllPermissions(ctx, identity, "USUARIOS_LEER", "NO_SUCH")
	require.NoError(t, err)
	assert.False(t, has)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func permissionCodes(permissions []catalog.Permission) []string {
	codes := make([]string, 0, len(permissions))
	for _, p := range permissions {
		codes = append(codes, p.Code)
	}
	return codes
}

// testOverlapProfile shares USUARIOS_LEER with the administrator profile and
// adds one permission of its own.
func testOverlapProfile() catalog.Profile {
	return catalog.Profile{
		Name:    "Analista",
		GroupID: "overlap-group-id",
		Active:  true,
		Permissions: []catalog.Permission{
			{Code: "USUARIOS_LEER", Module: "USUARIOS", Action: "LEER", Active: true},
			{Code: "REPORTES_LEER", Module: "REPORTES", Action: "LEER", Active: true},
		},
	}
}
