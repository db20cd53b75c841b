// Package auth implements dual-mode bearer authentication: self-issued HMAC
// tokens verified locally, and federated identity-provider tokens whose
// claims are converted into catalog-backed authorities. A per-request gate
// classifies each token by sniffing its payload and routes it to the
// matching path, and an authorization resolver turns the resulting
// authorities into an effective permission set.
package auth

import "strings"

// ---------------------------------------------------------------------------
// Source — which authentication path produced an identity
// ---------------------------------------------------------------------------

// Source identifies which authentication method produced a token or an
// identity.
type Source string

const (
	// SourceLocal marks tokens issued and verified by this service's own
	// codec.
	SourceLocal Source = "local"

	// SourceExternal marks tokens issued by the federated identity
	// provider, verified by the external pipeline.
	SourceExternal Source = "external"
)

// ---------------------------------------------------------------------------
// Authority vocabulary
// ---------------------------------------------------------------------------

// Authority string prefixes. An authority is either GROUP_<external group
// id>, ROLE_<NAME>, or a bare permission code. GROUP_ authorities exist as
// an audit trail and as input to the resolver's group extraction; they are
// never consumed directly by permission checks.
const (
	GroupAuthorityPrefix = "GROUP_"
	RoleAuthorityPrefix  = "ROLE_"
)

// Well-known role authorities.
const (
	// RoleUser is the baseline role every locally-issued token carries.
	RoleUser = "ROLE_USER"

	// RoleAdmin is granted at issuance when the principal holds the
	// administrator-equivalent profile.
	RoleAdmin = "ROLE_ADMIN"

	// RoleManager is granted at issuance when the principal holds the
	// manager-equivalent profile.
	RoleManager = "ROLE_MANAGER"
)

// ---------------------------------------------------------------------------
// Identity — request-scoped authenticated principal
// ---------------------------------------------------------------------------

// Identity is the request-scoped result of a successful authentication. It
// is produced fresh for every request and discarded with it; authorization
// decisions derived from it are never persisted.
type Identity struct {
	// Principal is the resolved principal identifier, an email address
	// for user tokens or the token subject otherwise.
	Principal string

	// DisplayName is a human-readable name for the principal. May be
	// empty.
	DisplayName string

	// Authorities is the final authority list: GROUP_ entries, ROLE_
	// entries, and permission codes.
	Authorities []string

	// Source records which authentication path established the identity.
	Source Source
}

// HasAuthority reports whether the identity carries the exact authority
// string.
func (id *Identity) HasAuthority(authority string) bool {
	for _, a := range id.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// HasRole reports whether the identity carries ROLE_<role>. The role name
// is matched case-insensitively, mirroring how role checks are written at
// endpoint level.
func (id *Identity) HasRole(role string) bool {
	want := RoleAuthorityPrefix + strings.ToUpper(role)
	for _, a := range id.Authorities {
		if strings.EqualFold(a, want) {
			return true
		}
	}
	return false
}

// GroupIDs returns the external group identifiers carried as GROUP_
// authorities, in authority order.
func (id *Identity) GroupIDs() []string {
	var ids []string
	for _, a := range id.Authorities {
		if rest, ok := strings.CutPrefix(a, GroupAuthorityPrefix); ok {
			ids = append(ids, rest)
		}
	}
	return ids
}
