package auth

import (
	"context"
)

// contextKey is an unexported type for context keys defined in this package.
// Using a dedicated type prevents collisions with keys defined elsewhere.
type contextKey int

const (
	// identityKey is the context key under which the authenticated
	// Identity is stored.
	identityKey contextKey = iota
)

// ContextWithIdentity returns a new context with the given identity attached.
// The identity can be retrieved with [IdentityFromContext] or
// [MustIdentityFromContext].
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext retrieves the identity from the context. The second
// return value reports whether an identity was present.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*Identity)
	return identity, ok
}

// MustIdentityFromContext retrieves the identity from the context, panicking
// if none is present. Use only in handlers that run strictly behind the
// authentication gate with anonymous access disallowed.
func MustIdentityFromContext(ctx context.Context) *Identity {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		panic("auth: no identity in context")
	}
	return identity
}
