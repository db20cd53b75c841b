package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gatewise/gatewise-core/pkg/catalog"
	gwerr "github.com/gatewise/gatewise-core/pkg/errors"
)

// Claim names used in locally-issued tokens.
const (
	claimAuthorities = "authorities"
	claimProfile     = "profile"
)

// minSigningKeyBytes is the minimum accepted HMAC key length.
const minSigningKeyBytes = 32

// ---------------------------------------------------------------------------
// CodecConfig
// ---------------------------------------------------------------------------

// CodecConfig holds the configuration for [Codec]. SigningKey is required;
// everything else has a default applied by [NewCodec].
type CodecConfig struct {
	// SigningKey is the HMAC key used to sign and verify local tokens.
	// Must be at least 32 bytes. The Secret type prevents accidental
	// logging of the key value.
	SigningKey Secret `json:"-"`

	// Issuer is the "iss" claim embedded in every local token. The
	// classifier looks for this exact string in token payloads, so it
	// must not be a substring of the federated provider's issuer.
	// Defaults to "gatewise-core".
	Issuer string `json:"issuer"`

	// TTL is the token lifetime from issuance. Defaults to 24 hours.
	TTL time.Duration `json:"ttl"`

	// AdminProfile is the profile name that grants ROLE_ADMIN at
	// issuance, matched case-insensitively. Defaults to "Administrador".
	AdminProfile string `json:"admin_profile"`

	// ManagerProfile is the profile name that grants ROLE_MANAGER at
	// issuance, matched case-insensitively. Defaults to "Gestor".
	ManagerProfile string `json:"manager_profile"`

	// DefaultProfileLabel is the display profile name embedded when the
	// principal holds no profiles. Defaults to "Usuario Básico".
	DefaultProfileLabel string `json:"default_profile_label"`
}

// Validate checks the configuration and returns a *[gwerr.Error] with code
// [gwerr.CodeValidation] if any field is invalid.
func (c *CodecConfig) Validate() *gwerr.Error {
	if len(c.SigningKey.Value()) < minSigningKeyBytes {
		return gwerr.New(gwerr.CodeValidation, "auth: signing key must be at least 32 bytes")
	}
	if c.TTL < 0 {
		return gwerr.New(gwerr.CodeValidation, "auth: token TTL must be non-negative")
	}
	return nil
}

// DefaultCodecConfig returns a CodecConfig with defaults applied. The
// SigningKey must still be provided by the caller.
func DefaultCodecConfig() CodecConfig {
	return CodecConfig{
		Issuer:              "gatewise-core",
		TTL:                 24 * time.Hour,
		AdminProfile:        "Administrador",
		ManagerProfile:      "Gestor",
		DefaultProfileLabel: "Usuario Básico",
	}
}

// applyDefaults fills zero-valued optional fields.
func (c *CodecConfig) applyDefaults() {
	defaults := DefaultCodecConfig()
	if c.Issuer == "" {
		c.Issuer = defaults.Issuer
	}
	if c.TTL == 0 {
		c.TTL = defaults.TTL
	}
	if c.AdminProfile == "" {
		c.AdminProfile = defaults.AdminProfile
	}
	if c.ManagerProfile == "" {
		c.ManagerProfile = defaults.ManagerProfile
	}
	if c.DefaultProfileLabel == "" {
		c.DefaultProfileLabel = defaults.DefaultProfileLabel
	}
}

// ---------------------------------------------------------------------------
// Codec — issuing and verifying local tokens
// ---------------------------------------------------------------------------

// Codec issues and verifies the service's own HMAC-signed tokens. Issued
// tokens snapshot the principal's authorities at issuance time; permission
// changes do not take effect for an outstanding local token until it is
// reissued. Verification is stateless: signature and expiry only, no
// revocation list.
//
// Codec is safe for concurrent use.
type Codec struct {
	config  CodecConfig
	catalog catalog.Store
	now     func() time.Time
}

// NewCodec creates a Codec. The catalog store supplies the principal's
// profiles at issuance time.
func NewCodec(cfg CodecConfig, store catalog.Store) (*Codec, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Codec{config: cfg, catalog: store, now: time.Now}, nil
}

// Issue signs a new token for the principal. The authority list starts from
// the baseline ROLE_USER, then adds every active permission code from every
// profile the principal holds, plus ROLE_ADMIN or ROLE_MANAGER when a held
// profile name matches the configured administrator or manager profile.
func (c *Codec) Issue(ctx context.Context, principal string) (string, error) {
	profiles, err := c.catalog.ProfilesByEmail(ctx, principal)
	if err != nil {
		return "", gwerr.Wrap(err, gwerr.CodeInternal, "auth: profile resolution failed at issuance")
	}

	authorities := []string{RoleUser}
	seen := map[string]bool{RoleUser: true}
	for _, profile := range profiles {
		if strings.EqualFold(profile.Name, c.config.AdminProfile) && !seen[RoleAdmin] {
			authorities = append(authorities, RoleAdmin)
			seen[RoleAdmin] = true
		}
		if strings.EqualFold(profile.Name, c.config.ManagerProfile) && !seen[RoleManager] {
			authorities = append(authorities, RoleManager)
			seen[RoleManager] = true
		}
		for _, perm := range profile.ActivePermissions() {
			if !seen[perm.Code] {
				authorities = append(authorities, perm.Code)
				seen[perm.Code] = true
			}
		}
	}

	profileName := c.config.DefaultProfileLabel
	if len(profiles) > 0 {
		profileName = profiles[0].Name
	}

	now := c.now()
	claims := jwt.MapClaims{
		"iss":            c.config.Issuer,
		"sub":            principal,
		"jti":            uuid.NewString(),
		"iat":            now.Unix(),
		"exp":            now.Add(c.config.TTL).Unix(),
		claimProfile:     profileName,
		claimAuthorities: authorities,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(c.config.SigningKey.Value()))
	if err != nil {
		return "", gwerr.Wrap(err, gwerr.CodeInternal, "auth: token signing failed")
	}
	return signed, nil
}

// Verify reports whether the token carries a valid signature from this
// codec's key and has not expired. Any failure, including a malformed
// token, reports false; Verify never panics and returns no error detail,
// keeping failure reasons out of the authentication surface.
func (c *Codec) Verify(tokenStr string) bool {
	_, err := c.parse(tokenStr)
	return err == nil
}

// Authorities extracts the authority list from a token. Call only after
// [Codec.Verify] has succeeded; a token that fails extraction here returns
// an authentication error.
func (c *Codec) Authorities(tokenStr string) ([]string, error) {
	token, err := c.parse(tokenStr)
	if err != nil {
		return nil, gwerr.New(gwerr.CodeAuthenticationInvalid, "auth: token cannot be verified")
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, gwerr.New(gwerr.CodeAuthenticationInvalid, "auth: token cannot be verified")
	}
	raw, ok := mc[claimAuthorities].([]any)
	if !ok {
		return nil, gwerr.New(gwerr.CodeAuthenticationInvalid, "auth: token carries no authorities claim")
	}
	authorities := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			authorities = append(authorities, s)
		}
	}
	return authorities, nil
}

// Subject extracts the principal identifier from a token. Call only after
// [Codec.Verify] has succeeded.
func (c *Codec) Subject(tokenStr string) (string, error) {
	token, err := c.parse(tokenStr)
	if err != nil {
		return "", gwerr.New(gwerr.CodeAuthenticationInvalid, "auth: token cannot be verified")
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", gwerr.New(gwerr.CodeAuthenticationInvalid, "auth: token carries no subject")
	}
	return subject, nil
}

// ProfileName extracts the display profile name embedded at issuance.
// Missing claims fall back to the configured default label.
func (c *Codec) ProfileName(tokenStr string) string {
	token, err := c.parse(tokenStr)
	if err != nil {
		return c.config.DefaultProfileLabel
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.config.DefaultProfileLabel
	}
	if name, ok := mc[claimProfile].(string); ok && name != "" {
		return name
	}
	return c.config.DefaultProfileLabel
}

// parse verifies signature, issuer, and expiry in one pass. Restricting
// accepted algorithms to HS512 prevents algorithm confusion with
// asymmetrically-signed tokens.
func (c *Codec) parse(tokenStr string) (*jwt.Token, error) {
	return jwt.Parse(tokenStr, func(*jwt.Token) (any, error) {
		return []byte(c.config.SigningKey.Value()), nil
	},
		jwt.WithValidMethods([]string{"HS512"}),
		jwt.WithIssuer(c.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
}
