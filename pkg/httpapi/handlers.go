package httpapi

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/gatewise/gatewise-core/pkg/auth"
	gwerr "github.com/gatewise/gatewise-core/pkg/errors"
)

const (
	// defaultLoginRate allows one login attempt per two seconds per client
	// address, sustained.
	defaultLoginRate = rate.Limit(0.5)
	// defaultLoginBurst allows a short burst before throttling kicks in.
	defaultLoginBurst = 5

	credentialFailureMessage = "invalid credentials"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Valid bool `json:"valid"`
}

// handleLogin authenticates email/password credentials and issues a local
// token. Failures are uniform: an unknown email, an inactive user, and a
// wrong password all produce the same 401 so the response does not leak
// which accounts exist.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	enabled, err := a.guard.LocalEnabled(ctx)
	if err != nil {
		// Same posture as the gate: an unreadable flag degrades like an
		// unset one rather than blocking authentication.
		a.logger.Warn("local enablement flag unreadable, treating as enabled", "error", err)
		enabled = true
	}
	if !enabled {
		renderError(w, gwerr.MethodDisabled("local"))
		return
	}

	if !a.limiter.allow(clientAddr(r)) {
		renderError(w, gwerr.RateLimited("too many login attempts"))
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, gwerr.Validation("invalid request body"))
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		renderError(w, gwerr.Validation("email and password are required"))
		return
	}

	user, err := a.users.UserByEmail(ctx, email)
	if err != nil {
		if gwerr.IsNotFound(err) {
			a.logger.Info("login rejected, unknown user", "email", email)
			renderError(w, gwerr.Unauthorized(credentialFailureMessage))
			return
		}
		renderError(w, err)
		return
	}
	if !user.Active {
		a.logger.Info("login rejected, inactive user", "email", email)
		renderError(w, gwerr.Unauthorized(credentialFailureMessage))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		a.logger.Info("login rejected, password mismatch", "email", email)
		renderError(w, gwerr.Unauthorized(credentialFailureMessage))
		return
	}

	token, err := a.codec.Issue(ctx, user.Email)
	if err != nil {
		renderError(w, err)
		return
	}

	a.logger.Info("login succeeded", "email", email)
	renderJSON(w, http.StatusOK, loginResponse{Token: token})
}

// handleValidate checks a locally issued token's signature, issuer, and
// expiry. It always answers 200; the verdict travels in the body.
func (a *API) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, gwerr.Validation("invalid request body"))
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(req.Token), "Bearer "))
	if token == "" {
		renderError(w, gwerr.Validation("token is required"))
		return
	}
	renderJSON(w, http.StatusOK, validateResponse{Valid: a.codec.Verify(token)})
}

type identityResponse struct {
	Principal       string   `json:"principal"`
	DisplayName     string   `json:"display_name,omitempty"`
	Authorities     []string `json:"authorities"`
	Source          string   `json:"source"`
	Profiles        []string `json:"profiles"`
	PermissionCodes []string `json:"permission_codes"`
}

// handleMe returns the identity the gate installed for this request,
// enriched with the profiles and permission codes currently in effect.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	info, err := a.resolver.CurrentUser(r.Context(), identity)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, identityResponse{
		Principal:       identity.Principal,
		DisplayName:     identity.DisplayName,
		Authorities:     identity.Authorities,
		Source:          string(identity.Source),
		Profiles:        info.Profiles,
		PermissionCodes: info.PermissionCodes,
	})
}

type permissionResponse struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Module string `json:"module"`
	Action string `json:"action"`
}

// handlePermissions resolves the caller's effective permissions from the
// catalog. Resolution happens on every call so revocations take effect
// without reissuing tokens.
func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	permissions, err := a.resolver.Resolve(r.Context(), identity)
	if err != nil {
		renderError(w, err)
		return
	}
	out := make([]permissionResponse, 0, len(permissions))
	for _, p := range permissions {
		out = append(out, permissionResponse{
			Code:   p.Code,
			Name:   p.Name,
			Module: p.Module,
			Action: p.Action,
		})
	}
	renderJSON(w, http.StatusOK, out)
}

// handleAuthStatus reports which authentication methods are currently
// enabled. The endpoint is readable without authentication so login pages
// can decide which flows to offer.
func (a *API) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	status, err := a.guard.Status(r.Context())
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, status)
}

type updateMethodsRequest struct {
	ExternalEnabled *bool `json:"external_enabled"`
	LocalEnabled    *bool `json:"local_enabled"`
}

// handleUpdateMethods applies an enablement change. A change that would
// disable both methods is refused with a 400 carrying the current state.
func (a *API) handleUpdateMethods(w http.ResponseWriter, r *http.Request) {
	var req updateMethodsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, gwerr.Validation("invalid request body"))
		return
	}
	if req.ExternalEnabled == nil && req.LocalEnabled == nil {
		renderError(w, gwerr.Validation("no method flags provided"))
		return
	}
	if err := a.guard.Update(r.Context(), req.ExternalEnabled, req.LocalEnabled); err != nil {
		renderError(w, err)
		return
	}
	status, err := a.guard.Status(r.Context())
	if err != nil {
		renderError(w, err)
		return
	}
	identity := auth.MustIdentityFromContext(r.Context())
	a.logger.Info("authentication methods updated",
		"by", identity.Principal,
		"external_enabled", status.ExternalEnabled,
		"local_enabled", status.LocalEnabled,
	)
	renderJSON(w, http.StatusOK, status)
}

// ---------------------------------------------------------------------------
// Login rate limiting
// ---------------------------------------------------------------------------

// loginLimiter throttles login attempts per client address.
type loginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newLoginLimiter(limit rate.Limit, burst int) *loginLimiter {
	return &loginLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (l *loginLimiter) allow(addr string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[addr]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[addr] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// clientAddr extracts the client address. middleware.RealIP has already
// rewritten RemoteAddr from forwarding headers when present.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
