package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Code
// ---------------------------------------------------------------------------

func TestCode_Category(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code Code
		want string
	}{
		{CodeValidation, "VAL"},
		{CodeInvalidTransition, "VAL"},
		{CodeAuthentication, "AUTH"},
		{CodeAuthenticationExpired, "AUTH"},
		{CodeMethodDisabled, "AUTHZ"},
		{CodeNotFoundProfile, "NF"},
		{CodeInternalDatabase, "INT"},
		{CodeTimeoutDatabase, "TIMEOUT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.Category(), "Category() for %s", tt.code)
	}
}

// ---------------------------------------------------------------------------
// Error
// ---------------------------------------------------------------------------

func TestError_ErrorString(t *testing.T) {
	t.Parallel()
	err := New(CodeAuthentication, "authentication failed")
	assert.Equal(t, "AUTH_001: authentication failed", err.Error())

	wrapped := Wrap(errors.New("boom"), CodeInternalDatabase, "query failed")
	assert.Equal(t, "INT_002: query failed: boom", wrapped.Error())
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("root cause")
	err := Wrap(cause, CodeInternal, "wrapped")

	assert.ErrorIs(t, err, cause)
}

func TestError_HTTPStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		code Code
		want int
	}{
		{"invalid transition is a bad request", CodeInvalidTransition, http.StatusBadRequest},
		{"authentication failure is unauthorized", CodeAuthentication, http.StatusUnauthorized},
		{"disabled method is forbidden", CodeMethodDisabled, http.StatusForbidden},
		{"missing profile is not found", CodeNotFoundProfile, http.StatusNotFound},
		{"throttled login is too many requests", CodeRateLimited, http.StatusTooManyRequests},
		{"database failure is internal", CodeInternalDatabase, http.StatusInternalServerError},
		{"unreachable store is unavailable", CodeUnavailableDependency, http.StatusServiceUnavailable},
		{"store timeout is gateway timeout", CodeTimeoutDatabase, http.StatusGatewayTimeout},
		{"unknown category defaults to internal", Code("X_001"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, New(tt.code, "msg").HTTPStatus())
		})
	}
}

func TestError_WithDetails(t *testing.T) {
	t.Parallel()
	base := InvalidTransition("at least one authentication method must remain enabled")
	detailed := base.WithDetails(map[string]any{"externalEnabled": true, "localEnabled": false})

	assert.Empty(t, base.Details, "WithDetails must not mutate the original")
	assert.Equal(t, true, detailed.Details["externalEnabled"])
	assert.Equal(t, false, detailed.Details["localEnabled"])
	assert.Equal(t, base.Code, detailed.Code)
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

func TestWrap_NilReturnsNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Wrap(nil, CodeInternal, "msg"))
	assert.Nil(t, Wrapf(nil, CodeInternal, "msg %d", 1))
}

func TestMethodDisabled(t *testing.T) {
	t.Parallel()
	err := MethodDisabled("local")

	assert.Equal(t, CodeMethodDisabled, err.Code)
	assert.Equal(t, http.StatusForbidden, err.HTTPStatus())
	assert.Contains(t, err.Message, "local")
}

func TestNewf(t *testing.T) {
	t.Parallel()
	err := Newf(CodeNotFoundProfile, "no profile for group %q", "g-1")
	assert.Equal(t, `NF_002: no profile for group "g-1"`, err.Error())
}

// ---------------------------------------------------------------------------
// Checks
// ---------------------------------------------------------------------------

func TestChecks(t *testing.T) {
	t.Parallel()

	authErr := Unauthorized("bad credentials")
	assert.True(t, IsAuthentication(authErr))
	assert.False(t, IsAuthorization(authErr))

	disabled := MethodDisabled("external")
	assert.True(t, IsAuthorization(disabled))
	assert.True(t, HasCode(disabled, CodeMethodDisabled))

	transition := InvalidTransition("both disabled")
	assert.True(t, IsValidation(transition))

	assert.False(t, IsValidation(errors.New("plain")))
	assert.False(t, IsAuthentication(nil))
}

func TestChecks_TraverseWrappedChain(t *testing.T) {
	t.Parallel()
	inner := MethodDisabled("local")
	outer := fmt.Errorf("rejecting request: %w", inner)

	e, ok := AsError(outer)
	require.True(t, ok)
	assert.Equal(t, CodeMethodDisabled, e.Code)
	assert.True(t, HasCode(outer, CodeMethodDisabled))
}

func TestFromError(t *testing.T) {
	t.Parallel()
	assert.Nil(t, FromError(nil))

	own := Forbidden("denied")
	assert.Same(t, own, FromError(own))

	converted := FromError(errors.New("surprise"))
	require.NotNil(t, converted)
	assert.Equal(t, CodeInternal, converted.Code)
}

func TestGetCode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, CodeAuthentication, GetCode(Unauthorized("x")))
	assert.Equal(t, Code(""), GetCode(errors.New("plain")))
	assert.Equal(t, Code(""), GetCode(nil))
}
