package errors

// Code is a machine-readable error code categorizing an error condition.
// Codes follow the pattern CATEGORY_NNN where CATEGORY is a short prefix
// (VAL, AUTH, AUTHZ, ...) and NNN is a three-digit number. The category
// determines the HTTP status class via [Error.HTTPStatus].
//
// Codes are stable: once assigned they are never renumbered, so clients
// and dashboards may match on them.
type Code string

// Error code categories and their HTTP status classes:
//
//	VAL_xxx     - Validation errors (400 Bad Request)
//	AUTH_xxx    - Authentication errors (401 Unauthorized)
//	AUTHZ_xxx   - Authorization errors (403 Forbidden)
//	NF_xxx      - Not found errors (404 Not Found)
//	RATE_xxx    - Rate limit errors (429 Too Many Requests)
//	INT_xxx     - Internal errors (500 Internal Server Error)
//	UNAVAIL_xxx - Service unavailable (503 Service Unavailable)
//	TIMEOUT_xxx - Timeout errors (504 Gateway Timeout)
const (
	// Validation errors (VAL_xxx) - HTTP 400

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationFormat indicates a field has an invalid format.
	CodeValidationFormat Code = "VAL_003"

	// CodeInvalidTransition indicates a configuration change that would
	// leave the system in a forbidden state, such as disabling every
	// authentication method at once. The change is rejected and the
	// stored configuration is left untouched.
	CodeInvalidTransition Code = "VAL_004"

	// Authentication errors (AUTH_xxx) - HTTP 401

	// CodeAuthentication indicates a general authentication failure.
	// This is deliberately unspecific: failed credential checks never
	// reveal whether the token, the account, or the password was at fault.
	CodeAuthentication Code = "AUTH_001"

	// CodeAuthenticationExpired indicates the token has expired.
	CodeAuthenticationExpired Code = "AUTH_002"

	// CodeAuthenticationInvalid indicates the token is malformed or its
	// signature does not verify.
	CodeAuthenticationInvalid Code = "AUTH_003"

	// Authorization errors (AUTHZ_xxx) - HTTP 403

	// CodeAuthorization indicates a general authorization failure.
	CodeAuthorization Code = "AUTHZ_001"

	// CodeAuthorizationDenied indicates the authenticated principal lacks
	// a required permission.
	CodeAuthorizationDenied Code = "AUTHZ_002"

	// CodeMethodDisabled indicates the request presented a token for an
	// authentication method an operator has switched off. Unlike other
	// authentication failures this one is intentionally explicit: it is
	// an operator decision, not a credential-guessing surface.
	CodeMethodDisabled Code = "AUTHZ_003"

	// Not found errors (NF_xxx) - HTTP 404

	// CodeNotFound indicates a general not found error.
	CodeNotFound Code = "NF_001"

	// CodeNotFoundProfile indicates no profile matched the lookup.
	CodeNotFoundProfile Code = "NF_002"

	// Rate limit errors (RATE_xxx) - HTTP 429

	// CodeRateLimited indicates the caller exceeded a request rate limit,
	// such as repeated login attempts from one address.
	CodeRateLimited Code = "RATE_001"

	// Internal errors (INT_xxx) - HTTP 500

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalDatabase indicates a catalog store operation failed.
	CodeInternalDatabase Code = "INT_002"

	// CodeInternalConfiguration indicates a component was constructed
	// with an unusable configuration.
	CodeInternalConfiguration Code = "INT_003"

	// Unavailable errors (UNAVAIL_xxx) - HTTP 503

	// CodeUnavailable indicates a general service unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableDependency indicates a backing store is unreachable.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// Timeout errors (TIMEOUT_xxx) - HTTP 504

	// CodeTimeout indicates a general timeout error.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutDatabase indicates a catalog store operation timed out.
	CodeTimeoutDatabase Code = "TIMEOUT_002"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "VAL", "AUTHZ").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
