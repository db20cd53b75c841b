package auth

import "strings"

// Claims is a decoded external token payload. Identity providers emit these
// with considerable shape variance, so the accessors below resolve each
// logical field through an explicit priority list instead of branching at
// call sites.
type Claims map[string]any

// Email resolves the principal's email address, trying email, then
// preferred_username, then upn. The result is lowercased. Returns "" when
// none of the claims are present.
func (c Claims) Email() string {
	for _, key := range []string{"email", "preferred_username", "upn"} {
		if v := c.stringClaim(key); v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}

// DisplayName resolves a human-readable name, trying name first, then
// assembling given_name and family_name. Returns "" when nothing usable is
// present.
func (c Claims) DisplayName() string {
	if v := c.stringClaim("name"); v != "" {
		return v
	}
	given := c.stringClaim("given_name")
	family := c.stringClaim("family_name")
	switch {
	case given != "" && family != "":
		return given + " " + family
	case given != "":
		return given
	}
	return ""
}

// GroupIDs returns the union of the "groups" and "roles" claims, in claim
// order with groups first. Both claims are equivalent sources of group
// identifiers; some provider configurations emit one, some the other, some
// both. Duplicates are preserved.
func (c Claims) GroupIDs() []string {
	var ids []string
	ids = append(ids, c.stringListClaim("groups")...)
	ids = append(ids, c.stringListClaim("roles")...)
	return ids
}

// Subject returns the "sub" claim, or "" when absent.
func (c Claims) Subject() string {
	return c.stringClaim("sub")
}

func (c Claims) stringClaim(key string) string {
	v, _ := c[key].(string)
	return v
}

// stringListClaim reads a claim that may be decoded as []any (from JSON) or
// already be []string. Non-string elements are skipped.
func (c Claims) stringListClaim(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}
