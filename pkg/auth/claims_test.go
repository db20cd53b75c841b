package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaims_Email_PriorityOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		claims Claims
		want   string
	}{
		{"email wins", Claims{"email": "A@X.com", "preferred_username": "b@x.com", "upn": "c@x.com"}, "a@x.com"},
		{"preferred_username second", Claims{"preferred_username": "B@X.com", "upn": "c@x.com"}, "b@x.com"},
		{"upn last", Claims{"upn": "C@X.com"}, "c@x.com"},
		{"nothing present", Claims{"sub": "abc"}, ""},
		{"empty email falls through", Claims{"email": "", "upn": "c@x.com"}, "c@x.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.claims.Email())
		})
	}
}

func TestClaims_DisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		claims Claims
		want   string
	}{
		{"name claim", Claims{"name": "Ana García"}, "Ana García"},
		{"given and family", Claims{"given_name": "Ana", "family_name": "García"}, "Ana García"},
		{"given only", Claims{"given_name": "Ana"}, "Ana"},
		{"nothing", Claims{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.claims.DisplayName())
		})
	}
}

func TestClaims_GroupIDs_UnionPreservesOrderAndDuplicates(t *testing.T) {
	t.Parallel()

	claims := Claims{
		"groups": []any{"g1", "g2"},
		"roles":  []any{"g2", "g3"},
	}
	assert.Equal(t, []string{"g1", "g2", "g2", "g3"}, claims.GroupIDs())
}

func TestClaims_GroupIDs_SingleClaim(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"g1"}, Claims{"groups": []any{"g1"}}.GroupIDs())
	assert.Equal(t, []string{"r1"}, Claims{"roles": []string{"r1"}}.GroupIDs())
	assert.Empty(t, Claims{}.GroupIDs())
}

func TestClaims_GroupIDs_SkipsNonStrings(t *testing.T) {
	t.Parallel()

	claims := Claims{"groups": []any{"g1", 42, nil, "g2"}}
	assert.Equal(t, []string{"g1", "g2"}, claims.GroupIDs())
}
