package auth

import (
	"context"
	"log/slog"

	"github.com/gatewise/gatewise-core/pkg/catalog"
)

// Converter turns a verified external token's claims into an authority
// list. It runs after the external pipeline has fully verified the token;
// the claims it receives are trusted.
type Converter struct {
	catalog catalog.Store
	logger  *slog.Logger
}

// NewConverter creates a Converter over the given catalog store. A nil
// logger falls back to [slog.Default].
func NewConverter(store catalog.Store, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{catalog: store, logger: logger}
}

// Convert maps external claims to authorities. For each group identifier on
// the token (the union of the groups and roles claims, order preserved,
// duplicates kept) it emits GROUP_<id>, then looks the group up in the
// catalog; a found profile additionally contributes its role authority and
// every active permission code. A failed lookup, whether no-such-profile or
// a catalog error, is logged and skipped so one bad group never poisons the
// rest. Convert never fails; a token with no group claims simply yields no
// group- or role-derived authorities.
func (cv *Converter) Convert(ctx context.Context, claims Claims) []string {
	authorities := []string{}
	for _, groupID := range claims.GroupIDs() {
		authorities = append(authorities, GroupAuthorityPrefix+groupID)

		profile, err := cv.catalog.ProfileByGroupID(ctx, groupID)
		if err != nil {
			cv.logger.Warn("no profile resolved for group, continuing",
				"group_id", groupID, "error", err)
			continue
		}

		authorities = append(authorities, RoleAuthorityPrefix+profile.RoleName())
		for _, perm := range profile.ActivePermissions() {
			authorities = append(authorities, perm.Code)
		}
	}
	return authorities
}
