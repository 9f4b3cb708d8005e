package auth

import (
	"context"
	"slices"
	"strings"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID      int64
	Permissions []string
	Roles       []string
}

// NewPrincipal builds a Principal whose permissions are the explicit ones
// plus everything its roles grant. Codes are trimmed, de-duplicated and sorted;
// codes outside the catalog are dropped.
func NewPrincipal(userID int64, permissions, roleNames []string) Principal {
	perms := make([]string, 0, len(permissions))
	var rs []string
	for _, r := range roleNames {
		if r = strings.TrimSpace(r); r != "" {
			rs = append(rs, r)
			perms = append(perms, PermissionsFor(r)...)
		}
	}
	for _, p := range permissions {
		if p = strings.TrimSpace(p); Known(p) {
			perms = append(perms, p)
		}
	}
	slices.Sort(perms)
	slices.Sort(rs)
	return Principal{UserID: userID, Permissions: slices.Compact(perms), Roles: slices.Compact(rs)}
}

func (p Principal) IsAdmin() bool { return slices.Contains(p.Roles, RoleAdmin) }

// Has reports whether p holds at least one of required. Admins hold everything.
func (p Principal) Has(required ...string) bool {
	if p.IsAdmin() {
		return true
	}
	for _, r := range required {
		if slices.Contains(p.Permissions, r) {
			return true
		}
	}
	return false
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the caller, if the gate set one.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
