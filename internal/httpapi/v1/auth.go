package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/tinoosan/bankledger/internal/auth"
)

// Trusted-header mode, for local development and tests.
const (
	headerUserID      = "X-User-ID"
	headerPermissions = "X-Permissions"
	headerRoles       = "X-Roles"
)

func parseBearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < len("Bearer ") || !strings.EqualFold(h[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[len("Bearer "):])
	return tok, tok != ""
}

// authenticate puts the caller's Principal in the request context. With a
// verifier it requires an HS256 bearer token; otherwise it trusts the
// X-User-ID, X-Permissions and X-Roles headers set by an upstream gateway.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			p   auth.Principal
			err error
		)
		if s.verifier != nil {
			tok, ok := parseBearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}
			if p, err = s.verifier.Verify(tok); err != nil {
				s.log.Debug("token rejected", "err", err)
				unauthorized(w)
				return
			}
		} else {
			uid, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(headerUserID)), 10, 64)
			if err != nil || uid <= 0 {
				unauthorized(w)
				return
			}
			p = auth.NewPrincipal(uid, splitList(r.Header.Get(headerPermissions)), splitList(r.Header.Get(headerRoles)))
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

// require admits callers holding any of perms, or the admin role.
func require(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.FromContext(r.Context())
			if !ok {
				unauthorized(w)
				return
			}
			if !p.Has(perms...) {
				forbidden(w, "missing permission "+strings.Join(perms, " or "))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

func splitList(h string) []string {
	return strings.FieldsFunc(h, func(r rune) bool { return r == ',' || r == ' ' })
}
