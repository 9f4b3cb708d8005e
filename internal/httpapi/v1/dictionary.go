package v1

import (
	"net/http"

	"github.com/tinoosan/bankledger/internal/auth"
)

// GET /v1/dictionary/permissions?group=
func (s *Server) getPermissionsDictionary(w http.ResponseWriter, r *http.Request) {
	type roleItem struct {
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
	}
	out := struct {
		Permissions []auth.PermissionDef `json:"permissions"`
		Roles       []roleItem           `json:"roles"`
	}{Permissions: auth.Catalog(r.URL.Query().Get("group")), Roles: []roleItem{}}
	for _, role := range auth.Roles() {
		out.Roles = append(out.Roles, roleItem{Role: role, Permissions: auth.PermissionsFor(role)})
	}
	toJSON(w, http.StatusOK, out)
}
