package v1

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/tinoosan/bankledger/internal/ledger"
)

// patchAccountStatus handles PATCH /v1/admin/accounts/{id}/status.
// Freezes, unfreezes or closes an account; Closed is terminal.
func (s *Server) patchAccountStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(chi.URLParam(r, "id"))
	if !ok {
		badRequest(w, "invalid account id")
		return
	}
	var req patchStatusRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	acc, err := s.accounts.SetStatus(r.Context(), principal(r).UserID, id, ledger.AccountStatus(req.Status))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(acc))
}
