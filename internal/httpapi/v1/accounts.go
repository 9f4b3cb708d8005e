package v1

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/tinoosan/bankledger/internal/ledger"
)

// GET /v1/accounts
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accs, err := s.query.AccountsForOwner(r.Context(), principal(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, accountList(accs))
}

// POST /v1/accounts opens an account for the caller.
func (s *Server) postAccount(w http.ResponseWriter, r *http.Request) {
	var req postAccountRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	p := principal(r)
	acc, err := s.accounts.Create(r.Context(), p.UserID, p.UserID, ledger.AccountType(req.Type))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toAccountResponse(acc))
}

// GET /v1/accounts/{id}; someone else's account is indistinguishable from a missing one.
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(chi.URLParam(r, "id"))
	if !ok {
		badRequest(w, "invalid account id")
		return
	}
	acc, err := s.query.Account(r.Context(), principal(r).UserID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(acc))
}

// POST /v1/admin/accounts opens an account for any user.
func (s *Server) postAdminAccount(w http.ResponseWriter, r *http.Request) {
	var req postAdminAccountRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	acc, err := s.accounts.Create(r.Context(), principal(r).UserID, req.UserID, ledger.AccountType(req.Type))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toAccountResponse(acc))
}

// GET /v1/admin/accounts
func (s *Server) listAllAccounts(w http.ResponseWriter, r *http.Request) {
	accs, err := s.query.AllAccounts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, accountList(accs))
}
