package v1

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/auth"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/service/transfer"
)

// POST /v1/transactions/internal
func (s *Server) postInternalTransfer(w http.ResponseWriter, r *http.Request) {
	var req internalTransferRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	key, ok := idempotencyKey(w, r)
	if !ok {
		return
	}
	amt, err := ledger.ParseAmount(req.Amount.String())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p := principal(r)
	policy := transfer.OwnedByCaller
	if p.Has(auth.TransferInternalAny) {
		policy = transfer.AnyAccount
	}
	tx, err := s.transfers.InternalTransfer(r.Context(), transfer.InternalTransferRequest{
		OwnerID:           p.UserID,
		SenderAccountID:   req.SenderAccountID,
		ReceiverAccountID: req.ReceiverAccountID,
		Amount:            amt,
		Description:       req.Description,
		Policy:            policy,
		IdempotencyKey:    key,
	})
	s.respondTransaction(w, r, tx, err)
}

// POST /v1/transactions/external
func (s *Server) postExternalTransfer(w http.ResponseWriter, r *http.Request) {
	var req externalTransferRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	key, ok := idempotencyKey(w, r)
	if !ok {
		return
	}
	amt, err := ledger.ParseAmount(req.Amount.String())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tx, err := s.transfers.ExternalTransfer(r.Context(), transfer.ExternalTransferRequest{
		OwnerID:               principal(r).UserID,
		SenderAccountID:       req.SenderAccountID,
		ReceiverAccountNumber: req.ReceiverAccountNumber,
		Amount:                amt,
		Description:           req.Description,
		IdempotencyKey:        key,
	})
	s.respondTransaction(w, r, tx, err)
}

// POST /v1/transactions/deposit
func (s *Server) postDeposit(w http.ResponseWriter, r *http.Request) {
	req, amt, key, ok := s.singleAccount(w, r)
	if !ok {
		return
	}
	tx, err := s.transfers.Deposit(r.Context(), transfer.DepositRequest{
		OwnerID:        principal(r).UserID,
		AccountID:      req.AccountID,
		Amount:         amt,
		Description:    req.Description,
		IdempotencyKey: key,
	})
	s.respondTransaction(w, r, tx, err)
}

// POST /v1/transactions/withdraw
func (s *Server) postWithdraw(w http.ResponseWriter, r *http.Request) {
	req, amt, key, ok := s.singleAccount(w, r)
	if !ok {
		return
	}
	tx, err := s.transfers.Withdraw(r.Context(), transfer.WithdrawRequest{
		OwnerID:        principal(r).UserID,
		AccountID:      req.AccountID,
		Amount:         amt,
		Description:    req.Description,
		IdempotencyKey: key,
	})
	s.respondTransaction(w, r, tx, err)
}

// POST /v1/transactions/topup credits any account. Top-ups carry no
// idempotency key; the header is ignored.
func (s *Server) postTopUp(w http.ResponseWriter, r *http.Request) {
	req, amt, _, ok := s.singleAccount(w, r)
	if !ok {
		return
	}
	tx, err := s.transfers.AdminTopUp(r.Context(), transfer.TopUpRequest{
		ActorID:     principal(r).UserID,
		AccountID:   req.AccountID,
		Amount:      amt,
		Description: req.Description,
	})
	s.respondTransaction(w, r, tx, err)
}

func (s *Server) singleAccount(w http.ResponseWriter, r *http.Request) (singleAccountRequest, money.Amount, string, bool) {
	var req singleAccountRequest
	if !s.decodeBody(w, r, &req) {
		return req, money.Amount{}, "", false
	}
	key, ok := idempotencyKey(w, r)
	if !ok {
		return req, money.Amount{}, "", false
	}
	amt, err := ledger.ParseAmount(req.Amount.String())
	if err != nil {
		s.writeError(w, r, err)
		return req, money.Amount{}, "", false
	}
	return req, amt, key, true
}

func (s *Server) respondTransaction(w http.ResponseWriter, r *http.Request, tx ledger.Transaction, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

// GET /v1/transactions
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.query.TransactionsForOwner(r.Context(), principal(r).UserID, listFilter(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, transactionList(txs))
}

// GET /v1/admin/transactions
func (s *Server) listAllTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.query.AllTransactions(r.Context(), listFilter(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, transactionList(txs))
}

// GET /v1/transactions/top?account_id=&n=
func (s *Server) topTransactions(w http.ResponseWriter, r *http.Request) {
	s.topN(w, r, true)
}

// GET /v1/transactions/recent?account_id=&n=
func (s *Server) recentTransactions(w http.ResponseWriter, r *http.Request) {
	s.topN(w, r, false)
}

func (s *Server) topN(w http.ResponseWriter, r *http.Request, byAmount bool) {
	q := r.URL.Query()
	var accountID int64
	if raw := q.Get("account_id"); raw != "" {
		id, ok := pathID(raw)
		if !ok {
			badRequest(w, "invalid account_id")
			return
		}
		accountID = id
	}
	n, err := intParam(q, "n")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	owner := principal(r).UserID
	var txs []ledger.Transaction
	if byAmount {
		txs, err = s.query.TopByAmount(r.Context(), owner, accountID, n)
	} else {
		txs, err = s.query.Recent(r.Context(), owner, accountID, n)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, transactionList(txs))
}

// GET /v1/transactions/export renders the filtered listing as a plain-text statement.
func (s *Server) exportTransactions(w http.ResponseWriter, r *http.Request) {
	st, err := s.query.Statement(r.Context(), principal(r).UserID, listFilter(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := st.WriteText(&buf); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="statement.txt"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
