// Package query serves read-only views of accounts and the ledger. It takes no
// account locks; stores guarantee a committed transfer is seen whole or not at all.
package query

import (
	"context"
	"slices"
	"time"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/report"
	"github.com/tinoosan/bankledger/internal/storage"
)

// DefaultTopN is how many rows TopByAmount and Recent return when n <= 0.
const DefaultTopN = 5

// MaxTopN caps n for TopByAmount and Recent.
const MaxTopN = 100

// DefaultListLimit applies when a listing does not set a limit.
const DefaultListLimit = 100

type Reader interface {
	storage.AccountReader
	storage.TransactionReader
}

type Service interface {
	AccountsForOwner(ctx context.Context, ownerID int64) ([]ledger.Account, error)
	Account(ctx context.Context, ownerID, accountID int64) (ledger.Account, error)
	AllAccounts(ctx context.Context) ([]ledger.Account, error)
	TransactionsForOwner(ctx context.Context, ownerID int64, f ledger.TransactionFilter) ([]ledger.Transaction, error)
	TopByAmount(ctx context.Context, ownerID, accountID int64, n int) ([]ledger.Transaction, error)
	Recent(ctx context.Context, ownerID, accountID int64, n int) ([]ledger.Transaction, error)
	AllTransactions(ctx context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error)
	Statement(ctx context.Context, ownerID int64, f ledger.TransactionFilter) (report.Statement, error)
}

type service struct {
	repo Reader
	now  func() time.Time
}

func New(repo Reader) Service { return &service{repo: repo, now: time.Now} }

func (s *service) AccountsForOwner(ctx context.Context, ownerID int64) ([]ledger.Account, error) {
	return s.repo.AccountsByOwner(ctx, ownerID)
}

// Account returns the account only if ownerID owns it; otherwise not found.
func (s *service) Account(ctx context.Context, ownerID, accountID int64) (ledger.Account, error) {
	acc, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return ledger.Account{}, err
	}
	if acc.OwnerID != ownerID {
		return ledger.Account{}, errs.ErrNotFound
	}
	return acc, nil
}

func (s *service) AllAccounts(ctx context.Context) ([]ledger.Account, error) {
	return s.repo.ListAccounts(ctx)
}

// TransactionsForOwner lists rows touching any of the owner's accounts,
// newest first unless f.Order says otherwise. f.AccountIDs may only narrow the
// owner's accounts; a foreign id yields invalid_account.
func (s *service) TransactionsForOwner(ctx context.Context, ownerID int64, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	scoped, err := s.scope(ctx, ownerID, f)
	if err != nil {
		return nil, err
	}
	if len(scoped.AccountIDs) == 0 {
		return []ledger.Transaction{}, nil
	}
	return s.repo.ListTransactions(ctx, withDefaults(scoped))
}

func (s *service) TopByAmount(ctx context.Context, ownerID, accountID int64, n int) ([]ledger.Transaction, error) {
	return s.topN(ctx, ownerID, accountID, n, ledger.OrderAmountDesc)
}

func (s *service) Recent(ctx context.Context, ownerID, accountID int64, n int) ([]ledger.Transaction, error) {
	return s.topN(ctx, ownerID, accountID, n, ledger.OrderNewest)
}

func (s *service) topN(ctx context.Context, ownerID, accountID int64, n int, order ledger.Order) ([]ledger.Transaction, error) {
	if n <= 0 {
		n = DefaultTopN
	}
	if n > MaxTopN {
		n = MaxTopN
	}
	f := ledger.TransactionFilter{Order: order, Limit: n}
	if accountID != 0 {
		f.AccountIDs = []int64{accountID}
	}
	return s.TransactionsForOwner(ctx, ownerID, f)
}

// AllTransactions is the privileged, unscoped listing.
func (s *service) AllTransactions(ctx context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, withDefaults(f))
}

// Statement applies the same filter semantics as TransactionsForOwner but
// ignores paging so the totals cover every matching row.
func (s *service) Statement(ctx context.Context, ownerID int64, f ledger.TransactionFilter) (report.Statement, error) {
	scoped, err := s.scope(ctx, ownerID, f)
	if err != nil {
		return report.Statement{}, err
	}
	txs := []ledger.Transaction{}
	if len(scoped.AccountIDs) > 0 {
		scoped.Limit, scoped.Offset = 0, 0
		txs, err = s.repo.ListTransactions(ctx, scoped)
		if err != nil {
			return report.Statement{}, err
		}
	}
	return report.NewStatement(ownerID, txs, f, s.now())
}

func (s *service) scope(ctx context.Context, ownerID int64, f ledger.TransactionFilter) (ledger.TransactionFilter, error) {
	if err := f.Validate(); err != nil {
		return f, err
	}
	accs, err := s.repo.AccountsByOwner(ctx, ownerID)
	if err != nil {
		return f, err
	}
	owned := make([]int64, 0, len(accs))
	for _, a := range accs {
		owned = append(owned, a.ID)
	}
	if len(f.AccountIDs) == 0 {
		f.AccountIDs = owned
		return f, nil
	}
	for _, id := range f.AccountIDs {
		if !slices.Contains(owned, id) {
			return f, errs.E(errs.KindInvalidAccount, "account %d not found", id)
		}
	}
	return f, nil
}

func withDefaults(f ledger.TransactionFilter) ledger.TransactionFilter {
	if f.Order == "" {
		f.Order = ledger.OrderNewest
	}
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	return f
}
