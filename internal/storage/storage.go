// Package storage declares the unit-of-work contract shared by the memory and
// Postgres stores. Services depend on these interfaces, never on a backend.
package storage

import (
	"context"

	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/ledger"
)

// UnitOfWork is one atomic scope. Locks taken by LockAccounts are held until
// Commit or Rollback; nothing is visible to readers before Commit.
// Rollback after Commit is a no-op, so callers can always defer it.
type UnitOfWork interface {
	// LockAccounts takes exclusive locks on ids in canonical order and returns
	// the current state of the accounts that exist. Missing ids are absent
	// from the map.
	LockAccounts(ctx context.Context, ids ...int64) (map[int64]ledger.Account, error)
	SetBalance(ctx context.Context, accountID int64, balance money.Amount) error
	SetStatus(ctx context.Context, accountID int64, status ledger.AccountStatus) error
	// AppendTransaction assigns ID and Timestamp and returns the stored row.
	AppendTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error)
	// IdempotentTransaction looks up a previously committed request by key.
	IdempotentTransaction(ctx context.Context, ownerID int64, key string) (tx ledger.Transaction, requestHash string, found bool, err error)
	SaveIdempotencyKey(ctx context.Context, ownerID int64, key, requestHash string, transactionID int64) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Beginner opens units of work.
type Beginner interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// AccountReader is the lock-free read side for accounts.
type AccountReader interface {
	GetAccount(ctx context.Context, id int64) (ledger.Account, error)
	AccountByNumber(ctx context.Context, number string) (ledger.Account, error)
	AccountsByOwner(ctx context.Context, ownerID int64) ([]ledger.Account, error)
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
}

// TransactionReader is the lock-free read side for the ledger.
type TransactionReader interface {
	ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error)
}

// AccountCreator provisions new accounts with a zero balance.
type AccountCreator interface {
	CreateAccount(ctx context.Context, ownerID int64, typ ledger.AccountType) (ledger.Account, error)
}
