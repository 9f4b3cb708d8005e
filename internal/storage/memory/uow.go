package memory

import (
	"context"

	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/storage"
)

// unitOfWork stages every mutation and applies them under a single write lock
// on Commit. Account locks are held from LockAccounts until Commit/Rollback.
type unitOfWork struct {
	s        *Store
	release  func()
	locked   map[int64]bool
	balances map[int64]money.Amount
	statuses map[int64]ledger.AccountStatus
	txs      []ledger.Transaction
	idem     map[idemKey]idemRecord
	done     bool
}

// Begin opens a unit of work.
func (s *Store) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &unitOfWork{
		s:        s,
		locked:   make(map[int64]bool),
		balances: make(map[int64]money.Amount),
		statuses: make(map[int64]ledger.AccountStatus),
		idem:     make(map[idemKey]idemRecord),
	}, nil
}

func (u *unitOfWork) LockAccounts(ctx context.Context, ids ...int64) (map[int64]ledger.Account, error) {
	if u.done {
		return nil, errs.E(errs.KindInternal, "unit of work is finished")
	}
	if u.release != nil {
		return nil, errs.E(errs.KindInternal, "accounts are already locked")
	}
	release, err := u.s.locks.Acquire(ctx, u.s.lockTimeout, ids...)
	if err != nil {
		return nil, err
	}
	u.release = release

	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	out := make(map[int64]ledger.Account, len(ids))
	for _, id := range ids {
		u.locked[id] = true
		if a, ok := u.s.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (u *unitOfWork) mustHold(id int64) error {
	if u.done {
		return errs.E(errs.KindInternal, "unit of work is finished")
	}
	if !u.locked[id] {
		return errs.E(errs.KindInternal, "account %d is not locked by this unit of work", id)
	}
	return nil
}

func (u *unitOfWork) SetBalance(_ context.Context, accountID int64, balance money.Amount) error {
	if err := u.mustHold(accountID); err != nil {
		return err
	}
	if ledger.Minor(balance) < 0 {
		return errs.E(errs.KindInsufficientFunds, "balance of account %d would become negative", accountID)
	}
	u.balances[accountID] = balance
	return nil
}

func (u *unitOfWork) SetStatus(_ context.Context, accountID int64, status ledger.AccountStatus) error {
	if err := u.mustHold(accountID); err != nil {
		return err
	}
	u.statuses[accountID] = status
	return nil
}

func (u *unitOfWork) AppendTransaction(_ context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	if u.done {
		return ledger.Transaction{}, errs.E(errs.KindInternal, "unit of work is finished")
	}
	tx.ID = u.s.nextTxID.Add(1)
	tx.Timestamp = u.s.now().UTC()
	u.txs = append(u.txs, tx)
	return tx, nil
}

func (u *unitOfWork) IdempotentTransaction(_ context.Context, ownerID int64, key string) (ledger.Transaction, string, bool, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	rec, ok := u.s.idem[idemKey{OwnerID: ownerID, Key: key}]
	if !ok {
		return ledger.Transaction{}, "", false, nil
	}
	i, ok := u.s.txByID[rec.TransactionID]
	if !ok {
		return ledger.Transaction{}, "", false, errs.E(errs.KindInternal, "idempotency key %q points at missing transaction %d", key, rec.TransactionID)
	}
	return u.s.txs[i], rec.RequestHash, true, nil
}

func (u *unitOfWork) SaveIdempotencyKey(_ context.Context, ownerID int64, key, requestHash string, transactionID int64) error {
	if u.done {
		return errs.E(errs.KindInternal, "unit of work is finished")
	}
	u.idem[idemKey{OwnerID: ownerID, Key: key}] = idemRecord{RequestHash: requestHash, TransactionID: transactionID}
	return nil
}

// Commit applies the staged changes atomically and releases the account locks.
func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return errs.E(errs.KindInternal, "unit of work is finished")
	}
	if err := ctx.Err(); err != nil {
		_ = u.Rollback(ctx)
		return err
	}
	s := u.s
	s.mu.Lock()
	for k := range u.idem {
		if _, taken := s.idem[k]; taken {
			s.mu.Unlock()
			_ = u.Rollback(ctx)
			return errs.E(errs.KindConflict, "idempotency key %q is already in use", k.Key)
		}
	}
	for id, bal := range u.balances {
		a := s.accounts[id]
		a.Balance = bal
		s.accounts[id] = a
	}
	for id, st := range u.statuses {
		a := s.accounts[id]
		a.Status = st
		s.accounts[id] = a
	}
	for _, tx := range u.txs {
		s.txByID[tx.ID] = len(s.txs)
		s.txs = append(s.txs, tx)
	}
	for k, rec := range u.idem {
		s.idem[k] = rec
	}
	s.mu.Unlock()

	u.done = true
	if u.release != nil {
		u.release()
	}
	return nil
}

// Rollback discards staged changes. It is a no-op once the unit is finished.
func (u *unitOfWork) Rollback(_ context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if u.release != nil {
		u.release()
	}
	return nil
}
