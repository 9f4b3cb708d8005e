package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/govalues/money"
	"github.com/jackc/pgx/v5"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/lock"
	"github.com/tinoosan/bankledger/internal/storage"
)

// unitOfWork wraps a READ COMMITTED transaction. Row locks are released by
// Postgres at Commit or Rollback.
type unitOfWork struct {
	tx   pgx.Tx
	done bool
}

// Begin opens a transaction with lock_timeout applied for its lifetime.
func (s *Store) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	if s.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("set local lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}
	}
	return &unitOfWork{tx: tx}, nil
}

// LockAccounts issues one SELECT ... FOR UPDATE per id in ascending order so
// two transfers over the same accounts always queue in the same order.
func (u *unitOfWork) LockAccounts(ctx context.Context, ids ...int64) (map[int64]ledger.Account, error) {
	out := make(map[int64]ledger.Account, len(ids))
	for _, id := range lock.Canonical(ids...) {
		a, err := scanAccount(u.tx.QueryRow(ctx, `select `+accountCols+` from accounts where id = $1 for update`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, mapErr(err)
		}
		out[id] = a
	}
	return out, nil
}

func (u *unitOfWork) SetBalance(ctx context.Context, accountID int64, balance money.Amount) error {
	ct, err := u.tx.Exec(ctx, `update accounts set balance = $1::numeric / 100 where id = $2`, ledger.Minor(balance), accountID)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (u *unitOfWork) SetStatus(ctx context.Context, accountID int64, status ledger.AccountStatus) error {
	ct, err := u.tx.Exec(ctx, `update accounts set status = $1 where id = $2`, string(status), accountID)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (u *unitOfWork) AppendTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error) {
	err := u.tx.QueryRow(ctx, `
		insert into transactions (sender_account_id, receiver_account_id, amount, kind, description)
		values ($1, $2, $3::numeric / 100, $4, $5)
		returning id, "timestamp"
	`, t.SenderAccountID, t.ReceiverAccountID, ledger.Minor(t.Amount), string(t.Kind), t.Description).Scan(&t.ID, &t.Timestamp)
	if err != nil {
		return ledger.Transaction{}, mapErr(err)
	}
	return t, nil
}

func (u *unitOfWork) IdempotentTransaction(ctx context.Context, ownerID int64, key string) (ledger.Transaction, string, bool, error) {
	var hash string
	var t ledger.Transaction
	var kind string
	var minor int64
	err := u.tx.QueryRow(ctx, `
		select t.id, t.sender_account_id, t.receiver_account_id, (t.amount * 100)::bigint, t.kind, t.description, t."timestamp", i.request_hash
		from transfer_idempotency i
		join transactions t on t.id = i.transaction_id
		where i.owner_id = $1 and i.key = $2
	`, ownerID, key).Scan(&t.ID, &t.SenderAccountID, &t.ReceiverAccountID, &minor, &kind, &t.Description, &t.Timestamp, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Transaction{}, "", false, nil
	}
	if err != nil {
		return ledger.Transaction{}, "", false, mapErr(err)
	}
	amt, err := ledger.AmountFromMinor(minor)
	if err != nil {
		return ledger.Transaction{}, "", false, errs.Wrap(errs.KindInternal, err, "stored amount")
	}
	t.Amount = amt
	t.Kind = ledger.TransactionKind(kind)
	return t, hash, true, nil
}

func (u *unitOfWork) SaveIdempotencyKey(ctx context.Context, ownerID int64, key, requestHash string, transactionID int64) error {
	_, err := u.tx.Exec(ctx, `
		insert into transfer_idempotency (owner_id, key, request_hash, transaction_id)
		values ($1, $2, $3, $4)
	`, ownerID, key, requestHash, transactionID)
	return mapErr(err)
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return errs.E(errs.KindInternal, "unit of work is finished")
	}
	u.done = true
	return mapErr(u.tx.Commit(ctx))
}

// Rollback is a no-op after Commit.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
