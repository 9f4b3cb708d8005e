// Package postgres provides a pgx-backed store. Money columns are
// numeric(15,2) and cross the wire as integer minor units, so no float or
// string parsing is involved. Row locks are taken with SELECT ... FOR UPDATE
// in canonical order under a per-transaction lock_timeout.
package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/bankledger/internal/accountno"
	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
)

// DefaultLockTimeout bounds how long a unit of work waits for row locks.
const DefaultLockTimeout = 5 * time.Second

const accountCols = `id, account_number, user_id, type, (balance * 100)::bigint, status, created_at`
const transactionCols = `id, sender_account_id, receiver_account_id, (amount * 100)::bigint, kind, description, "timestamp"`

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout overrides DefaultLockTimeout. Zero disables the bound.
func WithLockTimeout(d time.Duration) Option { return func(s *Store) { s.lockTimeout = d } }

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s := &Store{pool: pool, lockTimeout: DefaultLockTimeout}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	var typ, status string
	var minor int64
	if err := row.Scan(&a.ID, &a.Number, &a.OwnerID, &typ, &minor, &status, &a.CreatedAt); err != nil {
		return ledger.Account{}, err
	}
	bal, err := ledger.AmountFromMinor(minor)
	if err != nil {
		return ledger.Account{}, err
	}
	a.Type = ledger.AccountType(typ)
	a.Status = ledger.AccountStatus(status)
	a.Balance = bal
	return a, nil
}

func scanTransaction(row pgx.Row) (ledger.Transaction, error) {
	var t ledger.Transaction
	var kind string
	var minor int64
	if err := row.Scan(&t.ID, &t.SenderAccountID, &t.ReceiverAccountID, &minor, &kind, &t.Description, &t.Timestamp); err != nil {
		return ledger.Transaction{}, err
	}
	amt, err := ledger.AmountFromMinor(minor)
	if err != nil {
		return ledger.Transaction{}, err
	}
	t.Amount = amt
	t.Kind = ledger.TransactionKind(kind)
	return t, nil
}

// --- Account writes ---

// CreateAccount inserts an Active account with a zero balance, retrying on an
// account number collision.
func (s *Store) CreateAccount(ctx context.Context, ownerID int64, typ ledger.AccountType) (ledger.Account, error) {
	for attempt := 0; attempt < 5; attempt++ {
		row := s.pool.QueryRow(ctx, `
			insert into accounts (account_number, user_id, type, balance, status)
			values ($1, $2, $3, 0, $4)
			returning `+accountCols,
			accountno.Generate(), ownerID, string(typ), string(ledger.StatusActive))
		a, err := scanAccount(row)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "accounts_account_number_key" {
			continue
		}
		if err != nil {
			return ledger.Account{}, mapErr(err)
		}
		return a, nil
	}
	return ledger.Account{}, errs.E(errs.KindConflict, "could not allocate a unique account number")
}

// --- Account reads ---

func (s *Store) GetAccount(ctx context.Context, id int64) (ledger.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `select `+accountCols+` from accounts where id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, err
}

func (s *Store) AccountByNumber(ctx context.Context, number string) (ledger.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `select `+accountCols+` from accounts where account_number = $1`, accountno.Normalize(number)))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, err
}

func (s *Store) AccountsByOwner(ctx context.Context, ownerID int64) ([]ledger.Account, error) {
	return s.queryAccounts(ctx, `select `+accountCols+` from accounts where user_id = $1 order by id`, ownerID)
}

func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	return s.queryAccounts(ctx, `select `+accountCols+` from accounts order by id`)
}

func (s *Store) queryAccounts(ctx context.Context, sql string, args ...any) ([]ledger.Account, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Ledger reads ---

// ListTransactions translates f to SQL with the same inclusive bounds and
// ordering that ledger.TransactionFilter documents.
func (s *Store) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	sql, args := buildTransactionQuery(f)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func buildTransactionQuery(f ledger.TransactionFilter) (string, []any) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if len(f.AccountIDs) > 0 {
		p := arg(f.AccountIDs)
		where = append(where, "(sender_account_id = any("+p+") or receiver_account_id = any("+p+"))")
	}
	if f.From != nil {
		where = append(where, `"timestamp" >= `+arg(*f.From))
	}
	if f.To != nil {
		where = append(where, `"timestamp" <= `+arg(*f.To))
	}
	if f.Kind != "" {
		where = append(where, "kind = "+arg(string(f.Kind)))
	}
	if f.MinAmount != nil {
		where = append(where, "amount >= "+arg(ledger.Minor(*f.MinAmount))+"::numeric / 100")
	}
	if f.MaxAmount != nil {
		where = append(where, "amount <= "+arg(ledger.Minor(*f.MaxAmount))+"::numeric / 100")
	}

	var b strings.Builder
	b.WriteString("select " + transactionCols + " from transactions")
	if len(where) > 0 {
		b.WriteString(" where " + strings.Join(where, " and "))
	}
	if f.Order == ledger.OrderAmountDesc {
		b.WriteString(` order by amount desc, "timestamp" desc, id desc`)
	} else {
		b.WriteString(` order by "timestamp" desc, id desc`)
	}
	if f.Limit > 0 {
		b.WriteString(" limit " + arg(f.Limit))
	}
	if f.Offset > 0 {
		b.WriteString(" offset " + arg(f.Offset))
	}
	return b.String(), args
}

// mapErr translates Postgres error codes into the domain taxonomy.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "55P03", "40P01", "40001": // lock_not_available, deadlock_detected, serialization_failure
		return errs.Wrap(errs.KindLockTimeout, err, "account lock")
	case "23505":
		return errs.Wrap(errs.KindConflict, err, "duplicate")
	case "22003": // numeric_value_out_of_range
		return errs.Wrap(errs.KindInvalidAmount, err, "amount out of range")
	case "23514":
		if pgErr.ConstraintName == "accounts_balance_nonnegative" {
			return errs.Wrap(errs.KindInsufficientFunds, err, "balance would become negative")
		}
		return errs.Wrap(errs.KindInvalid, err, "check constraint")
	}
	return err
}
