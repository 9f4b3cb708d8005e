package memory

// Package memory provides an in-memory store used for development and tests.
// Account-level serialization goes through a lock.Coordinator; the RWMutex only
// guards the maps, so a commit becomes visible to readers all at once.
import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinoosan/bankledger/internal/accountno"
	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/lock"
)

// DefaultLockTimeout bounds how long a unit of work waits for account locks.
const DefaultLockTimeout = 5 * time.Second

type idemKey struct {
	OwnerID int64
	Key     string
}

type idemRecord struct {
	RequestHash   string
	TransactionID int64
}

// Store is guarded by an RWMutex for concurrent reads/writes.
type Store struct {
	mu       sync.RWMutex
	accounts map[int64]ledger.Account
	byNumber map[string]int64
	// Append-only ledger in commit order, plus an id index into it.
	txs    []ledger.Transaction
	txByID map[int64]int
	idem   map[idemKey]idemRecord

	nextAccountID int64
	nextTxID      atomic.Int64

	locks       *lock.Coordinator
	lockTimeout time.Duration
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout overrides DefaultLockTimeout.
func WithLockTimeout(d time.Duration) Option { return func(s *Store) { s.lockTimeout = d } }

// WithClock overrides time.Now, for tests that need deterministic timestamps.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// New constructs an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		accounts:    make(map[int64]ledger.Account),
		byNumber:    make(map[string]int64),
		txByID:      make(map[int64]int),
		idem:        make(map[idemKey]idemRecord),
		locks:       lock.NewCoordinator(),
		lockTimeout: DefaultLockTimeout,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SeedAccount stores a for local dev/tests, filling in id, number, status and
// balance when they are zero, and returns what was stored.
func (s *Store) SeedAccount(a ledger.Account) ledger.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		s.nextAccountID++
		a.ID = s.nextAccountID
	} else if a.ID > s.nextAccountID {
		s.nextAccountID = a.ID
	}
	if a.Number == "" {
		a.Number = s.freeNumber()
	}
	if a.Status == "" {
		a.Status = ledger.StatusActive
	}
	if a.Type == "" {
		a.Type = ledger.AccountTypeChecking
	}
	if a.Balance.Curr().Code() != ledger.Currency {
		a.Balance = ledger.Zero()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	s.accounts[a.ID] = a
	s.byNumber[a.Number] = a.ID
	return a
}

// freeNumber must be called with mu held.
func (s *Store) freeNumber() string {
	for {
		n := accountno.Generate()
		if _, taken := s.byNumber[n]; !taken {
			return n
		}
	}
}

// CreateAccount provisions an Active account with a zero balance.
func (s *Store) CreateAccount(_ context.Context, ownerID int64, typ ledger.AccountType) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAccountID++
	a := ledger.Account{
		ID:        s.nextAccountID,
		Number:    s.freeNumber(),
		OwnerID:   ownerID,
		Type:      typ,
		Balance:   ledger.Zero(),
		Status:    ledger.StatusActive,
		CreatedAt: s.now().UTC(),
	}
	s.accounts[a.ID] = a
	s.byNumber[a.Number] = a.ID
	return a, nil
}

// --- Account reads ---

func (s *Store) GetAccount(_ context.Context, id int64) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, nil
}

func (s *Store) AccountByNumber(_ context.Context, number string) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNumber[accountno.Normalize(number)]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	return s.accounts[id], nil
}

func (s *Store) AccountsByOwner(_ context.Context, ownerID int64) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Account, 0)
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Ledger reads ---

// ListTransactions applies f exactly as ledger.TransactionFilter documents it.
func (s *Store) ListTransactions(_ context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]ledger.Transaction, 0)
	for _, tx := range s.txs {
		if f.Matches(tx) {
			out = append(out, tx)
		}
	}
	s.mu.RUnlock()
	ledger.SortTransactions(out, f.Order)
	return f.Page(out), nil
}

// Balances returns a snapshot of every balance in minor units, taken under one
// read lock. Tests use it to check conservation.
func (s *Store) Balances() map[int64]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]int64, len(s.accounts))
	for id, a := range s.accounts {
		out[id] = ledger.Minor(a.Balance)
	}
	return out
}
