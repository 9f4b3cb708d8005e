package transfer_test

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/govalues/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/bankledger/internal/audit"
	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/service/transfer"
	"github.com/tinoosan/bankledger/internal/storage/memory"
)

const (
	alice int64 = 1
	bob   int64 = 2
)

type recorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recorder) Publish(ev audit.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) last() audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func setup(t *testing.T, opts ...memory.Option) (*memory.Store, transfer.Service, *recorder) {
	t.Helper()
	store := memory.New(opts...)
	rec := &recorder{}
	return store, transfer.New(store, rec), rec
}

func seed(store *memory.Store, owner int64, cents int64) ledger.Account {
	return store.SeedAccount(ledger.Account{OwnerID: owner, Balance: ledger.MustAmount(cents)})
}

func usd(cents int64) money.Amount { return ledger.MustAmount(cents) }

func rows(t *testing.T, store *memory.Store) []ledger.Transaction {
	t.Helper()
	txs, err := store.ListTransactions(context.Background(), ledger.TransactionFilter{})
	require.NoError(t, err)
	return txs
}

func TestInternalTransferMovesFunds(t *testing.T) {
	store, svc, rec := setup(t)
	a := seed(store, alice, 10000)
	b := seed(store, alice, 0)

	tx, err := svc.InternalTransfer(context.Background(), transfer.InternalTransferRequest{
		OwnerID: alice, SenderAccountID: a.ID, ReceiverAccountID: b.ID, Amount: usd(3000),
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.KindInternal, tx.Kind)
	assert.Equal(t, a.ID, tx.SenderAccountID)
	assert.Equal(t, b.ID, tx.ReceiverAccountID)
	assert.Equal(t, transfer.DefaultInternalDescription, tx.Description)
	assert.False(t, tx.Timestamp.IsZero())

	bal := store.Balances()
	assert.Equal(t, int64(7000), bal[a.ID])
	assert.Equal(t, int64(3000), bal[b.ID])
	require.Len(t, rows(t, store), 1)

	ev := rec.last()
	assert.Equal(t, transfer.ActionInternalTransfer, ev.Action)
	assert.Equal(t, audit.StatusSuccess, ev.Status)
	assert.Equal(t, alice, ev.UserID)
}

func TestWithdrawInsufficientFundsIsNoop(t *testing.T) {
	store, svc, rec := setup(t)
	a := seed(store, alice, 2000)

	_, err := svc.Withdraw(context.Background(), transfer.WithdrawRequest{OwnerID: alice, AccountID: a.ID, Amount: usd(5000)})
	require.Error(t, err)
	assert.Equal(t, errs.KindInsufficientFunds, errs.KindOf(err))
	assert.Equal(t, int64(2000), store.Balances()[a.ID])
	assert.Empty(t, rows(t, store))
	assert.Equal(t, audit.StatusFailure, rec.last().Status)
}

func TestFrozenSenderRejected(t *testing.T) {
	store, svc, _ := setup(t)
	a := store.SeedAccount(ledger.Account{OwnerID: alice, Balance: usd(10000), Status: ledger.StatusFrozen})
	c := seed(store, bob, 0)

	_, err := svc.ExternalTransfer(context.Background(), transfer.ExternalTransferRequest{
		OwnerID: alice, SenderAccountID: a.ID, ReceiverAccountNumber: c.Number, Amount: usd(1000),
	})
	require.Error(t, err)
	assert.Equal(t, errs.KindAccountStatus, errs.KindOf(err))
	bal := store.Balances()
	assert.Equal(t, int64(10000), bal[a.ID])
	assert.Equal(t, int64(0), bal[c.ID])
	assert.Empty(t, rows(t, store))
}

func TestStatusGateOnReceiverAndClosed(t *testing.T) {
	store, svc, _ := setup(t)
	a := seed(store, alice, 10000)
	closed := store.SeedAccount(ledger.Account{OwnerID: alice, Status: ledger.StatusClosed})
	frozen := store.SeedAccount(ledger.Account{OwnerID: alice, Status: ledger.StatusFrozen})
	ctx := context.Background()

	_, err := svc.InternalTransfer(ctx, transfer.InternalTransferRequest{OwnerID: alice, SenderAccountID: a.ID, ReceiverAccountID: frozen.ID, Amount: usd(100)})
	assert.Equal(t, errs.KindAccountStatus, errs.KindOf(err))
	_, err = svc.Deposit(ctx, transfer.DepositRequest{OwnerID: alice, AccountID: closed.ID, Amount: usd(100)})
	assert.Equal(t, errs.KindAccountStatus, errs.KindOf(err))
	_, err = svc.AdminTopUp(ctx, transfer.TopUpRequest{ActorID: 99, AccountID: frozen.ID, Amount: usd(100)})
	assert.Equal(t, errs.KindAccountStatus, errs.KindOf(err))
	assert.Equal(t, int64(10000), store.Balances()[a.ID])
	assert.Empty(t, rows(t, store))
}

func TestValidationOrder(t *testing.T) {
	store, svc, _ := setup(t)
	ctx := context.Background()
	frozenPoor := store.SeedAccount(ledger.Account{OwnerID: alice, Balance: usd(100), Status: ledger.StatusFrozen})
	other := seed(store, bob, 100)
	mine := seed(store, alice, 100)

	// amount beats everything
	_, err := svc.Withdraw(ctx, transfer.WithdrawRequest{OwnerID: alice, AccountID: 999, Amount: usd(0)})
	assert.Equal(t, errs.KindInvalidAmount, errs.KindOf(err))
	_, err = svc.Withdraw(ctx, transfer.WithdrawRequest{OwnerID: alice, AccountID: 999, Amount: usd(-5)})
	assert.Equal(t, errs.KindInvalidAmount, errs.KindOf(err))

	// existence before ownership and status
	_, err = svc.InternalTransfer(ctx, transfer.InternalTransferRequest{OwnerID: alice, SenderAccountID: frozenPoor.ID, ReceiverAccountID: 999, Amount: usd(500)})
	assert.Equal(t, errs.KindInvalidAccount, errs.KindOf(err))

	// ownership before status
	_, err = svc.Withdraw(ctx, transfer.WithdrawRequest{OwnerID: bob, AccountID: frozenPoor.ID, Amount: usd(500)})
	assert.Equal(t, errs.KindInvalidAccount, errs.KindOf(err))

	// status before funds
	_, err = svc.Withdraw(ctx, transfer.WithdrawRequest{OwnerID: alice, AccountID: frozenPoor.ID, Amount: usd(500)})
	assert.Equal(t, errs.KindAccountStatus, errs.KindOf(err))

	// receiver owned by someone else under the default policy
	_, err = svc.InternalTransfer(ctx, transfer.InternalTransferRequest{OwnerID: alice, SenderAccountID: mine.ID, ReceiverAccountID: other.ID, Amount: usd(50)})
	assert.Equal(t, errs.KindInvalidAccount, errs.KindOf(err))

	// self transfer
	_, err = svc.InternalTransfer(ctx, transfer.InternalTransferRequest{OwnerID: alice, SenderAccountID: mine.ID, ReceiverAccountID: mine.ID, Amount: usd(50)})
	assert.Equal(t, errs.KindInvalidAccount, errs.KindOf(err))

	// missing account id
	_, err = svc.Deposit(ctx, transfer.DepositRequest{OwnerID: alice, Amount: usd(50)})
	assert.Equal(t, errs.KindInvalidAccount, errs.KindOf(err))

	assert.Empty(t, rows(t, store))
	bal := store.Balances()
	assert.Equal(t, int64(100), bal[mine.ID])
	assert.Equal(t, int64(100), bal[other.ID])
}

func TestAnyAccountPolicy(t *testing.T) {
	store, svc, _ := setup(t)
	mine := seed(store, alice, 1000)
	theirs := seed(store, bob, 0)

	_, err := svc.InternalTransfer(context.Background(), transfer.InternalTransferRequest{
		OwnerID: alice, SenderAccountID: mine.ID, ReceiverAccountID: theirs.ID, Amount: usd(400), Policy: transfer.AnyAccount,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(400), store.Balances()[theirs.ID])

	// the sender must still belong to the caller
	_, err = svc.InternalTransfer(context.Background(), transfer.InternalTransferRequest{
		OwnerID: alice, SenderAccountID: theirs.ID, ReceiverAccountID: mine.ID, Amount: usd(100), Policy: transfer.AnyAccount,
	})
	assert.Equal(t, errs.KindInvalidAccount, errs.KindOf(err))
}

func TestExternalTransferByNumber(t *testing.T) {
	store, svc, _ := setup(t)
	a := seed(store, alice, 5000)
	c := seed(store, bob, 0)
	ctx := context.Background()

	tx, err := svc.ExternalTransfer(ctx, transfer.ExternalTransferRequest{
		OwnerID: alice, SenderAccountID: a.ID, ReceiverAccountNumber: " " + c.Number + " ", Amount: usd(1250), Description: "rent",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.KindExternal, tx.Kind)
	assert.Equal(t, c.ID, tx.ReceiverAccountID)
	assert.Equal(t, "rent", tx.Description)
	bal := store.Balances()
	assert.Equal(t, int64(3750), bal[a.ID])
	assert.Equal(t, int64(1250), bal[c.ID])

	_, err = svc.ExternalTransfer(ctx, transfer.ExternalTransferRequest{
		OwnerID: alice, SenderAccountID: a.ID, ReceiverAccountNumber: "ACCT-000000000000", Amount: usd(1),
	})
	assert.Equal(t, errs.KindInvalidAccount, errs.KindOf(err))
	_, err = svc.ExternalTransfer(ctx, transfer.ExternalTransferRequest{
		OwnerID: alice, SenderAccountID: a.ID, ReceiverAccountNumber: a.Number, Amount: usd(1),
	})
	assert.Equal(t, errs.KindInvalidAccount, errs.KindOf(err))
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	store, svc, _ := setup(t)
	a := seed(store, alice, 1234)
	ctx := context.Background()

	dep, err := svc.Deposit(ctx, transfer.DepositRequest{OwnerID: alice, AccountID: a.ID, Amount: usd(999)})
	require.NoError(t, err)
	assert.Equal(t, a.ID, dep.SenderAccountID)
	assert.Equal(t, a.ID, dep.ReceiverAccountID)
	assert.Equal(t, ledger.KindDeposit, dep.Kind)

	wd, err := svc.Withdraw(ctx, transfer.WithdrawRequest{OwnerID: alice, AccountID: a.ID, Amount: usd(999)})
	require.NoError(t, err)
	assert.Equal(t, ledger.KindWithdrawal, wd.Kind)
	assert.Equal(t, transfer.DefaultWithdrawalDescription, wd.Description)

	assert.Equal(t, int64(1234), store.Balances()[a.ID])
	assert.Len(t, rows(t, store), 2)
}

func TestAdminTopUp(t *testing.T) {
	store, svc, rec := setup(t)
	a := seed(store, bob, 0)

	tx, err := svc.AdminTopUp(context.Background(), transfer.TopUpRequest{ActorID: 42, AccountID: a.ID, Amount: usd(50000)})
	require.NoError(t, err)
	assert.Equal(t, ledger.KindDeposit, tx.Kind)
	assert.Equal(t, transfer.DefaultTopUpDescription, tx.Description)
	assert.Equal(t, int64(50000), store.Balances()[a.ID])
	assert.Equal(t, transfer.ActionTopUp, rec.last().Action)
	assert.Equal(t, int64(42), rec.last().UserID)
}

func TestConcurrentWithdrawalsDrainExactly(t *testing.T) {
	const n = 50
	store, svc, _ := setup(t)
	a := seed(store, alice, n*100)

	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n+10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Withdraw(context.Background(), transfer.WithdrawRequest{OwnerID: alice, AccountID: a.ID, Amount: usd(100)})
			switch errs.KindOf(err) {
			case "":
				ok.Add(1)
			case errs.KindInsufficientFunds:
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(n), ok.Load())
	assert.Equal(t, int32(10), short.Load())
	assert.Equal(t, int64(0), store.Balances()[a.ID])
	assert.Len(t, rows(t, store), n)
}

func TestConcurrentTransfersConserveFunds(t *testing.T) {
	store, svc, _ := setup(t)
	accs := []ledger.Account{seed(store, alice, 10000), seed(store, alice, 10000), seed(store, alice, 10000), seed(store, alice, 10000)}

	var wg sync.WaitGroup
	var moved atomic.Int64
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(src int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(src))
			for i := 0; i < 100; i++ {
				from := accs[rnd.Intn(len(accs))]
				to := accs[rnd.Intn(len(accs))]
				if from.ID == to.ID {
					continue
				}
				_, err := svc.InternalTransfer(context.Background(), transfer.InternalTransferRequest{
					OwnerID: alice, SenderAccountID: from.ID, ReceiverAccountID: to.ID, Amount: usd(int64(rnd.Intn(3000) + 1)),
				})
				if err == nil {
					moved.Add(1)
				} else if errs.KindOf(err) != errs.KindInsufficientFunds {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}(int64(w))
	}
	wg.Wait()

	var total int64
	for _, b := range store.Balances() {
		assert.GreaterOrEqual(t, b, int64(0))
		total += b
	}
	assert.Equal(t, int64(40000), total)
	assert.Len(t, rows(t, store), int(moved.Load()))
}

func TestLockTimeoutIsRetryable(t *testing.T) {
	store, svc, _ := setup(t, memory.WithLockTimeout(30*time.Millisecond))
	a := seed(store, alice, 1000)
	ctx := context.Background()

	holder, err := store.Begin(ctx)
	require.NoError(t, err)
	_, err = holder.LockAccounts(ctx, a.ID)
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, transfer.WithdrawRequest{OwnerID: alice, AccountID: a.ID, Amount: usd(100)})
	require.Error(t, err)
	assert.Equal(t, errs.KindLockTimeout, errs.KindOf(err))
	assert.True(t, errs.Retryable(err))
	assert.Equal(t, int64(1000), store.Balances()[a.ID])

	require.NoError(t, holder.Rollback(ctx))
	_, err = svc.Withdraw(ctx, transfer.WithdrawRequest{OwnerID: alice, AccountID: a.ID, Amount: usd(100)})
	require.NoError(t, err)
	assert.Equal(t, int64(900), store.Balances()[a.ID])
}

func TestCancelledContextLeavesNoTrace(t *testing.T) {
	store, svc, _ := setup(t)
	a := seed(store, alice, 1000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Withdraw(ctx, transfer.WithdrawRequest{OwnerID: alice, AccountID: a.ID, Amount: usd(100)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(1000), store.Balances()[a.ID])
	assert.Empty(t, rows(t, store))
}

func TestIdempotencyKey(t *testing.T) {
	store, svc, _ := setup(t)
	a := seed(store, alice, 1000)
	ctx := context.Background()
	req := transfer.WithdrawRequest{OwnerID: alice, AccountID: a.ID, Amount: usd(300), IdempotencyKey: "wd-1"}

	first, err := svc.Withdraw(ctx, req)
	require.NoError(t, err)
	again, err := svc.Withdraw(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, int64(700), store.Balances()[a.ID])
	assert.Len(t, rows(t, store), 1)

	req.Amount = usd(301)
	_, err = svc.Withdraw(ctx, req)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	// keys are scoped per owner
	b := seed(store, bob, 1000)
	_, err = svc.Withdraw(ctx, transfer.WithdrawRequest{OwnerID: bob, AccountID: b.ID, Amount: usd(300), IdempotencyKey: "wd-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(700), store.Balances()[b.ID])
}

func TestCreditCannotExceedBalanceCeiling(t *testing.T) {
	store, svc, _ := setup(t)
	a := seed(store, alice, 0)
	b := seed(store, alice, 100)
	ctx := context.Background()
	largest := usd(ledger.MaxMinor)

	_, err := svc.Deposit(ctx, transfer.DepositRequest{OwnerID: alice, AccountID: a.ID, Amount: largest})
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, transfer.DepositRequest{OwnerID: alice, AccountID: a.ID, Amount: largest})
	assert.Equal(t, errs.KindInvalidAmount, errs.KindOf(err))

	// the debit leg is rolled back with the rejected credit
	_, err = svc.InternalTransfer(ctx, transfer.InternalTransferRequest{OwnerID: alice, SenderAccountID: b.ID, ReceiverAccountID: a.ID, Amount: usd(1)})
	assert.Equal(t, errs.KindInvalidAmount, errs.KindOf(err))

	bal := store.Balances()
	assert.Equal(t, ledger.MaxMinor, bal[a.ID])
	assert.Equal(t, int64(100), bal[b.ID])
	assert.Len(t, rows(t, store), 1)
}
