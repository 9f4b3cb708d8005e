package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/service/query"
	"github.com/tinoosan/bankledger/internal/service/transfer"
	"github.com/tinoosan/bankledger/internal/storage/memory"
)

type fixture struct {
	store  *memory.Store
	svc    query.Service
	engine transfer.Service
	mine   ledger.Account
	spare  ledger.Account
	theirs ledger.Account
}

// newFixture books a deterministic history one minute apart:
// deposit 100.00, internal 25.00, external 40.00, withdrawal 5.00, and a
// deposit of 999.00 on someone else's account.
func newFixture(t *testing.T) fixture {
	t.Helper()
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := memory.New(memory.WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	f := fixture{store: store, svc: query.New(store), engine: transfer.New(store, nil)}
	f.mine = store.SeedAccount(ledger.Account{OwnerID: 1})
	f.spare = store.SeedAccount(ledger.Account{OwnerID: 1, Type: ledger.AccountTypeSavings})
	f.theirs = store.SeedAccount(ledger.Account{OwnerID: 2})
	ctx := context.Background()

	_, err := f.engine.Deposit(ctx, transfer.DepositRequest{OwnerID: 1, AccountID: f.mine.ID, Amount: ledger.MustAmount(10000)})
	require.NoError(t, err)
	_, err = f.engine.InternalTransfer(ctx, transfer.InternalTransferRequest{OwnerID: 1, SenderAccountID: f.mine.ID, ReceiverAccountID: f.spare.ID, Amount: ledger.MustAmount(2500)})
	require.NoError(t, err)
	_, err = f.engine.ExternalTransfer(ctx, transfer.ExternalTransferRequest{OwnerID: 1, SenderAccountID: f.mine.ID, ReceiverAccountNumber: f.theirs.Number, Amount: ledger.MustAmount(4000)})
	require.NoError(t, err)
	_, err = f.engine.Withdraw(ctx, transfer.WithdrawRequest{OwnerID: 1, AccountID: f.spare.ID, Amount: ledger.MustAmount(500)})
	require.NoError(t, err)
	_, err = f.engine.Deposit(ctx, transfer.DepositRequest{OwnerID: 2, AccountID: f.theirs.ID, Amount: ledger.MustAmount(99900)})
	require.NoError(t, err)
	return f
}

func kinds(txs []ledger.Transaction) []ledger.TransactionKind {
	out := make([]ledger.TransactionKind, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.Kind)
	}
	return out
}

func TestTransactionsForOwnerNewestFirstAndScoped(t *testing.T) {
	f := newFixture(t)
	txs, err := f.svc.TransactionsForOwner(context.Background(), 1, ledger.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []ledger.TransactionKind{ledger.KindWithdrawal, ledger.KindExternal, ledger.KindInternal, ledger.KindDeposit}, kinds(txs))

	// the other owner sees the external transfer they received and their deposit
	theirs, err := f.svc.TransactionsForOwner(context.Background(), 2, ledger.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []ledger.TransactionKind{ledger.KindDeposit, ledger.KindExternal}, kinds(theirs))

	none, err := f.svc.TransactionsForOwner(context.Background(), 3, ledger.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTransactionsForOwnerFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lo, hi := ledger.MustAmount(2500), ledger.MustAmount(4000)
	txs, err := f.svc.TransactionsForOwner(ctx, 1, ledger.TransactionFilter{MinAmount: &lo, MaxAmount: &hi})
	require.NoError(t, err)
	assert.Equal(t, []ledger.TransactionKind{ledger.KindExternal, ledger.KindInternal}, kinds(txs))

	txs, err = f.svc.TransactionsForOwner(ctx, 1, ledger.TransactionFilter{Kind: ledger.KindDeposit})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(10000), ledger.Minor(txs[0].Amount))

	txs, err = f.svc.TransactionsForOwner(ctx, 1, ledger.TransactionFilter{AccountIDs: []int64{f.spare.ID}})
	require.NoError(t, err)
	assert.Equal(t, []ledger.TransactionKind{ledger.KindWithdrawal, ledger.KindInternal}, kinds(txs))

	all, err := f.svc.TransactionsForOwner(ctx, 1, ledger.TransactionFilter{})
	require.NoError(t, err)
	from, to := all[2].Timestamp, all[1].Timestamp
	txs, err = f.svc.TransactionsForOwner(ctx, 1, ledger.TransactionFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, []ledger.TransactionKind{ledger.KindExternal, ledger.KindInternal}, kinds(txs), "date bounds are inclusive")

	_, err = f.svc.TransactionsForOwner(ctx, 1, ledger.TransactionFilter{AccountIDs: []int64{f.theirs.ID}})
	assert.Equal(t, errs.KindInvalidAccount, errs.KindOf(err))

	_, err = f.svc.TransactionsForOwner(ctx, 1, ledger.TransactionFilter{Kind: "refund"})
	assert.Equal(t, errs.KindInvalid, errs.KindOf(err))
}

func TestTopAndRecent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	top, err := f.svc.TopByAmount(ctx, 1, f.mine.ID, 0)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, int64(10000), ledger.Minor(top[0].Amount))
	assert.Equal(t, int64(4000), ledger.Minor(top[1].Amount))
	assert.Equal(t, int64(2500), ledger.Minor(top[2].Amount))

	top1, err := f.svc.TopByAmount(ctx, 1, 0, 1)
	require.NoError(t, err)
	require.Len(t, top1, 1)
	assert.Equal(t, int64(10000), ledger.Minor(top1[0].Amount), "another owner's larger deposit is not visible")

	recent, err := f.svc.Recent(ctx, 1, f.mine.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []ledger.TransactionKind{ledger.KindExternal, ledger.KindInternal}, kinds(recent))

	_, err = f.svc.TopByAmount(ctx, 1, f.theirs.ID, 5)
	assert.Equal(t, errs.KindInvalidAccount, errs.KindOf(err))
}

func TestAccountsAndAdminViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	accs, err := f.svc.AccountsForOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, accs, 2)
	assert.Equal(t, int64(10000-2500-4000), ledger.Minor(accs[0].Balance))
	assert.Equal(t, int64(2500-500), ledger.Minor(accs[1].Balance))

	_, err = f.svc.Account(ctx, 1, f.theirs.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	all, err := f.svc.AllAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	txs, err := f.svc.AllTransactions(ctx, ledger.TransactionFilter{Order: ledger.OrderAmountDesc, Limit: 2})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(99900), ledger.Minor(txs[0].Amount))
}

func TestStatementIgnoresPaging(t *testing.T) {
	f := newFixture(t)
	st, err := f.svc.Statement(context.Background(), 1, ledger.TransactionFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, st.Count)
	assert.Equal(t, int64(10000+2500+4000+500), ledger.Minor(st.Total))
}
