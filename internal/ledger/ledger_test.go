package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/bankledger/internal/errs"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in    string
		minor int64
		ok    bool
	}{
		{"100", 10000, true},
		{"100.00", 10000, true},
		{"12.5", 1250, true},
		{" 0.01 ", 1, true},
		{"1.500", 150, true},
		{"0", 0, false},
		{"0.00", 0, false},
		{"-5", 0, false},
		{"1.005", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"", 0, false},
		{"10000000000000", 0, false},
	}
	for _, tc := range cases {
		a, err := ParseAmount(tc.in)
		if !tc.ok {
			require.Error(t, err, tc.in)
			assert.Equal(t, errs.KindInvalidAmount, errs.KindOf(err), tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.minor, Minor(a), tc.in)
		assert.Equal(t, Currency, a.Curr().Code())
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "10.50", FormatAmount(MustAmount(1050)))
	assert.Equal(t, "0.00", FormatAmount(Zero()))
	assert.Equal(t, "1234.05", FormatAmount(MustAmount(123405)))
}

func TestValidateAmount(t *testing.T) {
	require.NoError(t, ValidateAmount(MustAmount(1)))
	assert.Equal(t, errs.KindInvalidAmount, errs.KindOf(ValidateAmount(Zero())))
	assert.Equal(t, errs.KindInvalidAmount, errs.KindOf(ValidateAmount(MustAmount(-100))))
}

func TestCheckBalance(t *testing.T) {
	require.NoError(t, CheckBalance(Zero()))
	require.NoError(t, CheckBalance(MustAmount(MaxMinor)))
	assert.Equal(t, errs.KindInvalidAmount, errs.KindOf(CheckBalance(MustAmount(MaxMinor+1))))
}

func TestStatusTransitions(t *testing.T) {
	allowed := map[[2]AccountStatus]bool{
		{StatusActive, StatusFrozen}: true,
		{StatusFrozen, StatusActive}: true,
		{StatusActive, StatusClosed}: true,
		{StatusFrozen, StatusClosed}: true,
		{StatusActive, StatusActive}: true,
		{StatusFrozen, StatusFrozen}: true,
		{StatusClosed, StatusClosed}: true,
	}
	all := []AccountStatus{StatusActive, StatusFrozen, StatusClosed}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]AccountStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, StatusActive.CanTransitionTo("Deleted"))
	assert.True(t, StatusActive.CanMove())
	assert.False(t, StatusFrozen.CanMove())
	assert.False(t, StatusClosed.CanMove())
}

func TestFilterMatchesAndOrder(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	txs := []Transaction{
		{ID: 1, SenderAccountID: 1, ReceiverAccountID: 2, Amount: MustAmount(5000), Kind: KindInternal, Timestamp: base},
		{ID: 2, SenderAccountID: 3, ReceiverAccountID: 3, Amount: MustAmount(700), Kind: KindDeposit, Timestamp: base.Add(time.Hour)},
		{ID: 3, SenderAccountID: 2, ReceiverAccountID: 4, Amount: MustAmount(12000), Kind: KindExternal, Timestamp: base.Add(2 * time.Hour)},
		{ID: 4, SenderAccountID: 1, ReceiverAccountID: 1, Amount: MustAmount(300), Kind: KindWithdrawal, Timestamp: base.Add(3 * time.Hour)},
	}

	min := MustAmount(700)
	max := MustAmount(5000)
	f := TransactionFilter{MinAmount: &min, MaxAmount: &max}
	var got []int64
	for _, tx := range txs {
		if f.Matches(tx) {
			got = append(got, tx.ID)
		}
	}
	assert.Equal(t, []int64{1, 2}, got, "amount bounds are inclusive")

	from := base.Add(time.Hour)
	to := base.Add(2 * time.Hour)
	f = TransactionFilter{AccountIDs: []int64{2}, From: &from, To: &to}
	assert.False(t, f.Matches(txs[0]))
	assert.True(t, f.Matches(txs[2]))

	f = TransactionFilter{Kind: KindWithdrawal}
	assert.True(t, f.Matches(txs[3]))
	assert.False(t, f.Matches(txs[1]))

	sorted := append([]Transaction(nil), txs...)
	SortTransactions(sorted, OrderNewest)
	assert.Equal(t, int64(4), sorted[0].ID)
	SortTransactions(sorted, OrderAmountDesc)
	assert.Equal(t, int64(3), sorted[0].ID)
	assert.Equal(t, int64(4), sorted[len(sorted)-1].ID)

	page := TransactionFilter{Offset: 1, Limit: 2}.Page(sorted)
	require.Len(t, page, 2)
	assert.Equal(t, int64(1), page[0].ID)
	assert.Empty(t, TransactionFilter{Offset: 10}.Page(sorted))
}

func TestFilterValidate(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)
	assert.Error(t, TransactionFilter{From: &now, To: &earlier}.Validate())
	lo, hi := MustAmount(100), MustAmount(50)
	assert.Error(t, TransactionFilter{MinAmount: &lo, MaxAmount: &hi}.Validate())
	assert.Error(t, TransactionFilter{Kind: "refund"}.Validate())
	assert.Error(t, TransactionFilter{Limit: MaxLimit + 1}.Validate())
	assert.NoError(t, TransactionFilter{Kind: KindDeposit, Order: OrderAmountDesc, Limit: 5}.Validate())
}
