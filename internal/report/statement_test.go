package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/bankledger/internal/ledger"
)

func TestStatementTotalsAndText(t *testing.T) {
	ts := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	txs := []ledger.Transaction{
		{ID: 2, SenderAccountID: 1, ReceiverAccountID: 2, Amount: ledger.MustAmount(1050), Kind: ledger.KindInternal, Description: "Internal transfer", Timestamp: ts},
		{ID: 1, SenderAccountID: 1, ReceiverAccountID: 1, Amount: ledger.MustAmount(20000), Kind: ledger.KindDeposit, Description: "Deposit", Timestamp: ts.Add(-time.Hour)},
	}
	kind := ledger.KindInternal
	st, err := NewStatement(5, txs, ledger.TransactionFilter{Kind: kind}, ts)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Count)
	assert.Equal(t, int64(21050), ledger.Minor(st.Total))

	var buf bytes.Buffer
	require.NoError(t, st.WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, "Transaction statement for user 5")
	assert.Contains(t, out, "Filter: type internal")
	assert.Contains(t, out, "10.50")
	assert.Contains(t, out, "200.00")
	assert.Contains(t, out, "Total: 210.50 USD")
	assert.Contains(t, out, "2024-05-02 09:30:00")
}

func TestEmptyStatement(t *testing.T) {
	st, err := NewStatement(1, nil, ledger.TransactionFilter{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, st.Count)
	var buf bytes.Buffer
	require.NoError(t, st.WriteText(&buf))
	assert.Contains(t, buf.String(), "Total: 0.00 USD")
}
