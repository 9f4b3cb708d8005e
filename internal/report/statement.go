// Package report renders transaction statements for export.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/ledger"
)

// Statement is a filtered listing with its totals.
type Statement struct {
	OwnerID      int64
	GeneratedAt  time.Time
	Filter       ledger.TransactionFilter
	Transactions []ledger.Transaction
	Count        int
	Total        money.Amount
}

// NewStatement totals txs. Total is the gross sum of the listed amounts.
func NewStatement(ownerID int64, txs []ledger.Transaction, f ledger.TransactionFilter, now time.Time) (Statement, error) {
	total := ledger.Zero()
	for _, tx := range txs {
		var err error
		total, err = total.Add(tx.Amount)
		if err != nil {
			return Statement{}, fmt.Errorf("total transaction %d: %w", tx.ID, err)
		}
	}
	return Statement{
		OwnerID:      ownerID,
		GeneratedAt:  now.UTC(),
		Filter:       f,
		Transactions: txs,
		Count:        len(txs),
		Total:        total,
	}, nil
}

// WriteText renders st as an aligned plain-text table.
func (st Statement) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Transaction statement for user %d\nGenerated %s\n", st.OwnerID, st.GeneratedAt.Format(time.RFC3339)); err != nil {
		return err
	}
	if f := describeFilter(st.Filter); f != "" {
		if _, err := fmt.Fprintf(w, "Filter: %s\n", f); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDate\tType\tFrom\tTo\tAmount\tDescription\t")
	for _, tx := range st.Transactions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\t\n",
			tx.ID,
			tx.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			tx.Kind,
			tx.SenderAccountID,
			tx.ReceiverAccountID,
			ledger.FormatAmount(tx.Amount),
			tx.Description,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nTransactions: %d\nTotal: %s %s\n", st.Count, ledger.FormatAmount(st.Total), ledger.Currency)
	return err
}

func describeFilter(f ledger.TransactionFilter) string {
	out := ""
	add := func(s string) {
		if out != "" {
			out += ", "
		}
		out += s
	}
	if f.From != nil {
		add("from " + f.From.UTC().Format(time.RFC3339))
	}
	if f.To != nil {
		add("to " + f.To.UTC().Format(time.RFC3339))
	}
	if f.Kind != "" {
		add("type " + string(f.Kind))
	}
	if f.MinAmount != nil {
		add("min " + ledger.FormatAmount(*f.MinAmount))
	}
	if f.MaxAmount != nil {
		add("max " + ledger.FormatAmount(*f.MaxAmount))
	}
	return out
}
