package ledger

import (
	"sort"
	"time"

	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/errs"
)

// Order selects how a transaction listing is sorted.
type Order string

const (
	// OrderNewest sorts by timestamp descending, ties broken by id descending.
	OrderNewest Order = "newest"
	// OrderAmountDesc sorts by amount descending, ties broken by newest first.
	OrderAmountDesc Order = "amount_desc"
)

// MaxLimit caps a single page of transactions.
const MaxLimit = 1000

// TransactionFilter narrows a transaction listing. Bounds are inclusive and
// every set field must match. Both stores implement exactly these semantics.
type TransactionFilter struct {
	// AccountIDs matches rows where either leg is one of the ids. Empty means any.
	AccountIDs []int64
	From       *time.Time
	To         *time.Time
	Kind       TransactionKind
	MinAmount  *money.Amount
	MaxAmount  *money.Amount
	Order      Order
	Limit      int
	Offset     int
}

// Validate rejects inconsistent filters.
func (f TransactionFilter) Validate() error {
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return errs.E(errs.KindInvalid, "start_date must not be after end_date")
	}
	if f.MinAmount != nil && f.MaxAmount != nil && Minor(*f.MinAmount) > Minor(*f.MaxAmount) {
		return errs.E(errs.KindInvalid, "min_amount must not exceed max_amount")
	}
	if f.Kind != "" && !f.Kind.Valid() {
		return errs.E(errs.KindInvalid, "unknown transaction type %q", f.Kind)
	}
	switch f.Order {
	case "", OrderNewest, OrderAmountDesc:
	default:
		return errs.E(errs.KindInvalid, "unknown order %q", f.Order)
	}
	if f.Limit < 0 || f.Limit > MaxLimit {
		return errs.E(errs.KindInvalid, "limit must be between 0 and %d", MaxLimit)
	}
	if f.Offset < 0 {
		return errs.E(errs.KindInvalid, "offset must not be negative")
	}
	return nil
}

// Matches reports whether tx satisfies every predicate of f. Order, Limit and
// Offset are not predicates and are ignored here.
func (f TransactionFilter) Matches(tx Transaction) bool {
	if len(f.AccountIDs) > 0 {
		hit := false
		for _, id := range f.AccountIDs {
			if tx.Touches(id) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if f.From != nil && tx.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && tx.Timestamp.After(*f.To) {
		return false
	}
	if f.Kind != "" && tx.Kind != f.Kind {
		return false
	}
	if f.MinAmount != nil && Minor(tx.Amount) < Minor(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && Minor(tx.Amount) > Minor(*f.MaxAmount) {
		return false
	}
	return true
}

// SortTransactions orders txs in place.
func SortTransactions(txs []Transaction, order Order) {
	newer := func(a, b Transaction) bool {
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID > b.ID
	}
	if order == OrderAmountDesc {
		sort.SliceStable(txs, func(i, j int) bool {
			ai, aj := Minor(txs[i].Amount), Minor(txs[j].Amount)
			if ai != aj {
				return ai > aj
			}
			return newer(txs[i], txs[j])
		})
		return
	}
	sort.SliceStable(txs, func(i, j int) bool { return newer(txs[i], txs[j]) })
}

// Page applies Offset and Limit. A zero Limit means no limit.
func (f TransactionFilter) Page(txs []Transaction) []Transaction {
	if f.Offset >= len(txs) {
		return []Transaction{}
	}
	txs = txs[f.Offset:]
	if f.Limit > 0 && f.Limit < len(txs) {
		txs = txs[:f.Limit]
	}
	return txs
}
