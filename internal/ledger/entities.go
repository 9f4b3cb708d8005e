package ledger

import (
	"time"

	"github.com/govalues/money"
)

// AccountType enumerates the product kind of a customer account.
type AccountType string

const (
	AccountTypeChecking AccountType = "checking"
	AccountTypeSavings  AccountType = "savings"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	return t == AccountTypeChecking || t == AccountTypeSavings
}

// TransactionKind classifies a ledger row.
type TransactionKind string

const (
	// KindInternal moves funds between two accounts of the same owner.
	KindInternal TransactionKind = "internal"
	// KindExternal moves funds to an account addressed by number.
	KindExternal TransactionKind = "external"
	// KindDeposit credits a single account; sender and receiver are the same.
	KindDeposit TransactionKind = "deposit"
	// KindWithdrawal debits a single account; sender and receiver are the same.
	KindWithdrawal TransactionKind = "withdrawal"
)

// Valid reports whether k is a known transaction kind.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindInternal, KindExternal, KindDeposit, KindWithdrawal:
		return true
	}
	return false
}

// Account is a customer account. Balance is never negative and only the
// transfer engine changes it.
type Account struct {
	ID        int64
	Number    string
	OwnerID   int64
	Type      AccountType
	Balance   money.Amount
	Status    AccountStatus
	CreatedAt time.Time
}

// Transaction is an immutable ledger row. Amount is strictly positive.
type Transaction struct {
	ID                int64
	SenderAccountID   int64
	ReceiverAccountID int64
	Amount            money.Amount
	Kind              TransactionKind
	Description       string
	Timestamp         time.Time
}

// Touches reports whether the transaction moved money in or out of accountID.
func (t Transaction) Touches(accountID int64) bool {
	return t.SenderAccountID == accountID || t.ReceiverAccountID == accountID
}
