package transfer

import "github.com/govalues/money"

// OwnershipPolicy decides which accounts of an internal transfer must belong
// to the caller.
type OwnershipPolicy int

const (
	// OwnedByCaller requires both sender and receiver to belong to the caller.
	OwnedByCaller OwnershipPolicy = iota
	// AnyAccount only requires the sender to belong to the caller.
	AnyAccount
)

// Default descriptions used when a request leaves Description empty.
const (
	DefaultInternalDescription   = "Internal transfer"
	DefaultExternalDescription   = "External transfer"
	DefaultDepositDescription    = "Deposit"
	DefaultWithdrawalDescription = "Withdrawal"
	DefaultTopUpDescription      = "Admin top-up"
)

type InternalTransferRequest struct {
	OwnerID           int64
	SenderAccountID   int64
	ReceiverAccountID int64
	Amount            money.Amount
	Description       string
	Policy            OwnershipPolicy
	IdempotencyKey    string
}

type ExternalTransferRequest struct {
	OwnerID               int64
	SenderAccountID       int64
	ReceiverAccountNumber string
	Amount                money.Amount
	Description           string
	IdempotencyKey        string
}

// DepositRequest credits one of the caller's accounts.
type DepositRequest struct {
	OwnerID        int64
	AccountID      int64
	Amount         money.Amount
	Description    string
	IdempotencyKey string
}

// WithdrawRequest debits one of the caller's accounts.
type WithdrawRequest struct {
	OwnerID        int64
	AccountID      int64
	Amount         money.Amount
	Description    string
	IdempotencyKey string
}

// TopUpRequest credits any account. ActorID is recorded for audit only; the
// permission check happens before the engine is called.
type TopUpRequest struct {
	ActorID     int64
	AccountID   int64
	Amount      money.Amount
	Description string
}
