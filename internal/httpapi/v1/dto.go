package v1

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/tinoosan/bankledger/internal/ledger"
)

// amountField holds the raw text of an "amount" member. JSON numbers and
// strings are both accepted and anything else is kept verbatim, so every
// malformed value is rejected by ledger.ParseAmount as invalid_amount rather
// than by the decoder. Amounts never pass through float64.
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*a = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountField(s)
	default:
		*a = amountField(b)
	}
	return nil
}

func (a amountField) String() string { return string(a) }

type postAccountRequest struct {
	Type string `json:"type" validate:"required,account_type"`
}

type postAdminAccountRequest struct {
	UserID int64  `json:"user_id" validate:"required,gt=0"`
	Type   string `json:"type" validate:"required,account_type"`
}

type patchStatusRequest struct {
	Status string `json:"status" validate:"required,account_status"`
}

type internalTransferRequest struct {
	SenderAccountID   int64       `json:"sender_account_id" validate:"required,gt=0"`
	ReceiverAccountID int64       `json:"receiver_account_id" validate:"required,gt=0"`
	Amount            amountField `json:"amount"`
	Description       string      `json:"description" validate:"max=255"`
}

type externalTransferRequest struct {
	SenderAccountID       int64       `json:"sender_account_id" validate:"required,gt=0"`
	ReceiverAccountNumber string      `json:"receiver_account_number" validate:"required,account_number"`
	Amount                amountField `json:"amount"`
	Description           string      `json:"description" validate:"max=255"`
}

// singleAccountRequest is the body of deposit, withdraw and top-up.
type singleAccountRequest struct {
	AccountID   int64       `json:"account_id" validate:"required,gt=0"`
	Amount      amountField `json:"amount"`
	Description string      `json:"description" validate:"max=255"`
}

type accountResponse struct {
	ID            int64     `json:"id"`
	AccountNumber string    `json:"account_number"`
	UserID        int64     `json:"user_id"`
	Type          string    `json:"type"`
	Balance       string    `json:"balance"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type transactionResponse struct {
	ID                int64     `json:"id"`
	SenderAccountID   int64     `json:"sender_account_id"`
	ReceiverAccountID int64     `json:"receiver_account_id"`
	Amount            string    `json:"amount"`
	Currency          string    `json:"currency"`
	Type              string    `json:"type"`
	Description       string    `json:"description"`
	Timestamp         time.Time `json:"timestamp"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func toAccountResponse(a ledger.Account) accountResponse {
	return accountResponse{
		ID:            a.ID,
		AccountNumber: a.Number,
		UserID:        a.OwnerID,
		Type:          string(a.Type),
		Balance:       ledger.FormatAmount(a.Balance),
		Currency:      ledger.Currency,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt.UTC(),
	}
}

func toTransactionResponse(tx ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:                tx.ID,
		SenderAccountID:   tx.SenderAccountID,
		ReceiverAccountID: tx.ReceiverAccountID,
		Amount:            ledger.FormatAmount(tx.Amount),
		Currency:          ledger.Currency,
		Type:              string(tx.Kind),
		Description:       tx.Description,
		Timestamp:         tx.Timestamp.UTC(),
	}
}

func accountList(accs []ledger.Account) listResponse[accountResponse] {
	out := listResponse[accountResponse]{Items: make([]accountResponse, 0, len(accs)), Count: len(accs)}
	for _, a := range accs {
		out.Items = append(out.Items, toAccountResponse(a))
	}
	return out
}

func transactionList(txs []ledger.Transaction) listResponse[transactionResponse] {
	out := listResponse[transactionResponse]{Items: make([]transactionResponse, 0, len(txs)), Count: len(txs)}
	for _, tx := range txs {
		out.Items = append(out.Items, toTransactionResponse(tx))
	}
	return out
}
