// Package account implements account provisioning and the status state machine:
// Active <-> Frozen, Active/Frozen -> Closed, Closed is terminal.
package account

import (
	"context"
	"strconv"

	"github.com/tinoosan/bankledger/internal/audit"
	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/storage"
)

// Audit actions.
const (
	ActionCreate    = "create_account"
	ActionSetStatus = "change_account_status"
)

type Store interface {
	storage.Beginner
	storage.AccountCreator
}

type Service interface {
	ValidateCreate(ownerID int64, typ ledger.AccountType) error
	Create(ctx context.Context, actorID, ownerID int64, typ ledger.AccountType) (ledger.Account, error)
	SetStatus(ctx context.Context, actorID, accountID int64, status ledger.AccountStatus) (ledger.Account, error)
}

type service struct {
	store Store
	audit audit.Publisher
}

func New(store Store, pub audit.Publisher) Service {
	if pub == nil {
		pub = audit.Discard
	}
	return &service{store: store, audit: pub}
}

func (s *service) ValidateCreate(ownerID int64, typ ledger.AccountType) error {
	if ownerID <= 0 {
		return errs.E(errs.KindInvalid, "user_id is required")
	}
	if !typ.Valid() {
		return errs.E(errs.KindInvalid, "account type must be %q or %q", ledger.AccountTypeChecking, ledger.AccountTypeSavings)
	}
	return nil
}

// Create opens an Active account with a zero balance for ownerID. actorID is
// the caller, which differs from ownerID when an administrator provisions.
func (s *service) Create(ctx context.Context, actorID, ownerID int64, typ ledger.AccountType) (ledger.Account, error) {
	if err := s.ValidateCreate(ownerID, typ); err != nil {
		s.emit(ctx, ActionCreate, actorID, "", map[string]any{"user_id": ownerID, "type": string(typ)}, err)
		return ledger.Account{}, err
	}
	acc, err := s.store.CreateAccount(ctx, ownerID, typ)
	details := map[string]any{"user_id": ownerID, "type": string(typ)}
	if err == nil {
		details["account_number"] = acc.Number
	}
	s.emit(ctx, ActionCreate, actorID, idString(acc.ID), details, err)
	return acc, err
}

// SetStatus moves an account through the state machine under the account lock,
// so it serializes with in-flight transfers. Same-state requests succeed
// without writing.
func (s *service) SetStatus(ctx context.Context, actorID, accountID int64, status ledger.AccountStatus) (ledger.Account, error) {
	acc, from, err := s.setStatus(ctx, accountID, status)
	s.emit(ctx, ActionSetStatus, actorID, idString(accountID), map[string]any{
		"from": string(from),
		"to":   string(status),
	}, err)
	return acc, err
}

func (s *service) setStatus(ctx context.Context, accountID int64, status ledger.AccountStatus) (ledger.Account, ledger.AccountStatus, error) {
	if !status.Valid() {
		return ledger.Account{}, "", errs.E(errs.KindInvalid, "unknown status %q", status)
	}
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return ledger.Account{}, "", err
	}
	defer func() { _ = uow.Rollback(context.WithoutCancel(ctx)) }()

	accs, err := uow.LockAccounts(ctx, accountID)
	if err != nil {
		return ledger.Account{}, "", err
	}
	acc, ok := accs[accountID]
	if !ok {
		return ledger.Account{}, "", errs.E(errs.KindInvalidAccount, "account %d not found", accountID)
	}
	from := acc.Status
	if !from.CanTransitionTo(status) {
		return ledger.Account{}, from, errs.E(errs.KindAccountStatus, "account %s cannot move from %s to %s", acc.Number, from, status)
	}
	if from == status {
		return acc, from, nil
	}
	if err := uow.SetStatus(ctx, accountID, status); err != nil {
		return ledger.Account{}, from, err
	}
	if err := uow.Commit(ctx); err != nil {
		return ledger.Account{}, from, err
	}
	acc.Status = status
	return acc, from, nil
}

func (s *service) emit(ctx context.Context, action string, actorID int64, resourceID string, details map[string]any, err error) {
	status := audit.StatusSuccess
	if err != nil {
		status = audit.StatusFailure
		if errs.KindOf(err) == errs.KindInternal {
			status = audit.StatusError
		}
		details["error_kind"] = string(errs.KindOf(err))
		details["error"] = err.Error()
	}
	s.audit.Publish(audit.NewEvent(ctx, action, status, actorID, "account", resourceID, details))
}

func idString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
