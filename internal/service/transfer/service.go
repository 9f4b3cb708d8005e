// Package transfer is the only code path that changes balances. Every
// operation runs in one unit of work: lock, validate, mutate, append, commit.
package transfer

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/audit"
	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/lock"
	"github.com/tinoosan/bankledger/internal/storage"
)

// MaxDescriptionLen bounds free-text descriptions.
const MaxDescriptionLen = 255

// Audit actions, also used as the kind label on metrics.
const (
	ActionInternalTransfer = "internal_transfer"
	ActionExternalTransfer = "external_transfer"
	ActionDeposit          = "deposit"
	ActionWithdraw         = "withdraw"
	ActionTopUp            = "admin_top_up"
)

// Store is what the engine needs from a backend.
type Store interface {
	storage.Beginner
	AccountByNumber(ctx context.Context, number string) (ledger.Account, error)
}

type Service interface {
	InternalTransfer(ctx context.Context, req InternalTransferRequest) (ledger.Transaction, error)
	ExternalTransfer(ctx context.Context, req ExternalTransferRequest) (ledger.Transaction, error)
	Deposit(ctx context.Context, req DepositRequest) (ledger.Transaction, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (ledger.Transaction, error)
	AdminTopUp(ctx context.Context, req TopUpRequest) (ledger.Transaction, error)
}

type service struct {
	store Store
	audit audit.Publisher
}

// New returns the transfer engine. A nil publisher discards audit events.
func New(store Store, pub audit.Publisher) Service {
	if pub == nil {
		pub = audit.Discard
	}
	return &service{store: store, audit: pub}
}

// posting is the normalized form of every operation: at most one debited
// account, at most one credited account.
type posting struct {
	action         string
	kind           ledger.TransactionKind
	actorID        int64
	debitID        int64
	creditID       int64
	owned          []int64
	receiverNumber string
	amount         money.Amount
	description    string
	idemKey        string
}

func (p posting) accountIDs() []int64 {
	ids := make([]int64, 0, 2)
	if p.debitID != 0 {
		ids = append(ids, p.debitID)
	}
	if p.creditID != 0 && p.creditID != p.debitID {
		ids = append(ids, p.creditID)
	}
	return ids
}

func (s *service) InternalTransfer(ctx context.Context, req InternalTransferRequest) (ledger.Transaction, error) {
	p := posting{
		action:      ActionInternalTransfer,
		kind:        ledger.KindInternal,
		actorID:     req.OwnerID,
		debitID:     req.SenderAccountID,
		creditID:    req.ReceiverAccountID,
		owned:       []int64{req.SenderAccountID, req.ReceiverAccountID},
		amount:      req.Amount,
		description: describe(req.Description, DefaultInternalDescription),
		idemKey:     strings.TrimSpace(req.IdempotencyKey),
	}
	if req.Policy == AnyAccount {
		p.owned = []int64{req.SenderAccountID}
	}
	return s.post(ctx, p, nil)
}

func (s *service) ExternalTransfer(ctx context.Context, req ExternalTransferRequest) (ledger.Transaction, error) {
	p := posting{
		action:         ActionExternalTransfer,
		kind:           ledger.KindExternal,
		actorID:        req.OwnerID,
		debitID:        req.SenderAccountID,
		owned:          []int64{req.SenderAccountID},
		receiverNumber: strings.TrimSpace(req.ReceiverAccountNumber),
		amount:         req.Amount,
		description:    describe(req.Description, DefaultExternalDescription),
		idemKey:        strings.TrimSpace(req.IdempotencyKey),
	}
	// The receiver is resolved by number before locking; ids are immutable,
	// so the locked row is re-checked for existence like any other.
	resolve := func(ctx context.Context) error {
		if p.receiverNumber == "" {
			return errs.E(errs.KindInvalidAccount, "receiver account number is required")
		}
		acc, err := s.store.AccountByNumber(ctx, p.receiverNumber)
		if err != nil {
			if errs.KindOf(err) == errs.KindNotFound {
				return errs.E(errs.KindInvalidAccount, "receiver account %s not found", p.receiverNumber)
			}
			return err
		}
		p.creditID = acc.ID
		return nil
	}
	return s.post(ctx, p, resolve)
}

func (s *service) Deposit(ctx context.Context, req DepositRequest) (ledger.Transaction, error) {
	return s.post(ctx, posting{
		action:      ActionDeposit,
		kind:        ledger.KindDeposit,
		actorID:     req.OwnerID,
		creditID:    req.AccountID,
		owned:       []int64{req.AccountID},
		amount:      req.Amount,
		description: describe(req.Description, DefaultDepositDescription),
		idemKey:     strings.TrimSpace(req.IdempotencyKey),
	}, nil)
}

func (s *service) Withdraw(ctx context.Context, req WithdrawRequest) (ledger.Transaction, error) {
	return s.post(ctx, posting{
		action:      ActionWithdraw,
		kind:        ledger.KindWithdrawal,
		actorID:     req.OwnerID,
		debitID:     req.AccountID,
		owned:       []int64{req.AccountID},
		amount:      req.Amount,
		description: describe(req.Description, DefaultWithdrawalDescription),
		idemKey:     strings.TrimSpace(req.IdempotencyKey),
	}, nil)
}

// AdminTopUp credits any Active account and records a self-referential
// deposit row so the balance change has a ledger entry like any other.
func (s *service) AdminTopUp(ctx context.Context, req TopUpRequest) (ledger.Transaction, error) {
	return s.post(ctx, posting{
		action:      ActionTopUp,
		kind:        ledger.KindDeposit,
		actorID:     req.ActorID,
		creditID:    req.AccountID,
		amount:      req.Amount,
		description: describe(req.Description, DefaultTopUpDescription),
	}, nil)
}

func describe(desc, fallback string) string {
	if d := strings.TrimSpace(desc); d != "" {
		return d
	}
	return fallback
}

// post runs p and records its metrics and audit event.
func (s *service) post(ctx context.Context, p posting, resolve func(context.Context) error) (ledger.Transaction, error) {
	start := time.Now()
	tx, err := s.apply(ctx, &p, resolve)
	observe(p.action, err, start)
	s.emit(ctx, p, tx, err)
	return tx, err
}

// apply validates in a fixed order (amount, existence, ownership, status,
// funds) and only mutates once every check has passed.
func (s *service) apply(ctx context.Context, p *posting, resolve func(context.Context) error) (ledger.Transaction, error) {
	if err := ledger.ValidateAmount(p.amount); err != nil {
		return ledger.Transaction{}, err
	}
	if len(p.description) > MaxDescriptionLen {
		return ledger.Transaction{}, errs.E(errs.KindInvalid, "description exceeds %d characters", MaxDescriptionLen)
	}
	if resolve != nil {
		if err := resolve(ctx); err != nil {
			return ledger.Transaction{}, err
		}
	}
	switch p.kind {
	case ledger.KindInternal, ledger.KindExternal:
		if p.debitID <= 0 || p.creditID <= 0 {
			return ledger.Transaction{}, errs.E(errs.KindInvalidAccount, "sender and receiver accounts are required")
		}
	case ledger.KindDeposit:
		if p.creditID <= 0 {
			return ledger.Transaction{}, errs.E(errs.KindInvalidAccount, "account is required")
		}
	case ledger.KindWithdrawal:
		if p.debitID <= 0 {
			return ledger.Transaction{}, errs.E(errs.KindInvalidAccount, "account is required")
		}
	}
	if p.debitID != 0 && p.debitID == p.creditID {
		return ledger.Transaction{}, errs.E(errs.KindInvalidAccount, "sender and receiver must be different accounts")
	}
	var reqHash string
	if p.idemKey != "" {
		h, err := hashRequest(*p)
		if err != nil {
			return ledger.Transaction{}, err
		}
		reqHash = h
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return ledger.Transaction{}, err
	}
	defer func() { _ = uow.Rollback(context.WithoutCancel(ctx)) }()

	ids := p.accountIDs()
	lockStart := time.Now()
	accs, err := uow.LockAccounts(ctx, ids...)
	lockWait.Observe(time.Since(lockStart).Seconds())
	if err != nil {
		return ledger.Transaction{}, err
	}

	if p.idemKey != "" {
		prior, priorHash, found, err := uow.IdempotentTransaction(ctx, p.actorID, p.idemKey)
		if err != nil {
			return ledger.Transaction{}, err
		}
		if found {
			if priorHash != reqHash {
				return ledger.Transaction{}, errs.E(errs.KindConflict, "idempotency key %q was used with a different request", p.idemKey)
			}
			return prior, nil
		}
	}

	for _, id := range lock.Canonical(ids...) {
		if _, ok := accs[id]; !ok {
			return ledger.Transaction{}, errs.E(errs.KindInvalidAccount, "account %d not found", id)
		}
	}
	for _, id := range p.owned {
		if accs[id].OwnerID != p.actorID {
			return ledger.Transaction{}, errs.E(errs.KindInvalidAccount, "account %d not found", id)
		}
	}
	for _, id := range ids {
		if st := accs[id].Status; !st.CanMove() {
			return ledger.Transaction{}, errs.E(errs.KindAccountStatus, "account %s is %s", accs[id].Number, st)
		}
	}

	if p.debitID != 0 {
		from := accs[p.debitID]
		if ledger.Minor(from.Balance) < ledger.Minor(p.amount) {
			return ledger.Transaction{}, errs.E(errs.KindInsufficientFunds, "account %s has %s, needs %s",
				from.Number, ledger.FormatAmount(from.Balance), ledger.FormatAmount(p.amount))
		}
		bal, err := from.Balance.Sub(p.amount)
		if err != nil {
			return ledger.Transaction{}, err
		}
		if err := uow.SetBalance(ctx, p.debitID, bal); err != nil {
			return ledger.Transaction{}, err
		}
	}
	if p.creditID != 0 {
		bal, err := accs[p.creditID].Balance.Add(p.amount)
		if err != nil {
			return ledger.Transaction{}, err
		}
		if err := ledger.CheckBalance(bal); err != nil {
			return ledger.Transaction{}, err
		}
		if err := uow.SetBalance(ctx, p.creditID, bal); err != nil {
			return ledger.Transaction{}, err
		}
	}

	sender, receiver := p.debitID, p.creditID
	if sender == 0 {
		sender = receiver
	}
	if receiver == 0 {
		receiver = sender
	}
	tx, err := uow.AppendTransaction(ctx, ledger.Transaction{
		SenderAccountID:   sender,
		ReceiverAccountID: receiver,
		Amount:            p.amount,
		Kind:              p.kind,
		Description:       p.description,
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	if p.idemKey != "" {
		if err := uow.SaveIdempotencyKey(ctx, p.actorID, p.idemKey, reqHash, tx.ID); err != nil {
			return ledger.Transaction{}, err
		}
	}
	// A caller that gave up must not end up with a committed transfer.
	if err := ctx.Err(); err != nil {
		return ledger.Transaction{}, err
	}
	if err := uow.Commit(ctx); err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}

func (s *service) emit(ctx context.Context, p posting, tx ledger.Transaction, err error) {
	status := audit.StatusSuccess
	details := map[string]any{
		"kind":        string(p.kind),
		"amount":      ledger.FormatAmount(p.amount),
		"description": p.description,
	}
	if p.debitID != 0 {
		details["sender_account_id"] = p.debitID
	}
	if p.creditID != 0 {
		details["receiver_account_id"] = p.creditID
	}
	if p.receiverNumber != "" {
		details["receiver_account_number"] = p.receiverNumber
	}
	resourceID := ""
	if err != nil {
		status = audit.StatusFailure
		if errs.KindOf(err) == errs.KindInternal {
			status = audit.StatusError
		}
		details["error_kind"] = string(errs.KindOf(err))
		details["error"] = err.Error()
	} else {
		resourceID = strconv.FormatInt(tx.ID, 10)
	}
	s.audit.Publish(audit.NewEvent(ctx, p.action, status, p.actorID, "transaction", resourceID, details))
}
