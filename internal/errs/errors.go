// Package errs defines the error taxonomy shared by the engine, the stores and
// the HTTP layer. Callers branch on a Kind, never on message text.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound  = errors.New("not_found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid")

	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidAccount    = errors.New("invalid_account")
	ErrAccountStatus     = errors.New("account_status")
	ErrInsufficientFunds = errors.New("insufficient_funds")
	// ErrLockTimeout is the only retryable kind: nothing was changed.
	ErrLockTimeout = errors.New("lock_timeout")
	// ErrNotification is logged by the audit notifier and never returned to callers.
	ErrNotification = errors.New("notification_failure")
)

// Kind tags an error with the category the caller is expected to branch on.
type Kind string

const (
	KindInternal          Kind = "internal"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindConflict          Kind = "conflict"
	KindInvalid           Kind = "invalid"
	KindInvalidAmount     Kind = "invalid_amount"
	KindInvalidAccount    Kind = "invalid_account"
	KindAccountStatus     Kind = "account_status"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindLockTimeout       Kind = "lock_timeout"
	KindNotification      Kind = "notification_failure"
)

var sentinels = map[Kind]error{
	KindNotFound:          ErrNotFound,
	KindForbidden:         ErrForbidden,
	KindConflict:          ErrConflict,
	KindInvalid:           ErrInvalid,
	KindInvalidAmount:     ErrInvalidAmount,
	KindInvalidAccount:    ErrInvalidAccount,
	KindAccountStatus:     ErrAccountStatus,
	KindInsufficientFunds: ErrInsufficientFunds,
	KindLockTimeout:       ErrLockTimeout,
	KindNotification:      ErrNotification,
}

// Error carries a Kind, a human readable message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, errs.ErrInsufficientFunds) match a tagged error.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// E builds a tagged error with a formatted message.
func E(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind. A nil err yields nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of err. Untagged errors that wrap a sentinel map to
// the sentinel's kind; anything else is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for k, s := range sentinels {
		if errors.Is(err, s) {
			return k
		}
	}
	return KindInternal
}

// Retryable reports whether the operation may be retried unchanged.
func Retryable(err error) bool { return KindOf(err) == KindLockTimeout }
