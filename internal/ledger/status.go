package ledger

// AccountStatus gates balance movement. Only Active accounts may be debited
// or credited.
type AccountStatus string

const (
	StatusActive AccountStatus = "Active"
	StatusFrozen AccountStatus = "Frozen"
	StatusClosed AccountStatus = "Closed"
)

// Valid reports whether s is a known status.
func (s AccountStatus) Valid() bool {
	return s == StatusActive || s == StatusFrozen || s == StatusClosed
}

// CanMove reports whether funds may enter or leave an account in status s.
func (s AccountStatus) CanMove() bool { return s == StatusActive }

// CanTransitionTo reports whether the state machine allows s -> next.
// Closed is terminal; a same-state request is always allowed and is a no-op.
func (s AccountStatus) CanTransitionTo(next AccountStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	switch s {
	case StatusActive:
		return next == StatusFrozen || next == StatusClosed
	case StatusFrozen:
		return next == StatusActive || next == StatusClosed
	}
	return false
}
