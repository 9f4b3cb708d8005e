package ledger

import (
	"strings"

	"github.com/govalues/decimal"
	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/errs"
)

// Currency is the single currency the ledger books in.
const Currency = "USD"

// Scale is the number of fractional digits kept for every amount.
const Scale = 2

// MaxMinor is the largest amount or balance numeric(15,2) can hold, in minor units.
const MaxMinor int64 = 999_999_999_999_999

// Zero returns 0.00 in the ledger currency.
func Zero() money.Amount { return money.MustNewAmount(Currency, 0, Scale) }

// AmountFromMinor builds an amount from minor units (cents).
func AmountFromMinor(units int64) (money.Amount, error) {
	return money.NewAmountFromMinorUnits(Currency, units)
}

// MustAmount is AmountFromMinor for constants and tests.
func MustAmount(units int64) money.Amount {
	a, err := AmountFromMinor(units)
	if err != nil {
		panic(err)
	}
	return a
}

// Minor returns a in minor units. Ledger amounts are USD at scale 2 and stay
// far inside the int64 range, so MinorUnits cannot fail and its ok is ignored.
func Minor(a money.Amount) int64 {
	units, _ := a.MinorUnits()
	return units
}

// ParseAmount parses a decimal string such as "12.5" or "100.00" exactly.
// Anything that is not a finite decimal with at most two fractional digits,
// or that is not strictly positive, is rejected as invalid_amount.
func ParseAmount(s string) (money.Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return money.Amount{}, errs.E(errs.KindInvalidAmount, "amount is required")
	}
	d, err := decimal.Parse(s)
	if err != nil {
		return money.Amount{}, errs.E(errs.KindInvalidAmount, "amount %q is not a decimal number", s)
	}
	d = d.Trim(Scale)
	if d.Scale() > Scale {
		return money.Amount{}, errs.E(errs.KindInvalidAmount, "amount %q has more than %d fractional digits", s, Scale)
	}
	if d.Sign() <= 0 {
		return money.Amount{}, errs.E(errs.KindInvalidAmount, "amount must be positive")
	}
	coef := d.Coef()
	for i := d.Scale(); i < Scale; i++ {
		if coef > uint64(MaxMinor)/10 {
			return money.Amount{}, errs.E(errs.KindInvalidAmount, "amount %q is too large", s)
		}
		coef *= 10
	}
	if coef > uint64(MaxMinor) {
		return money.Amount{}, errs.E(errs.KindInvalidAmount, "amount %q is too large", s)
	}
	return AmountFromMinor(int64(coef))
}

// ValidateAmount checks an amount handed to the engine directly.
func ValidateAmount(a money.Amount) error {
	if a.Curr().Code() != Currency {
		return errs.E(errs.KindInvalidAmount, "currency %s is not supported", a.Curr().Code())
	}
	if a.Scale() > Scale {
		return errs.E(errs.KindInvalidAmount, "amount %s has more than %d fractional digits", FormatAmount(a), Scale)
	}
	units, ok := a.MinorUnits()
	if !ok || units > MaxMinor {
		return errs.E(errs.KindInvalidAmount, "amount is out of range")
	}
	if units <= 0 {
		return errs.E(errs.KindInvalidAmount, "amount must be positive")
	}
	return nil
}

// CheckBalance rejects a balance numeric(15,2) cannot store.
func CheckBalance(a money.Amount) error {
	if units, ok := a.MinorUnits(); !ok || units > MaxMinor {
		return errs.E(errs.KindInvalidAmount, "balance would exceed %s", FormatAmount(MustAmount(MaxMinor)))
	}
	return nil
}

// FormatAmount renders a with exactly two fractional digits, e.g. "10.50".
func FormatAmount(a money.Amount) string {
	d, err := decimal.New(Minor(a), Scale)
	if err != nil {
		return a.String()
	}
	return d.String()
}
