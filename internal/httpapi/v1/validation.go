package v1

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tinoosan/bankledger/internal/accountno"
	"github.com/tinoosan/bankledger/internal/ledger"
)

// newValidator returns a validator that reports fields by their JSON names and
// knows the domain enums.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for an empty tag or a nil func.
	_ = v.RegisterValidation("account_number", func(fl validator.FieldLevel) bool {
		return accountno.IsValid(accountno.Normalize(fl.Field().String()))
	})
	_ = v.RegisterValidation("account_type", func(fl validator.FieldLevel) bool {
		return ledger.AccountType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("account_status", func(fl validator.FieldLevel) bool {
		return ledger.AccountStatus(fl.Field().String()).Valid()
	})
	return v
}

// describeValidation turns the first failed rule into a client message.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "account_number":
		return field + " must look like " + accountno.Prefix + "XXXXXXXXXXXX"
	case "account_type":
		return fmt.Sprintf("%s must be %q or %q", field, ledger.AccountTypeChecking, ledger.AccountTypeSavings)
	case "account_status":
		return fmt.Sprintf("%s must be one of %s, %s, %s", field, ledger.StatusActive, ledger.StatusFrozen, ledger.StatusClosed)
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
