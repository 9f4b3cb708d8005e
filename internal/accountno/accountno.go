package accountno

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Prefix starts every account number.
const Prefix = "ACCT-"

var reNumber = regexp.MustCompile(`^ACCT-[0-9A-F]{12}$`)

// IsValid returns true if s matches ^ACCT-[0-9A-F]{12}$
func IsValid(s string) bool {
	return reNumber.MatchString(s)
}

// Normalize trims and upper-cases s so that user input compares equal to stored numbers.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Generate returns a fresh random account number. Uniqueness is enforced by the
// store, which retries on collision.
func Generate() string {
	id := uuid.New()
	return Prefix + strings.ToUpper(hex.EncodeToString(id[:6]))
}
