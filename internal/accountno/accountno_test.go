package accountno

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateIsValid(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		n := Generate()
		assert.True(t, IsValid(n), n)
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ACCT-00AB12CD34EF", Normalize("  acct-00ab12cd34ef "))
	assert.True(t, IsValid(Normalize("acct-00ab12cd34ef")))
	assert.False(t, IsValid("ACCT-1-1"))
	assert.False(t, IsValid("ACCT-00AB12CD34EF0"))
}
