package security_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jirayus/identity-api/internal/security"
)

func TestSecretHasherDeterministic(t *testing.T) {
	hasher := security.NewSecretHasher("pepper-one")

	first := hasher.Hash("some-raw-secret")
	second := hasher.Hash("some-raw-secret")
	assert.Equal(t, first, second)
	assert.NotEqual(t, "some-raw-secret", first)

	assert.NotEqual(t, first, hasher.Hash("another-secret"))
}

func TestSecretHasherPepperChangesDigest(t *testing.T) {
	a := security.NewSecretHasher("pepper-one")
	b := security.NewSecretHasher("pepper-two")

	// A leaked database alone is not enough to forge lookups.
	assert.NotEqual(t, a.Hash("some-raw-secret"), b.Hash("some-raw-secret"))
}

func TestRandomToken(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		tok, err := security.RandomToken(32)
		require.NoError(t, err)
		require.NotEmpty(t, tok)
		assert.False(t, seen[tok], "token repeated")
		seen[tok] = true
	}
}

func TestGenerateOTPCode(t *testing.T) {
	for range 100 {
		code, err := security.GenerateOTPCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9', "non-digit in code %q", code)
		}
	}
}
