package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-passphrase")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-passphrase", hash)

	assert.True(t, VerifyPassword(hash, "s3cret-passphrase"))
	assert.False(t, VerifyPassword(hash, "wrong"))
	assert.False(t, VerifyPassword("not a bcrypt hash", "s3cret-passphrase"))
}

func TestHashPasswordSalted(t *testing.T) {
	first, err := HashPassword("same input")
	require.NoError(t, err)
	second, err := HashPassword("same input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, VerifyPassword(first, "same input"))
	assert.True(t, VerifyPassword(second, "same input"))
}
