package gymgate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymstack/gymgate"
)

func TestHashPassword(t *testing.T) {
	hash, err := gymgate.HashPassword("super-secret-password")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "super-secret-password", hash)

	assert.NoError(t, gymgate.ComparePasswordAndHash("super-secret-password", hash))
}

func TestHashPasswordEmpty(t *testing.T) {
	_, err := gymgate.HashPassword("")
	assert.ErrorIs(t, err, gymgate.ErrEmptyPassword)
}

func TestComparePasswordAndHashMismatch(t *testing.T) {
	hash, err := gymgate.HashPassword("correct-password")
	require.NoError(t, err)

	err = gymgate.ComparePasswordAndHash("wrong-password", hash)
	assert.ErrorIs(t, err, gymgate.ErrInvalidCredentials)
}
