package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHasher_RoundTrip(t *testing.T) {
	t.Parallel()

	hasher := NewPasswordHasher(4)

	hash, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotContains(t, hash, "correct horse")

	assert.True(t, hasher.Verify("correct horse battery staple", hash))
	assert.False(t, hasher.Verify("wrong password", hash))
}

func TestPasswordHasher_DistinctHashes(t *testing.T) {
	t.Parallel()

	hasher := NewPasswordHasher(4)

	h1, err := hasher.Hash("same password")
	require.NoError(t, err)
	h2, err := hasher.Hash("same password")
	require.NoError(t, err)

	// Salted: same input, different hashes, both verify.
	assert.NotEqual(t, h1, h2)
	assert.True(t, hasher.Verify("same password", h1))
	assert.True(t, hasher.Verify("same password", h2))
}

func TestPasswordHasher_CostClamped(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		h := NewPasswordHasher(-1)
		_, err := h.Hash("pw")
		require.NoError(t, err)
	})
}
