package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMintsUniqueFixedLengthTokens(t *testing.T) {
	s := NewStore()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		token, err := s.Create("alice1")
		require.NoError(t, err)
		assert.Len(t, token, 64)

		_, dup := seen[token]
		assert.False(t, dup, "token minted twice")
		seen[token] = struct{}{}
	}
}

func TestResolveKnownToken(t *testing.T) {
	s := NewStore()

	token, err := s.Create("alice1")
	require.NoError(t, err)

	username, ok := s.Resolve(token)
	assert.True(t, ok)
	assert.Equal(t, "alice1", username)
}

func TestResolveUnknownTokenIsNotAnError(t *testing.T) {
	s := NewStore()

	username, ok := s.Resolve("deadbeef")
	assert.False(t, ok)
	assert.Empty(t, username)
}

func TestMultipleTokensPerUsername(t *testing.T) {
	s := NewStore()

	first, err := s.Create("alice1")
	require.NoError(t, err)
	second, err := s.Create("alice1")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// Multi-login: both tokens resolve until individually invalidated.
	for _, token := range []string{first, second} {
		username, ok := s.Resolve(token)
		assert.True(t, ok)
		assert.Equal(t, "alice1", username)
	}

	s.Invalidate(first)
	_, ok := s.Resolve(first)
	assert.False(t, ok)
	_, ok = s.Resolve(second)
	assert.True(t, ok)
}

func TestInvalidateIsIdempotent(t *testing.T) {
	s := NewStore()

	token, err := s.Create("alice1")
	require.NoError(t, err)

	s.Invalidate(token)
	s.Invalidate(token)

	_, ok := s.Resolve(token)
	assert.False(t, ok)
}
