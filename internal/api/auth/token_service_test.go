package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*TokenService, *User) {
	t.Helper()
	users := NewUserStore()
	user, err := users.Register("test@example.com", "hunter2hunter2")
	require.NoError(t, err)
	return NewTokenService(users, "test-secret"), user
}

func TestUserStore(t *testing.T) {
	users := NewUserStore()

	t.Run("register and authenticate", func(t *testing.T) {
		u, err := users.Register("Alice@Example.com", "password123")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", u.Email, "email is normalized")

		got, err := users.Authenticate("alice@example.com", "password123")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := users.Authenticate("alice@example.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := users.Register("alice@example.com", "password123")
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("short password rejected", func(t *testing.T) {
		_, err := users.Register("bob@example.com", "short")
		assert.Error(t, err)
	})
}

func TestTokenPairLifecycle(t *testing.T) {
	ts, user := newTestService(t)

	pair, err := ts.CreateTokenPair(user)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.NotEmpty(t, pair.RefreshToken)

	t.Run("access token validates", func(t *testing.T) {
		got, err := ts.ValidateAccessToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		_, err := ts.ValidateAccessToken("not-a-jwt")
		assert.Error(t, err)
	})

	t.Run("refresh rotates and is single-use", func(t *testing.T) {
		newPair, err := ts.RefreshTokenPair(pair.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, pair.AccessToken, newPair.AccessToken)

		_, err = ts.RefreshTokenPair(pair.RefreshToken)
		assert.Error(t, err, "spent refresh token is rejected")
	})

	t.Run("logout revokes access token", func(t *testing.T) {
		p, err := ts.CreateTokenPair(user)
		require.NoError(t, err)

		ts.RevokeAccessToken(p.AccessToken)
		_, err = ts.ValidateAccessToken(p.AccessToken)
		assert.Error(t, err)
	})
}

func TestRevokeAllUserTokens(t *testing.T) {
	ts, user := newTestService(t)

	a, err := ts.CreateTokenPair(user)
	require.NoError(t, err)
	b, err := ts.CreateTokenPair(user)
	require.NoError(t, err)

	ts.RevokeAllUserTokens(user.ID)

	_, err = ts.ValidateAccessToken(a.AccessToken)
	assert.Error(t, err)
	_, err = ts.ValidateAccessToken(b.AccessToken)
	assert.Error(t, err)
	_, err = ts.RefreshTokenPair(a.RefreshToken)
	assert.Error(t, err)
}

func TestCleanupExpiredTokens(t *testing.T) {
	ts, user := newTestService(t)
	ts.AccessTokenDuration = -time.Minute // already expired on issue

	pair, err := ts.CreateTokenPair(user)
	require.NoError(t, err)

	_, err = ts.ValidateAccessToken(pair.AccessToken)
	assert.Error(t, err, "expired session rejected")

	removed := ts.CleanupExpiredTokens()
	assert.GreaterOrEqual(t, removed, 1)
}
