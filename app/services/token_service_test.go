package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "test-secret-key-with-at-least-32-chars"

func newTestTokenService(t *testing.T, accessTTL, refreshTTL time.Duration) TokenService {
	t.Helper()
	ts, err := NewTokenService(accessTTL, refreshTTL, "kitsune-test", "kitsune-api", false, "", "", testSecretKey)
	require.NoError(t, err)
	return ts
}

func TestGenerateAndValidateTokens(t *testing.T) {
	ts := newTestTokenService(t, 15*time.Minute, 24*time.Hour)

	accessToken, refreshToken, err := ts.GenerateTokens(42)
	require.NoError(t, err)
	require.NotEmpty(t, accessToken)
	require.NotEmpty(t, refreshToken)
	assert.NotEqual(t, accessToken, refreshToken)

	accessClaims, err := ts.ValidateToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(42), accessClaims.CreatorID)
	assert.Equal(t, "access", accessClaims.TokenType)
	assert.NotEmpty(t, accessClaims.TokenID)
	assert.True(t, accessClaims.ExpiresAt.After(accessClaims.IssuedAt))

	refreshClaims, err := ts.ValidateToken(refreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh", refreshClaims.TokenType)
	assert.NotEqual(t, accessClaims.TokenID, refreshClaims.TokenID)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	ts := newTestTokenService(t, 15*time.Minute, 24*time.Hour)

	_, err := ts.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = ts.ValidateToken("")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	ts := newTestTokenService(t, 15*time.Minute, 24*time.Hour)
	other, err := NewTokenService(15*time.Minute, 24*time.Hour, "kitsune-test", "kitsune-api", false, "", "", "another-secret-key-with-32-characters!")
	require.NoError(t, err)

	accessToken, _, err := ts.GenerateTokens(1)
	require.NoError(t, err)

	_, err = other.ValidateToken(accessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateTokenExpired(t *testing.T) {
	ts := newTestTokenService(t, -time.Minute, 24*time.Hour)

	accessToken, _, err := ts.GenerateTokens(1)
	require.NoError(t, err)

	_, err = ts.ValidateToken(accessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRevokeToken(t *testing.T) {
	ts := newTestTokenService(t, 15*time.Minute, 24*time.Hour)

	accessToken, refreshToken, err := ts.GenerateTokens(7)
	require.NoError(t, err)

	require.NoError(t, ts.RevokeToken(accessToken))

	_, err = ts.ValidateToken(accessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	assert.True(t, ts.IsTokenRevoked(accessToken))

	// Revocation is per token, not per creator.
	_, err = ts.ValidateToken(refreshToken)
	assert.NoError(t, err)
	assert.False(t, ts.IsTokenRevoked(refreshToken))
}

func TestRefreshToken(t *testing.T) {
	ts := newTestTokenService(t, 15*time.Minute, 24*time.Hour)

	_, refreshToken, err := ts.GenerateTokens(42)
	require.NoError(t, err)

	newAccess, newRefresh, err := ts.RefreshToken(refreshToken)
	require.NoError(t, err)

	claims, err := ts.ValidateToken(newAccess)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.CreatorID)
	assert.Equal(t, "access", claims.TokenType)

	claims, err = ts.ValidateToken(newRefresh)
	require.NoError(t, err)
	assert.Equal(t, "refresh", claims.TokenType)
}

func TestRefreshTokenRejectsAccessToken(t *testing.T) {
	ts := newTestTokenService(t, 15*time.Minute, 24*time.Hour)

	accessToken, _, err := ts.GenerateTokens(1)
	require.NoError(t, err)

	_, _, err = ts.RefreshToken(accessToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a refresh token")
}

func TestRefreshTokenRejectsRevoked(t *testing.T) {
	ts := newTestTokenService(t, 15*time.Minute, 24*time.Hour)

	_, refreshToken, err := ts.GenerateTokens(1)
	require.NoError(t, err)
	require.NoError(t, ts.RevokeToken(refreshToken))

	_, _, err = ts.RefreshToken(refreshToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTokenRevoked))
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	_, err := NewTokenService(15*time.Minute, 24*time.Hour, "kitsune-test", "kitsune-api", false, "", "", "")
	require.Error(t, err)
}
