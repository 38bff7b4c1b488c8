package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars!!"

func newTestService() *JWTService {
	return NewJWTService(testSecret, time.Hour, 24*time.Hour)
}

func TestJWTService_AccessTokenRoundTrip(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateAccessToken("user-1", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "access", claims.Subject)
}

func TestJWTService_ValidateToken_Invalid(t *testing.T) {
	svc := newTestService()

	t.Run("乱码 Token", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("密钥不匹配", func(t *testing.T) {
		other := NewJWTService("another-secret-key-also-32-chars!!!", time.Hour, time.Hour)
		token, err := other.GenerateAccessToken("user-1", "alice")
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("已过期", func(t *testing.T) {
		expired := NewJWTService(testSecret, -time.Minute, time.Hour)
		token, err := expired.GenerateAccessToken("user-1", "alice")
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}

func TestJWTService_ValidateRefreshToken(t *testing.T) {
	svc := newTestService()

	refresh, err := svc.GenerateRefreshToken("user-1", "alice")
	require.NoError(t, err)

	claims, err := svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "refresh", claims.Subject)

	// Access Token 不能当 Refresh Token 用
	access, err := svc.GenerateAccessToken("user-1", "alice")
	require.NoError(t, err)
	_, err = svc.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseUserToken(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateAccessToken("user-1", "alice")
	require.NoError(t, err)

	claims, err := ParseUserToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	_, err = ParseUserToken(token, "wrong-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
