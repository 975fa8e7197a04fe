// AngelaMos | 2026
// jwt_test.go

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/bookstore-api/internal/config"
	"github.com/angelamos/bookstore-api/internal/core"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		AccessSecret:       "test-access-secret-test-access-secret",
		RefreshSecret:      "test-refresh-secret-test-refresh-secret",
		AccessTokenExpire:  time.Hour,
		RefreshTokenExpire: 2 * time.Hour,
		Issuer:             "bookstore-api",
		Audience:           "bookstore-clients",
	}
}

func newTestTokenManager(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(testJWTConfig())
	require.NoError(t, err)
	return tm
}

func TestAccessTokenRoundTrip(t *testing.T) {
	tm := newTestTokenManager(t)

	token, err := tm.CreateAccessToken("user-123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.Verify(token, KindAccess)
	require.NoError(t, err)

	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, KindAccess, claims.Kind)
	assert.WithinDuration(t, time.Now(), claims.IssuedAt, 5*time.Second)
	assert.WithinDuration(t,
		time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	tm := newTestTokenManager(t)

	token, err := tm.CreateRefreshToken("user-123")
	require.NoError(t, err)

	claims, err := tm.Verify(token, KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, KindRefresh, claims.Kind)
}

// The two kinds are signed with distinct secrets, so a refresh token must
// never verify as an access token or vice versa.
func TestTokenKindsDoNotCross(t *testing.T) {
	tm := newTestTokenManager(t)

	access, err := tm.CreateAccessToken("user-123")
	require.NoError(t, err)
	refresh, err := tm.CreateRefreshToken("user-123")
	require.NoError(t, err)

	_, err = tm.Verify(access, KindRefresh)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)

	_, err = tm.Verify(refresh, KindAccess)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestExpiredTokenDistinguishedFromInvalid(t *testing.T) {
	cfg := testJWTConfig()
	cfg.AccessTokenExpire = -time.Minute

	tm, err := NewTokenManager(cfg)
	require.NoError(t, err)

	token, err := tm.CreateAccessToken("user-123")
	require.NoError(t, err)

	_, err = tm.Verify(token, KindAccess)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
	assert.NotErrorIs(t, err, core.ErrTokenInvalid)
}

func TestTamperedTokenRejected(t *testing.T) {
	tm := newTestTokenManager(t)

	token, err := tm.CreateAccessToken("user-123")
	require.NoError(t, err)

	tampered := token[:len(token)-4] + "AAAA"

	_, err = tm.Verify(tampered, KindAccess)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestForeignSecretRejected(t *testing.T) {
	tm := newTestTokenManager(t)

	otherCfg := testJWTConfig()
	otherCfg.AccessSecret = "a-completely-different-secret-value"
	other, err := NewTokenManager(otherCfg)
	require.NoError(t, err)

	token, err := other.CreateAccessToken("user-123")
	require.NoError(t, err)

	_, err = tm.Verify(token, KindAccess)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestGarbageTokenRejected(t *testing.T) {
	tm := newTestTokenManager(t)

	_, err := tm.Verify("not.a.token", KindAccess)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}
