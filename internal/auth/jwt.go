// AngelaMos | 2026
// jwt.go

package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/angelamos/bookstore-api/internal/config"
	"github.com/angelamos/bookstore-api/internal/core"
)

type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// TokenManager mints and verifies the two stateless session tokens. Access
// and refresh tokens are signed with distinct secrets, so one kind can never
// pass verification as the other.
type TokenManager struct {
	accessKey  jwk.Key
	refreshKey jwk.Key
	config     config.JWTConfig
}

func NewTokenManager(cfg config.JWTConfig) (*TokenManager, error) {
	accessKey, err := jwk.Import([]byte(cfg.AccessSecret))
	if err != nil {
		return nil, fmt.Errorf("import access secret: %w", err)
	}

	refreshKey, err := jwk.Import([]byte(cfg.RefreshSecret))
	if err != nil {
		return nil, fmt.Errorf("import refresh secret: %w", err)
	}

	return &TokenManager{
		accessKey:  accessKey,
		refreshKey: refreshKey,
		config:     cfg,
	}, nil
}

// SessionClaims is the verified content of a session token.
type SessionClaims struct {
	UserID    string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (m *TokenManager) CreateAccessToken(userID string) (string, error) {
	return m.create(userID, KindAccess, m.accessKey, m.config.AccessTokenExpire)
}

func (m *TokenManager) CreateRefreshToken(userID string) (string, error) {
	return m.create(userID, KindRefresh, m.refreshKey, m.config.RefreshTokenExpire)
}

func (m *TokenManager) create(
	userID string,
	kind TokenKind,
	key jwk.Key,
	ttl time.Duration,
) (string, error) {
	now := time.Now()

	token, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(userID).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		NotBefore(now).
		Claim("type", string(kind)).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return string(signed), nil
}

// Verify checks signature, expiry, issuer, audience and kind. Expiry and
// signature failures carry distinct sentinels so callers can react
// differently (refresh flow vs. forced re-login).
func (m *TokenManager) Verify(
	tokenString string,
	kind TokenKind,
) (*SessionClaims, error) {
	key := m.accessKey
	if kind == KindRefresh {
		key = m.refreshKey
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), key),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
	)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := token.Get("type", &tokenType); err != nil ||
		tokenType != string(kind) {
		return nil, fmt.Errorf(
			"verify token: wrong token type: %w",
			core.ErrTokenInvalid,
		)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	issuedAt, ok := token.IssuedAt()
	if !ok {
		return nil, fmt.Errorf(
			"verify token: missing issued-at: %w",
			core.ErrTokenInvalid,
		)
	}

	expiresAt, _ := token.Expiration()

	return &SessionClaims{
		UserID:    subject,
		Kind:      kind,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

func (m *TokenManager) AccessTokenTTL() time.Duration {
	return m.config.AccessTokenExpire
}

func isTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "exp") &&
		strings.Contains(errStr, "not satisfied")
}
