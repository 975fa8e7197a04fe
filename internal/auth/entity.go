// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// Account is the auth-facing view of a user record, populated by the user
// package. Keeping it here avoids an import cycle between the two domains.
type Account struct {
	ID                string
	Email             string
	Name              string
	PasswordHash      string
	Role              string
	IsActive          bool
	IsEmailVerified   bool
	PasswordChangedAt *time.Time
	RefreshTokenHash  *string
	CreatedAt         time.Time
}

// TokenIssuedBeforePasswordChange is the stale-token fence: any session token
// minted before the last password change is dead, regardless of its own
// expiry. JWT iat claims are second-granular, so the comparison truncates to
// seconds; tokens minted in the same second as the change survive.
func (a *Account) TokenIssuedBeforePasswordChange(issuedAt time.Time) bool {
	if a.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Truncate(time.Second).
		Before(a.PasswordChangedAt.Truncate(time.Second))
}

type TokenType string

const (
	TokenEmailVerification TokenType = "email_verification"
	TokenPasswordReset     TokenType = "password_reset"
)

// OneTimeToken stores only the SHA-256 digest of the emailed secret. The
// unique index on (user_id, token_type) enforces at most one live token per
// pair.
type OneTimeToken struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	Type      TokenType `db:"token_type"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (t *OneTimeToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}
