// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID                string     `db:"id"`
	Email             string     `db:"email"`
	PasswordHash      string     `db:"password_hash"`
	Name              string     `db:"name"`
	Role              string     `db:"role"`
	IsActive          bool       `db:"is_active"`
	IsEmailVerified   bool       `db:"is_email_verified"`
	PasswordChangedAt *time.Time `db:"password_changed_at"`
	RefreshTokenHash  *string    `db:"refresh_token_hash"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
