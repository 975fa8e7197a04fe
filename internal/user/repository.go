// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/angelamos/bookstore-api/internal/core"
	"github.com/angelamos/bookstore-api/internal/query"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateProfile(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetRefreshTokenHash(ctx context.Context, id string, hash *string) error
	SetRole(ctx context.Context, id, role string) error
	SetActive(ctx context.Context, id string, active bool) error
	MarkEmailVerified(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q query.Query) ([]User, int, error)
}

const userColumns = `id, email, password_hash, name, role, is_active,
		is_email_verified, password_changed_at, refresh_token_hash,
		created_at, updated_at`

var userRenderer = query.Renderer{
	Table: "users",
	Default: []string{
		"id", "email", "name", "role", "is_active", "is_email_verified",
		"created_at", "updated_at",
	},
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, user *User) error {
	stmt := `
		INSERT INTO users (id, email, password_hash, name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at, is_active, is_email_verified`

	err := r.db.GetContext(ctx, user, stmt,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	stmt := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	var user User
	err := r.db.GetContext(ctx, &user, stmt, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	stmt := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)

	var user User
	err := r.db.GetContext(ctx, &user, stmt, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &user, nil
}

func (r *repository) UpdateProfile(ctx context.Context, user *User) error {
	stmt := `
		UPDATE users
		SET name = $2, email = $3, is_email_verified = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &user.UpdatedAt, stmt,
		user.ID,
		user.Name,
		user.Email,
		user.IsEmailVerified,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("update user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

// UpdatePassword also stamps password_changed_at, the watermark every session
// token is checked against.
func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	// The watermark sits one second behind NOW() so tokens minted in the
	// same request survive the fence even when the database clock runs
	// slightly ahead of the application clock.
	stmt := `
		UPDATE users
		SET password_hash = $2,
			password_changed_at = NOW() - INTERVAL '1 second',
			updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "update password", stmt, id, passwordHash)
}

func (r *repository) SetRefreshTokenHash(
	ctx context.Context,
	id string,
	hash *string,
) error {
	stmt := `
		UPDATE users
		SET refresh_token_hash = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "set refresh token", stmt, id, hash)
}

func (r *repository) SetRole(ctx context.Context, id, role string) error {
	stmt := `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "set role", stmt, id, role)
}

func (r *repository) SetActive(
	ctx context.Context,
	id string,
	active bool,
) error {
	stmt := `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "set active", stmt, id, active)
}

func (r *repository) MarkEmailVerified(ctx context.Context, id string) error {
	stmt := `
		UPDATE users
		SET is_email_verified = TRUE, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "mark email verified", stmt, id)
}

func (r *repository) Delete(ctx context.Context, id string) error {
	stmt := `DELETE FROM users WHERE id = $1`
	return r.execOne(ctx, "delete user", stmt, id)
}

func (r *repository) List(
	ctx context.Context,
	q query.Query,
) ([]User, int, error) {
	countStmt, countArgs, err := userRenderer.Count(q)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countStmt, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", badQueryValue(err))
	}

	stmt, args, err := userRenderer.Select(q)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var users []User
	if err := r.db.SelectContext(ctx, &users, stmt, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", badQueryValue(err))
	}

	return users, total, nil
}

func (r *repository) execOne(
	ctx context.Context,
	action, stmt string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", action, core.ErrNotFound)
	}

	return nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// badQueryValue maps postgres cast failures on filter values to the
// bad-field sentinel so list handlers answer 400 instead of 500.
func badQueryValue(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
		return fmt.Errorf("%w: %s", query.ErrBadField, pgErr.Message)
	}
	return err
}
