// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/angelamos/bookstore-api/internal/core"
)

type Repository interface {
	// Replace atomically installs a new token for (user, type), displacing
	// any live one.
	Replace(ctx context.Context, token *OneTimeToken) error
	// ConsumeByHash deletes a non-expired token matching the hash and type
	// and returns its owner. A second call with the same hash finds nothing.
	ConsumeByHash(
		ctx context.Context,
		tokenHash string,
		tokenType TokenType,
	) (string, error)
	DeleteForUser(
		ctx context.Context,
		userID string,
		tokenType TokenType,
	) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Replace(ctx context.Context, token *OneTimeToken) error {
	// The upsert keyed on (user_id, token_type) is what enforces the
	// at-most-one-live invariant under concurrent issuance.
	stmt := `
		INSERT INTO one_time_tokens (
			id, user_id, token_hash, token_type, expires_at
		) VALUES (
			$1, $2, $3, $4, $5
		)
		ON CONFLICT (user_id, token_type) DO UPDATE
		SET id = EXCLUDED.id,
		    token_hash = EXCLUDED.token_hash,
		    expires_at = EXCLUDED.expires_at,
		    created_at = NOW()
		RETURNING created_at`

	err := r.db.GetContext(ctx, &token.CreatedAt, stmt,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.Type,
		token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("replace one-time token: %w", err)
	}

	return nil
}

func (r *repository) ConsumeByHash(
	ctx context.Context,
	tokenHash string,
	tokenType TokenType,
) (string, error) {
	stmt := `
		DELETE FROM one_time_tokens
		WHERE token_hash = $1 AND token_type = $2 AND expires_at > NOW()
		RETURNING user_id`

	var userID string
	err := r.db.GetContext(ctx, &userID, stmt, tokenHash, tokenType)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("consume one-time token: %w", core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("consume one-time token: %w", err)
	}

	return userID, nil
}

func (r *repository) DeleteForUser(
	ctx context.Context,
	userID string,
	tokenType TokenType,
) error {
	stmt := `
		DELETE FROM one_time_tokens
		WHERE user_id = $1 AND token_type = $2`

	if _, err := r.db.ExecContext(ctx, stmt, userID, tokenType); err != nil {
		return fmt.Errorf("delete one-time tokens: %w", err)
	}

	return nil
}

func (r *repository) DeleteExpired(ctx context.Context) (int64, error) {
	stmt := `DELETE FROM one_time_tokens WHERE expires_at < NOW()`

	result, err := r.db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	return rows, nil
}
