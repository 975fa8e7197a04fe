// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/angelamos/bookstore-api/internal/auth"
	"github.com/angelamos/bookstore-api/internal/query"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create satisfies the account store contract used by the auth flows. Emails
// are stored lowercased so lookups are case-insensitive.
func (s *Service) Create(
	ctx context.Context,
	email, passwordHash, name string,
) (*auth.Account, error) {
	u := &User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		Name:         name,
		Role:         RoleUser,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	return toAccount(u), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.Account, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	return toAccount(u), nil
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.Account, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toAccount(u), nil
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) SetRefreshTokenHash(
	ctx context.Context,
	userID string,
	hash *string,
) error {
	return s.repo.SetRefreshTokenHash(ctx, userID, hash)
}

func (s *Service) MarkEmailVerified(ctx context.Context, userID string) error {
	return s.repo.MarkEmailVerified(ctx, userID)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateProfileRequest,
) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		// A new address is unproven until it passes verification again.
		if email != u.Email {
			u.IsEmailVerified = false
		}
		u.Email = email
	}

	if err := s.repo.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

func (s *Service) ListUsers(
	ctx context.Context,
	q query.Query,
) ([]User, int, error) {
	return s.repo.List(ctx, q)
}

func (s *Service) UpdateRole(
	ctx context.Context,
	userID, role string,
) (*User, error) {
	if err := s.repo.SetRole(ctx, userID, role); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateStatus(
	ctx context.Context,
	userID string,
	active bool,
) (*User, error) {
	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, userID)
}

// ErrSelfDelete guards admins from removing their own account through the
// admin surface.
var ErrSelfDelete = errors.New("cannot delete own account")

func (s *Service) DeleteUser(ctx context.Context, callerID, userID string) error {
	if callerID == userID {
		return ErrSelfDelete
	}
	return s.repo.Delete(ctx, userID)
}

func toAccount(u *User) *auth.Account {
	return &auth.Account{
		ID:                u.ID,
		Email:             u.Email,
		Name:              u.Name,
		PasswordHash:      u.PasswordHash,
		Role:              u.Role,
		IsActive:          u.IsActive,
		IsEmailVerified:   u.IsEmailVerified,
		PasswordChangedAt: u.PasswordChangedAt,
		RefreshTokenHash:  u.RefreshTokenHash,
		CreatedAt:         u.CreatedAt,
	}
}
