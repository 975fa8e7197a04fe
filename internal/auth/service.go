// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelamos/bookstore-api/internal/config"
	"github.com/angelamos/bookstore-api/internal/core"
	"github.com/angelamos/bookstore-api/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already exists")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrOneTimeToken       = errors.New("invalid or expired token")
	ErrIncorrectPassword  = errors.New("current password is incorrect")
	ErrUserGone           = errors.New("user no longer exists")
	ErrAccountDeactivated = errors.New("account is deactivated")
)

// UserStore is what auth needs from the user domain.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	Create(
		ctx context.Context,
		email, passwordHash, name string,
	) (*Account, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetRefreshTokenHash(ctx context.Context, userID string, hash *string) error
	MarkEmailVerified(ctx context.Context, userID string) error
}

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Notifier is the realtime side channel. Delivery is best-effort and never
// fails the triggering operation.
type Notifier interface {
	Notify(userID, event string, payload any)
}

type Service struct {
	tokens   Repository
	jwt      *TokenManager
	users    UserStore
	mailer   Mailer
	notifier Notifier

	baseURL    string
	oneTimeTTL time.Duration
}

func NewService(
	tokens Repository,
	jwt *TokenManager,
	users UserStore,
	mailer Mailer,
	notifier Notifier,
	appCfg config.AppConfig,
	tokensCfg config.TokensConfig,
) *Service {
	return &Service{
		tokens:     tokens,
		jwt:        jwt,
		users:      users,
		mailer:     mailer,
		notifier:   notifier,
		baseURL:    appCfg.BaseURL,
		oneTimeTTL: tokensCfg.OneTimeExpire,
	}
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
) (*AuthResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account, err := s.users.Create(ctx, req.Email, passwordHash, req.Name)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	// Verification mail is best-effort: a mail outage must not block
	// registration.
	secret, err := s.issueOneTime(ctx, account.ID, TokenEmailVerification)
	if err != nil {
		slog.Warn("issue verification token failed",
			"user_id", account.ID,
			"error", err,
		)
	} else if err := s.mailer.Send(
		ctx,
		account.Email,
		"Verify your email",
		s.verificationBody(account.Name, secret),
	); err != nil {
		slog.Warn("send verification email failed",
			"user_id", account.ID,
			"error", err,
		)
	}

	resp, err := s.createAuthResponse(ctx, account)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(account.ID, "account:registered", map[string]string{
		"email": account.Email,
	})

	return resp, nil
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
) (*AuthResponse, error) {
	account, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, err := core.VerifyPasswordTimingSafe(
		req.Password,
		&account.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	// Inactive accounts get the same uniform answer as bad credentials so
	// responses reveal nothing about account state.
	if !valid || !account.IsActive {
		return nil, ErrInvalidCredentials
	}

	resp, err := s.createAuthResponse(ctx, account)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(account.ID, "auth:login", map[string]string{
		"email": account.Email,
	})

	return resp, nil
}

// Refresh verifies the presented refresh token against both its signature and
// the hash persisted on the user row, then rotates the pair.
func (s *Service) Refresh(
	ctx context.Context,
	refreshToken string,
) (*AuthResponse, error) {
	claims, err := s.jwt.Verify(refreshToken, KindRefresh)
	if err != nil {
		return nil, err
	}

	account, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !account.IsActive {
		return nil, ErrAccountDeactivated
	}

	if account.RefreshTokenHash == nil ||
		!core.CompareTokenHash(refreshToken, *account.RefreshTokenHash) {
		return nil, fmt.Errorf("refresh: token rotated: %w", core.ErrTokenInvalid)
	}

	if account.TokenIssuedBeforePasswordChange(claims.IssuedAt) {
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenStale)
	}

	return s.createAuthResponse(ctx, account)
}

func (s *Service) VerifyEmail(ctx context.Context, plaintext string) error {
	userID, err := s.tokens.ConsumeByHash(
		ctx,
		core.HashToken(plaintext),
		TokenEmailVerification,
	)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrOneTimeToken
		}
		return fmt.Errorf("consume verification token: %w", err)
	}

	account, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if account.IsEmailVerified {
		return ErrAlreadyVerified
	}

	if err := s.users.MarkEmailVerified(ctx, userID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}

	if err := s.mailer.Send(
		ctx,
		account.Email,
		"Welcome aboard",
		s.welcomeBody(account.Name),
	); err != nil {
		slog.Warn("send welcome email failed",
			"user_id", userID,
			"error", err,
		)
	}

	s.notifier.Notify(userID, "auth:email_verified", map[string]string{
		"email": account.Email,
	})

	return nil
}

// ForgotPassword answers identically whether or not the email exists. A mail
// dispatch failure still propagates as a server error; that response-shape
// side channel matches the upstream behavior and is documented as accepted.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	account, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}

	secret, err := s.issueOneTime(ctx, account.ID, TokenPasswordReset)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	if err := s.mailer.Send(
		ctx,
		account.Email,
		"Reset your password",
		s.resetBody(account.Name, secret),
	); err != nil {
		// Leave no live token behind when the mail never went out.
		if delErr := s.tokens.DeleteForUser(
			ctx,
			account.ID,
			TokenPasswordReset,
		); delErr != nil {
			slog.Warn("cleanup reset token failed",
				"user_id", account.ID,
				"error", delErr,
			)
		}
		return fmt.Errorf("send reset email: %w", err)
	}

	return nil
}

func (s *Service) ResetPassword(
	ctx context.Context,
	plaintext, newPassword string,
) error {
	userID, err := s.tokens.ConsumeByHash(
		ctx,
		core.HashToken(plaintext),
		TokenPasswordReset,
	)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrOneTimeToken
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	passwordHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.users.SetRefreshTokenHash(ctx, userID, nil); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	s.notifier.Notify(userID, "auth:password_reset", nil)

	return nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID, currentPassword, newPassword string,
) (*AuthResponse, error) {
	account, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, err := core.VerifyPassword(currentPassword, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, ErrIncorrectPassword
	}

	passwordHash, err := core.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}

	// The watermark just moved, so mint a fresh pair for the caller.
	resp, err := s.createAuthResponse(ctx, account)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(userID, "auth:password_changed", nil)

	return resp, nil
}

func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.users.SetRefreshTokenHash(ctx, userID, nil); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

// Authenticate is the gate every protected operation passes through:
// signature and expiry, then user existence, active flag, and the stale-token
// fence against password_changed_at.
func (s *Service) Authenticate(
	ctx context.Context,
	tokenString string,
) (*middleware.Identity, error) {
	claims, err := s.jwt.Verify(tokenString, KindAccess)
	if err != nil {
		return nil, err
	}

	account, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.NewAppError(
				ErrUserGone,
				"the user belonging to this token no longer exists",
				http.StatusUnauthorized,
				"USER_GONE",
			)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !account.IsActive {
		return nil, core.NewAppError(
			ErrAccountDeactivated,
			"account has been deactivated",
			http.StatusUnauthorized,
			"ACCOUNT_DEACTIVATED",
		)
	}

	if account.TokenIssuedBeforePasswordChange(claims.IssuedAt) {
		return nil, fmt.Errorf("authenticate: %w", core.ErrTokenStale)
	}

	return &middleware.Identity{
		UserID: account.ID,
		Email:  account.Email,
		Role:   account.Role,
	}, nil
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	account, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(account)
	return &resp, nil
}

func (s *Service) issueOneTime(
	ctx context.Context,
	userID string,
	tokenType TokenType,
) (string, error) {
	secret, err := core.GenerateOneTimeSecret()
	if err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}

	token := &OneTimeToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: core.HashToken(secret),
		Type:      tokenType,
		ExpiresAt: time.Now().Add(s.oneTimeTTL),
	}

	if err := s.tokens.Replace(ctx, token); err != nil {
		return "", err
	}

	return secret, nil
}

func (s *Service) createAuthResponse(
	ctx context.Context,
	account *Account,
) (*AuthResponse, error) {
	accessToken, err := s.jwt.CreateAccessToken(account.ID)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshToken, err := s.jwt.CreateRefreshToken(account.ID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	refreshHash := core.HashToken(refreshToken)
	if err := s.users.SetRefreshTokenHash(ctx, account.ID, &refreshHash); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	ttl := s.jwt.AccessTokenTTL()

	return &AuthResponse{
		User: toUserResponse(account),
		Tokens: TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    "Bearer",
			ExpiresIn:    int(ttl / time.Second),
			ExpiresAt:    time.Now().Add(ttl),
		},
	}, nil
}

func (s *Service) verificationBody(name, secret string) string {
	return fmt.Sprintf(
		"Hi %s,\n\nVerify your email by opening the link below within one hour:\n\n%s/v1/auth/verify-email/%s\n\nIf you did not create an account, ignore this message.\n",
		name,
		s.baseURL,
		secret,
	)
}

func (s *Service) resetBody(name, secret string) string {
	return fmt.Sprintf(
		"Hi %s,\n\nReset your password by opening the link below within one hour:\n\n%s/reset-password/%s\n\nIf you did not request a reset, ignore this message.\n",
		name,
		s.baseURL,
		secret,
	)
}

func (s *Service) welcomeBody(name string) string {
	return fmt.Sprintf(
		"Hi %s,\n\nYour email is verified and your account is ready to use.\n",
		name,
	)
}
