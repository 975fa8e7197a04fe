// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/bookstore-api/internal/config"
	"github.com/angelamos/bookstore-api/internal/core"
)

// fakeTokenRepo mirrors the at-most-one-live and consume-once semantics the
// SQL repository gets from its upsert and delete-returning statements.
type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*OneTimeToken // key: userID + "/" + type
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*OneTimeToken)}
}

func (r *fakeTokenRepo) key(userID string, t TokenType) string {
	return userID + "/" + string(t)
}

func (r *fakeTokenRepo) Replace(_ context.Context, token *OneTimeToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token.CreatedAt = time.Now()
	r.tokens[r.key(token.UserID, token.Type)] = token
	return nil
}

func (r *fakeTokenRepo) ConsumeByHash(
	_ context.Context,
	tokenHash string,
	tokenType TokenType,
) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, tok := range r.tokens {
		if tok.TokenHash == tokenHash && tok.Type == tokenType &&
			!tok.IsExpired() {
			delete(r.tokens, k)
			return tok.UserID, nil
		}
	}
	return "", core.ErrNotFound
}

func (r *fakeTokenRepo) DeleteForUser(
	_ context.Context,
	userID string,
	tokenType TokenType,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, r.key(userID, tokenType))
	return nil
}

func (r *fakeTokenRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, tok := range r.tokens {
		if tok.IsExpired() {
			delete(r.tokens, k)
			n++
		}
	}
	return n, nil
}

func (r *fakeTokenRepo) liveCount(userID string, t TokenType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, tok := range r.tokens {
		if tok.UserID == userID && tok.Type == t && !tok.IsExpired() {
			n++
		}
	}
	return n
}

type fakeUserStore struct {
	mu       sync.Mutex
	accounts map[string]*Account // by ID
	nextID   int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{accounts: make(map[string]*Account)}
}

func (s *fakeUserStore) Create(
	_ context.Context,
	email, passwordHash, name string,
) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(email)
	for _, a := range s.accounts {
		if a.Email == email {
			return nil, fmt.Errorf("create: %w", core.ErrDuplicateKey)
		}
	}
	s.nextID++
	a := &Account{
		ID:           fmt.Sprintf("user-%d", s.nextID),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         "user",
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	s.accounts[a.ID] = a
	return a, nil
}

func (s *fakeUserStore) GetByEmail(
	_ context.Context,
	email string,
) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == strings.ToLower(email) {
			copied := *a
			return &copied, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *fakeUserStore) GetByID(
	_ context.Context,
	id string,
) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *fakeUserStore) UpdatePassword(
	_ context.Context,
	userID, passwordHash string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return core.ErrNotFound
	}
	// One second behind the wall clock, matching the SQL watermark.
	changed := time.Now().Add(-time.Second)
	a.PasswordHash = passwordHash
	a.PasswordChangedAt = &changed
	return nil
}

func (s *fakeUserStore) SetRefreshTokenHash(
	_ context.Context,
	userID string,
	hash *string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return core.ErrNotFound
	}
	a.RefreshTokenHash = hash
	return nil
}

func (s *fakeUserStore) MarkEmailVerified(
	_ context.Context,
	userID string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return core.ErrNotFound
	}
	a.IsEmailVerified = true
	return nil
}

func (s *fakeUserStore) setActive(userID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[userID].IsActive = active
}

func (s *fakeUserStore) shiftPasswordChangedAt(userID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[userID]
	shifted := a.PasswordChangedAt.Add(d)
	a.PasswordChangedAt = &shifted
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

type sentMail struct {
	to, subject, body string
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// lastSecret pulls the one-time secret out of the last mail's link.
func (m *fakeMailer) lastSecret(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	body := m.sent[len(m.sent)-1].body
	idx := strings.LastIndexByte(strings.TrimSpace(body), '/')
	require.Positive(t, idx)
	rest := strings.TrimSpace(body)[idx+1:]
	return strings.Fields(rest)[0]
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) Notify(userID, event string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, userID+":"+event)
}

func (n *fakeNotifier) has(userID, event string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == userID+":"+event {
			return true
		}
	}
	return false
}

type fixture struct {
	svc      *Service
	tokens   *fakeTokenRepo
	users    *fakeUserStore
	mailer   *fakeMailer
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tm, err := NewTokenManager(testJWTConfig())
	require.NoError(t, err)

	f := &fixture{
		tokens:   newFakeTokenRepo(),
		users:    newFakeUserStore(),
		mailer:   &fakeMailer{},
		notifier: &fakeNotifier{},
	}
	f.svc = NewService(
		f.tokens,
		tm,
		f.users,
		f.mailer,
		f.notifier,
		config.AppConfig{BaseURL: "http://localhost:8080"},
		config.TokensConfig{OneTimeExpire: time.Hour},
	)
	return f
}

func (f *fixture) register(t *testing.T, email, password string) *AuthResponse {
	t.Helper()
	resp, err := f.svc.Register(context.Background(), RegisterRequest{
		Name:     "Test User",
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return resp
}

func TestRegisterIssuesTokensAndVerificationMail(t *testing.T) {
	f := newFixture(t)

	resp := f.register(t, "reader@example.com", "correct horse")

	assert.Equal(t, "reader@example.com", resp.User.Email)
	assert.False(t, resp.User.IsEmailVerified)
	assert.NotEmpty(t, resp.Tokens.AccessToken)
	assert.NotEmpty(t, resp.Tokens.RefreshToken)
	assert.Equal(t, "Bearer", resp.Tokens.TokenType)

	assert.Equal(t, 1, f.mailer.count())
	assert.Equal(t, 1, f.tokens.liveCount(resp.User.ID, TokenEmailVerification))

	// The refresh token hash is persisted for later invalidation.
	account, err := f.users.GetByID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	require.NotNil(t, account.RefreshTokenHash)
	assert.True(t,
		core.CompareTokenHash(resp.Tokens.RefreshToken, *account.RefreshTokenHash))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "reader@example.com", "correct horse")

	_, err := f.svc.Register(context.Background(), RegisterRequest{
		Name:     "Someone Else",
		Email:    "Reader@Example.com",
		Password: "other password",
	})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestRegisterSurvivesMailOutage(t *testing.T) {
	f := newFixture(t)
	f.mailer.fail = true

	resp, err := f.svc.Register(context.Background(), RegisterRequest{
		Name:     "Test User",
		Email:    "reader@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Tokens.AccessToken)
}

func TestLoginUniformFailures(t *testing.T) {
	f := newFixture(t)
	resp := f.register(t, "reader@example.com", "correct horse")

	// Unknown email.
	_, err := f.svc.Login(context.Background(), LoginRequest{
		Email: "ghost@example.com", Password: "whatever",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Wrong password.
	_, err = f.svc.Login(context.Background(), LoginRequest{
		Email: "reader@example.com", Password: "wrong password",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Deactivated account answers exactly the same.
	f.users.setActive(resp.User.ID, false)
	_, err = f.svc.Login(context.Background(), LoginRequest{
		Email: "reader@example.com", Password: "correct horse",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginSuccessNotifies(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "reader@example.com", "correct horse")

	resp, err := f.svc.Login(context.Background(), LoginRequest{
		Email: "reader@example.com", Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, resp.User.ID)
	assert.True(t, f.notifier.has(reg.User.ID, "auth:login"))
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "reader@example.com", "correct horse")

	resp, err := f.svc.Refresh(context.Background(), reg.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Tokens.RefreshToken)

	// The old token no longer matches the persisted hash.
	_, err = f.svc.Refresh(context.Background(), reg.Tokens.RefreshToken)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)

	// The rotated one works.
	_, err = f.svc.Refresh(context.Background(), resp.Tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshAfterLogoutFails(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "reader@example.com", "correct horse")

	require.NoError(t, f.svc.Logout(context.Background(), reg.User.ID))

	_, err := f.svc.Refresh(context.Background(), reg.Tokens.RefreshToken)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestVerifyEmailConsumesTokenOnce(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "reader@example.com", "correct horse")
	secret := f.mailer.lastSecret(t)

	require.NoError(t, f.svc.VerifyEmail(context.Background(), secret))

	account, err := f.users.GetByID(context.Background(), reg.User.ID)
	require.NoError(t, err)
	assert.True(t, account.IsEmailVerified)
	assert.True(t, f.notifier.has(reg.User.ID, "auth:email_verified"))

	// Second consumption of the same secret fails.
	err = f.svc.VerifyEmail(context.Background(), secret)
	assert.ErrorIs(t, err, ErrOneTimeToken)
}

func TestVerifyEmailGarbageToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "reader@example.com", "correct horse")

	err := f.svc.VerifyEmail(context.Background(), "not-a-real-secret")
	assert.ErrorIs(t, err, ErrOneTimeToken)
}

func TestForgotPasswordAtMostOneLiveToken(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "reader@example.com", "correct horse")

	require.NoError(t,
		f.svc.ForgotPassword(context.Background(), "reader@example.com"))
	require.NoError(t,
		f.svc.ForgotPassword(context.Background(), "reader@example.com"))

	assert.Equal(t, 1, f.tokens.liveCount(reg.User.ID, TokenPasswordReset))
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ForgotPassword(context.Background(), "ghost@example.com")
	assert.NoError(t, err)
	assert.Equal(t, 0, f.mailer.count())
}

func TestForgotPasswordMailFailureCleansUp(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "reader@example.com", "correct horse")
	f.mailer.fail = true

	err := f.svc.ForgotPassword(context.Background(), "reader@example.com")
	assert.Error(t, err)
	assert.Equal(t, 0, f.tokens.liveCount(reg.User.ID, TokenPasswordReset))
}

func TestResetPasswordFlow(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "reader@example.com", "correct horse")

	require.NoError(t,
		f.svc.ForgotPassword(context.Background(), "reader@example.com"))
	secret := f.mailer.lastSecret(t)

	require.NoError(t,
		f.svc.ResetPassword(context.Background(), secret, "new password!"))

	// Old password is dead, the new one works.
	_, err := f.svc.Login(context.Background(), LoginRequest{
		Email: "reader@example.com", Password: "correct horse",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), LoginRequest{
		Email: "reader@example.com", Password: "new password!",
	})
	assert.NoError(t, err)

	// The reset also revoked the persisted refresh token.
	_, err = f.svc.Refresh(context.Background(), reg.Tokens.RefreshToken)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)

	// And the token is single-use.
	err = f.svc.ResetPassword(context.Background(), secret, "another one")
	assert.ErrorIs(t, err, ErrOneTimeToken)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "reader@example.com", "correct horse")

	_, err := f.svc.ChangePassword(
		context.Background(),
		reg.User.ID,
		"wrong current",
		"new password!",
	)
	assert.ErrorIs(t, err, ErrIncorrectPassword)
}

func TestStaleTokenFenceAfterPasswordChange(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "reader@example.com", "correct horse")

	oldAccess := reg.Tokens.AccessToken

	changed, err := f.svc.ChangePassword(
		context.Background(),
		reg.User.ID,
		"correct horse",
		"new password!",
	)
	require.NoError(t, err)

	// The pair minted by the change itself stays usable.
	identity, err := f.svc.Authenticate(
		context.Background(),
		changed.Tokens.AccessToken,
	)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, identity.UserID)

	// iat has second granularity, so push the watermark past the old
	// token's issue second to model a later change deterministically.
	f.users.shiftPasswordChangedAt(reg.User.ID, 2*time.Second)

	// The pre-change access token is dead long before its expiry.
	_, err = f.svc.Authenticate(context.Background(), oldAccess)
	assert.ErrorIs(t, err, core.ErrTokenStale)
}

func TestFreshTokensSurviveWatermarkClockSkew(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "reader@example.com", "correct horse")

	changed, err := f.svc.ChangePassword(
		context.Background(),
		reg.User.ID,
		"correct horse",
		"new password!",
	)
	require.NoError(t, err)

	// Model a store clock running a second ahead of the token clock. The
	// pair minted by the change itself must not be born stale.
	f.users.shiftPasswordChangedAt(reg.User.ID, time.Second)

	identity, err := f.svc.Authenticate(
		context.Background(),
		changed.Tokens.AccessToken,
	)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, identity.UserID)
}

func TestAuthenticateGate(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "reader@example.com", "correct horse")

	identity, err := f.svc.Authenticate(
		context.Background(),
		reg.Tokens.AccessToken,
	)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, identity.UserID)
	assert.Equal(t, "user", identity.Role)

	// Refresh tokens are not accepted at the gate.
	_, err = f.svc.Authenticate(
		context.Background(),
		reg.Tokens.RefreshToken,
	)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)

	// Deactivation closes the gate with a typed 401.
	f.users.setActive(reg.User.ID, false)
	_, err = f.svc.Authenticate(
		context.Background(),
		reg.Tokens.AccessToken,
	)
	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "ACCOUNT_DEACTIVATED", appErr.Code)
	assert.ErrorIs(t, err, ErrAccountDeactivated)
}
