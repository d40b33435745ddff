package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gandhamprakashtech/stumart-api/internal/models"
	appErrors "github.com/gandhamprakashtech/stumart-api/pkg/errors"
)

type mockAuthRepo struct {
	usersByEmail map[string]*models.User
	usersByID    map[string]*models.User
	tokens       map[string]*models.RefreshToken
	created      []*models.RefreshToken
	revoked      []string
	revokedAll   []string
	passwords    map[string]string
	audits       []*models.AuditLog
	lastLogin    map[string]time.Time
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[string]*models.User),
		tokens:       make(map[string]*models.RefreshToken),
		passwords:    make(map[string]string),
		lastLogin:    make(map[string]time.Time),
	}
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.usersByID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLogin[id] = ts
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwords[id] = passwordHash
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = append(m.revokedAll, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.tokens[token.Token] = token
	m.created = append(m.created, token)
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revoked = append(m.revoked, id)
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, log)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "stumart",
		Audience:           []string{"stumart-api"},
	}
}

func seedUser(repo *mockAuthRepo, password string) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &models.User{
		ID:           "user-1",
		Email:        "admin@stumart.edu",
		PasswordHash: string(hash),
		FullName:     "Admin",
		Role:         models.RoleAdmin,
		Active:       true,
	}
	repo.usersByEmail[user.Email] = user
	repo.usersByID[user.ID] = user
	return user
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, "secret1")
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret1", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.Equal(t, int64(900), resp.ExpiresIn)

	require.Len(t, repo.created, 1)
	assert.Equal(t, "10.0.0.1", repo.created[0].IPAddress)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditActionLogin, repo.audits[0].Action)

	// the issued access token round-trips through validation
	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, "secret1")
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, "secret1")
	user.Active = false
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginSingleSessionRevokesPrevious(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, "secret1")
	cfg := testAuthConfig()
	cfg.SingleSession = true
	svc := NewAuthService(repo, nil, nil, cfg)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, []string{user.ID}, repo.revokedAll)
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, "secret1")
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret1"})
	require.NoError(t, err)

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, resp.RefreshToken)
	// the presented token was revoked during rotation
	require.Len(t, repo.revoked, 1)
	assert.Equal(t, repo.tokens[login.RefreshToken].ID, repo.revoked[0])
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "secret1")
	repo.tokens["stale"] = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "user-1",
		Token:     "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutRejectsForeignToken(t *testing.T) {
	repo := newMockAuthRepo()
	repo.tokens["tok"] = &models.RefreshToken{ID: "rt-1", UserID: "user-1", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	err := svc.Logout(context.Background(), "tok", "someone-else", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Logout(context.Background(), "tok", "user-1", models.LoginRequest{}))
	assert.Equal(t, []string{"rt-1"}, repo.revoked)
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, "secret1")
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	err := svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newsecret"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{OldPassword: "secret1", NewPassword: "newsecret"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.passwords[user.ID]), []byte("newsecret")))
	// every session dies with the old password
	assert.Equal(t, []string{user.ID}, repo.revokedAll)
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, "secret1")
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret1"})
	require.NoError(t, err)

	other := testAuthConfig()
	other.AccessTokenSecret = "different"
	otherSvc := NewAuthService(repo, nil, nil, other)
	_, err = otherSvc.ValidateToken(login.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
