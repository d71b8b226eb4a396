package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/harmonics-id/music-school-api/internal/models"
	appErrors "github.com/harmonics-id/music-school-api/pkg/errors"
)

type mockAuthUserRepo struct {
	users     map[string]*models.User
	lastLogin map[string]time.Time
	audits    []models.AuditLog
}

func (m *mockAuthUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if m.lastLogin == nil {
		m.lastLogin = make(map[string]time.Time)
	}
	m.lastLogin[id] = ts
	return nil
}

func (m *mockAuthUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, *log)
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *mockAuthUserRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &mockAuthUserRepo{users: map[string]*models.User{
		"u1": {
			ID:           "u1",
			Email:        "admin@school.test",
			FullName:     "Admin",
			Role:         models.RoleAdmin,
			PasswordHash: string(hash),
			Active:       true,
		},
	}}
	svc := NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		Secret:             "test-secret",
		AccessTokenExpiry:  time.Minute,
		RefreshTokenExpiry: time.Hour,
		Issuer:             "test",
	})
	return svc, repo
}

func TestAuthLogin(t *testing.T) {
	svc, repo := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "u1", resp.User.ID)
	assert.NotEmpty(t, repo.audits)
	assert.Contains(t, repo.lastLogin, "u1")

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "nope1234"})
	assertErrCode(t, err, appErrors.ErrUnauthorized.Code)
}

func TestAuthLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@school.test", Password: "secret123"})
	assertErrCode(t, err, appErrors.ErrUnauthorized.Code)
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.users["u1"].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "secret123"})
	assertErrCode(t, err, appErrors.ErrForbidden.Code)
}

func TestAuthRefreshTokenRoundtrip(t *testing.T) {
	svc, _ := newAuthFixture(t)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = svc.ValidateToken(refreshed.AccessToken)
	require.NoError(t, err)
}

func TestAuthRefreshRejectsAccessToken(t *testing.T) {
	svc, _ := newAuthFixture(t)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.AccessToken})
	assertErrCode(t, err, appErrors.ErrUnauthorized.Code)
}

func TestAuthValidateRejectsRefreshToken(t *testing.T) {
	svc, _ := newAuthFixture(t)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(login.RefreshToken)
	assertErrCode(t, err, appErrors.ErrUnauthorized.Code)
}

func TestAuthValidateRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	assertErrCode(t, err, appErrors.ErrUnauthorized.Code)
}
