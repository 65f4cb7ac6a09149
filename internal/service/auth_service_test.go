package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/paud-api/internal/models"
	appErrors "github.com/noah-isme/paud-api/pkg/errors"
)

type mockAuthRepo struct {
	users             []*models.User
	findErr           error
	updatePasswordErr error
	auditLogs         []*models.AuditLog
	lastLoginUpdated  bool
	phoneLookups      []string
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.users {
		if u.Email != nil && *u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByPhone(ctx context.Context, exec sqlx.ExtContext, phone string) (*models.User, error) {
	m.phoneLookups = append(m.phoneLookups, phone)
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.users {
		if u.PhoneNumber == phone {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	for _, u := range m.users {
		if u.ID == id {
			u.PasswordHash = passwordHash
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func hashed(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthFixture(t *testing.T) (*AuthService, *mockAuthRepo) {
	t.Helper()
	email := "admin@paud.sch.id"
	repo := &mockAuthRepo{users: []*models.User{
		{ID: "admin-1", FullName: "Admin", Email: &email, PhoneNumber: "081100000001", PasswordHash: hashed(t, "rahasia"), Role: models.RoleAdmin, Active: true},
		{ID: "parent-1", FullName: "Siti Aminah", PhoneNumber: "081234567890", PasswordHash: hashed(t, "05032019"), Role: models.RoleParent, Active: true},
		{ID: "parent-2", FullName: "Nonaktif", PhoneNumber: "081200000000", PasswordHash: hashed(t, "secret"), Role: models.RoleParent, Active: false},
	}}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "paud-api",
	})
	return svc, repo
}

func TestAuthServiceLoginWithEmail(t *testing.T) {
	svc, repo := newAuthFixture(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "admin@paud.sch.id", Password: "rahasia"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
}

func TestAuthServiceLoginWithFormattedPhone(t *testing.T) {
	svc, repo := newAuthFixture(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Identifier: " 0812-3456-7890 ", Password: "05032019"})
	require.NoError(t, err)
	assert.Equal(t, "parent-1", res.User.ID)
	assert.Equal(t, []string{"081234567890"}, repo.phoneLookups)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "parent-1", claims.UserID)
	assert.Equal(t, models.RoleParent, claims.Role)
	assert.Equal(t, "Siti Aminah", claims.FullName)
}

func TestAuthServiceLoginInvalidPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "081234567890", Password: "salah"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceLoginUnknownIdentifier(t *testing.T) {
	svc, repo := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "bukan-nomor", Password: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
	assert.Empty(t, repo.phoneLookups)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "081200000000", Password: "secret"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInactiveAccount))
}

func TestAuthServiceLoginRepositoryFailure(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.findErr = errors.New("connection refused")

	_, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "081234567890", Password: "05032019"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestAuthServiceChangePassword(t *testing.T) {
	svc, repo := newAuthFixture(t)

	err := svc.ChangePassword(context.Background(), "parent-1", models.ChangePasswordRequest{OldPassword: "05032019", NewPassword: "barubaru"})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{Identifier: "081234567890", Password: "barubaru"})
	require.NoError(t, err)
	assert.Equal(t, models.AuditActionPasswordChange, repo.auditLogs[0].Action)
}

func TestAuthServiceChangePasswordWrongOld(t *testing.T) {
	svc, _ := newAuthFixture(t)

	err := svc.ChangePassword(context.Background(), "parent-1", models.ChangePasswordRequest{OldPassword: "nope", NewPassword: "barubaru"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestAuthServiceMe(t *testing.T) {
	svc, _ := newAuthFixture(t)

	info, err := svc.Me(context.Background(), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "Admin", info.FullName)

	_, err = svc.Me(context.Background(), "ghost")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestAuthServiceValidateTokenRejectsForeignSecret(t *testing.T) {
	svc, _ := newAuthFixture(t)
	other := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "other", AccessTokenExpiry: time.Hour})
	token, err := other.generateAccessToken(&models.User{ID: "x", Role: models.RoleAdmin}, time.Now())
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
