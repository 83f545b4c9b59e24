package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/trip-control-api/internal/models"
	appErrors "github.com/noah-isme/trip-control-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	findByEmailErr   error
	created          []*models.User
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "user-new"
	m.created = append(m.created, user)
	return nil
}

func newAuthFixture(t *testing.T, active bool) (*AuthService, *mockAuthRepo) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockAuthRepo{userByEmail: &models.User{
		ID:           "user-1",
		Email:        "ops@example.com",
		PasswordHash: string(hash),
		FullName:     "Operadora Um",
		Role:         models.RoleOperator,
		Active:       active,
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "trip-control-api"})
	return svc, repo
}

func TestLoginSuccessCarriesEditorIdentity(t *testing.T) {
	svc, repo := newAuthFixture(t, true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ops@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.True(t, repo.lastLoginUpdated)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.Editor{Name: "Operadora Um", Email: "ops@example.com"}, claims.Editor())
	assert.Equal(t, models.RoleOperator, claims.Role)
}

func TestLoginInvalidPassword(t *testing.T) {
	svc, _ := newAuthFixture(t, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ops@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, _ := newAuthFixture(t, false)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ops@example.com", Password: "password123"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInactiveAccount))
}

func TestLoginUnknownUser(t *testing.T) {
	svc, repo := newAuthFixture(t, true)
	repo.userByEmail = nil

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password123"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	svc, _ := newAuthFixture(t, true)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ops@example.com", Password: "password123"})
	require.NoError(t, err)

	other := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "other", AccessTokenExpiry: time.Hour, Issuer: "trip-control-api"})
	_, err = other.ValidateToken(resp.AccessToken)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestCreateUserHashesPassword(t *testing.T) {
	svc, repo := newAuthFixture(t, true)
	repo.userByEmail = nil

	user, err := svc.CreateUser(context.Background(), models.CreateUserRequest{
		Email:    " Analyst@Example.com ",
		Password: "longenough",
		FullName: "Analista",
		Role:     models.RoleAnalyst,
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "analyst@example.com", user.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("longenough")))
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc, _ := newAuthFixture(t, true)

	_, err := svc.CreateUser(context.Background(), models.CreateUserRequest{
		Email:    "ops@example.com",
		Password: "longenough",
		FullName: "Dup",
		Role:     models.RoleViewer,
	})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc, _ := newAuthFixture(t, true)

	_, err := svc.CreateUser(context.Background(), models.CreateUserRequest{
		Email:    "x@example.com",
		Password: "longenough",
		FullName: "X",
		Role:     models.UserRole("ROOT"),
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
