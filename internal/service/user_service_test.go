package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/trip-control-api/internal/models"
	appErrors "github.com/noah-isme/trip-control-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]*models.User
	listErr   error
	setCalls  int
	setErr    error
	lastQuery models.UserFilter
}

func (m *mockUserRepo) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastQuery = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) SetActive(_ context.Context, id string, active bool) error {
	m.setCalls++
	if m.setErr != nil {
		return m.setErr
	}
	for _, u := range m.users {
		if u.ID == id {
			u.Active = active
			return nil
		}
	}
	return sql.ErrNoRows
}

func newUserFixture() *mockUserRepo {
	return &mockUserRepo{users: map[string]*models.User{
		"1": {ID: "1", Email: "ops@example.com", FullName: "Ops", Role: models.RoleOperator, Active: true},
		"2": {ID: "2", Email: "viewer@example.com", FullName: "Viewer", Role: models.RoleViewer, Active: false},
	}}
}

func TestUserServiceListDefaultsPagination(t *testing.T) {
	repo := newUserFixture()
	svc := NewUserService(repo, zap.NewNop())

	users, pagination, err := svc.List(context.Background(), models.UserFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 2, pagination.TotalCount)
}

func TestUserServiceListRejectsUnknownRole(t *testing.T) {
	svc := NewUserService(newUserFixture(), nil)
	role := models.UserRole("DRIVER")
	_, _, err := svc.List(context.Background(), models.UserFilter{Role: &role})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUserServiceListWrapsRepositoryError(t *testing.T) {
	repo := newUserFixture()
	repo.listErr = errors.New("db down")
	_, _, err := NewUserService(repo, nil).List(context.Background(), models.UserFilter{})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestUserServiceSetActive(t *testing.T) {
	repo := newUserFixture()
	svc := NewUserService(repo, nil)

	user, err := svc.SetActive(context.Background(), "OPS@example.com", false)
	require.NoError(t, err)
	assert.False(t, user.Active)
	assert.False(t, repo.users["1"].Active)
	assert.Equal(t, 1, repo.setCalls)

	_, err = svc.SetActive(context.Background(), "viewer@example.com", false)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.setCalls, "no write when the state already matches")

	_, err = svc.SetActive(context.Background(), "ghost@example.com", true)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
