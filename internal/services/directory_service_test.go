package services_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"userdir/internal/models"
	"userdir/internal/services"
	"userdir/pkg/apperrors"
)

// MockDirectoryResolver is a mock implementation of services.DirectoryResolver
type MockDirectoryResolver struct {
	mock.Mock
}

func (m *MockDirectoryResolver) List(ctx context.Context, role string) ([]models.User, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockDirectoryResolver) ListApprovers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockDirectoryResolver) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockDirectoryResolver) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockDirectoryResolver) Update(ctx context.Context, username string, changes models.UserChanges) (*models.User, error) {
	args := m.Called(ctx, username, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockDirectoryResolver) Delete(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of services.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(routingKey string, body []byte) error {
	args := m.Called(routingKey, body)
	return args.Error(0)
}

func TestUserDirectoryService_ListUsers(t *testing.T) {
	mockResolver := new(MockDirectoryResolver)
	service := services.NewUserDirectoryService(mockResolver, nil)

	expected := []models.User{
		{UserID: 1, Username: "alice", Role: models.RoleApprover},
		{UserID: 2, Username: "bob", Role: models.RoleUser},
	}

	mockResolver.On("List", mock.Anything, "").Return(expected, nil).Once()
	users, err := service.ListUsers(context.Background(), "")
	assert.NoError(t, err)
	assert.Equal(t, expected, users)
	mockResolver.AssertExpectations(t)

	// Role filter is passed straight through
	mockResolver.On("List", mock.Anything, models.RoleApprover).Return(expected[:1], nil).Once()
	approverOnly, err := service.ListUsers(context.Background(), models.RoleApprover)
	assert.NoError(t, err)
	assert.Len(t, approverOnly, 1)
	mockResolver.AssertExpectations(t)
}

func TestUserDirectoryService_ListUsersInvalidRole(t *testing.T) {
	mockResolver := new(MockDirectoryResolver)
	service := services.NewUserDirectoryService(mockResolver, nil)

	_, err := service.ListUsers(context.Background(), "superadmin")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	// The store is never consulted for an invalid filter.
	mockResolver.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestUserDirectoryService_ListUsersEmptyResult(t *testing.T) {
	mockResolver := new(MockDirectoryResolver)
	service := services.NewUserDirectoryService(mockResolver, nil)

	mockResolver.On("List", mock.Anything, "").Return([]models.User(nil), nil).Once()
	users, err := service.ListUsers(context.Background(), "")
	assert.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestUserDirectoryService_ListApproversNormalizesOrdering(t *testing.T) {
	mockResolver := new(MockDirectoryResolver)
	service := services.NewUserDirectoryService(mockResolver, nil)

	// Store-defined order; the service must normalize to full_name then
	// username regardless of which strategy produced the rows.
	unordered := []models.User{
		{UserID: 3, Username: "zara", FullName: "Cara Dunn", Role: models.RoleAdmin},
		{UserID: 1, Username: "noah", FullName: "Anna Prime", Role: models.RoleApprover},
		{UserID: 2, Username: "mike", FullName: "Anna Prime", Role: models.RoleApprover},
	}
	mockResolver.On("ListApprovers", mock.Anything).Return(unordered, nil).Once()

	approvers, err := service.ListApprovers(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"mike", "noah", "zara"}, []string{approvers[0].Username, approvers[1].Username, approvers[2].Username})
	mockResolver.AssertExpectations(t)
}

func TestUserDirectoryService_CreateUser(t *testing.T) {
	mockResolver := new(MockDirectoryResolver)
	mockMQ := new(MockEventPublisher)
	service := services.NewUserDirectoryService(mockResolver, mockMQ)

	user := &models.User{Username: "alice", Email: "a@x.com", Role: models.RoleApprover}

	mockResolver.On("GetByUsername", mock.Anything, "alice").Return(nil, nil).Once()
	mockResolver.On("Create", mock.Anything, user).Return(nil).Once()
	mockMQ.On("Publish", "user.created", mock.Anything).Return(nil).Once()

	created, err := service.CreateUser(context.Background(), user)
	assert.NoError(t, err)
	assert.Equal(t, models.RoleApprover, created.Role)
	mockResolver.AssertExpectations(t)
	mockMQ.AssertExpectations(t)
}

func TestUserDirectoryService_CreateUserDefaultsRole(t *testing.T) {
	mockResolver := new(MockDirectoryResolver)
	service := services.NewUserDirectoryService(mockResolver, nil)

	user := &models.User{Username: "bob", Email: "b@x.com"}
	mockResolver.On("GetByUsername", mock.Anything, "bob").Return(nil, nil).Once()
	mockResolver.On("Create", mock.Anything, user).Return(nil).Once()

	created, err := service.CreateUser(context.Background(), user)
	assert.NoError(t, err)
	assert.Equal(t, models.RoleUser, created.Role)
	mockResolver.AssertExpectations(t)
}

func TestUserDirectoryService_CreateUserConflict(t *testing.T) {
	mockResolver := new(MockDirectoryResolver)
	service := services.NewUserDirectoryService(mockResolver, nil)

	existing := &models.User{UserID: 7, Username: "alice", Role: models.RoleUser}
	mockResolver.On("GetByUsername", mock.Anything, "alice").Return(existing, nil).Once()

	_, err := service.CreateUser(context.Background(), &models.User{Username: "alice", Email: "a@x.com"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	// No mutation is attempted on conflict.
	mockResolver.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUserDirectoryService_CreateUserUnsupported(t *testing.T) {
	mockResolver := new(MockDirectoryResolver)
	service := services.NewUserDirectoryService(mockResolver, nil)

	mockResolver.On("GetByUsername", mock.Anything, "alice").Return(nil, nil).Once()
	mockResolver.On("Create", mock.Anything, mock.Anything).Return(fmt.Errorf("create user: %w", apperrors.ErrUnsupported)).Once()

	_, err := service.CreateUser(context.Background(), &models.User{Username: "alice", Email: "a@x.com"})
	assert.ErrorIs(t, err, apperrors.ErrUnsupported)
}

func TestUserDirectoryService_UpdateUser(t *testing.T) {
	mockResolver := new(MockDirectoryResolver)
	mockMQ := new(MockEventPublisher)
	service := services.NewUserDirectoryService(mockResolver, mockMQ)

	newRole := models.RoleAdmin
	changes := models.UserChanges{Role: &newRole}
	merged := &models.User{UserID: 1, Username: "alice", Email: "a@x.com", Role: models.RoleAdmin}

	mockResolver.On("Update", mock.Anything, "alice", changes).Return(merged, nil).Once()
	mockMQ.On("Publish", "user.updated", mock.Anything).Return(nil).Once()

	updated, err := service.UpdateUser(context.Background(), "alice", changes)
	assert.NoError(t, err)
	assert.Equal(t, merged, updated)
	mockResolver.AssertExpectations(t)
	mockMQ.AssertExpectations(t)
}

func TestUserDirectoryService_UpdateUserNotFound(t *testing.T) {
	mockResolver := new(MockDirectoryResolver)
	service := services.NewUserDirectoryService(mockResolver, nil)

	email := "ghost@x.com"
	changes := models.UserChanges{Email: &email}
	mockResolver.On("Update", mock.Anything, "ghost", changes).
		Return(nil, fmt.Errorf("user %q: %w", "ghost", apperrors.ErrNotFound)).Once()

	_, err := service.UpdateUser(context.Background(), "ghost", changes)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserDirectoryService_DeleteUser(t *testing.T) {
	mockResolver := new(MockDirectoryResolver)
	mockMQ := new(MockEventPublisher)
	service := services.NewUserDirectoryService(mockResolver, mockMQ)

	mockResolver.On("Delete", mock.Anything, "alice").Return(nil).Once()
	mockMQ.On("Publish", "user.deleted", mock.Anything).Return(nil).Once()

	err := service.DeleteUser(context.Background(), "alice")
	assert.NoError(t, err)
	mockResolver.AssertExpectations(t)
	mockMQ.AssertExpectations(t)
}

func TestUserDirectoryService_DeleteUserNotFound(t *testing.T) {
	mockResolver := new(MockDirectoryResolver)
	mockMQ := new(MockEventPublisher)
	service := services.NewUserDirectoryService(mockResolver, mockMQ)

	mockResolver.On("Delete", mock.Anything, "ghost").
		Return(fmt.Errorf("user %q: %w", "ghost", apperrors.ErrNotFound)).Once()

	err := service.DeleteUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	// No event is published for a failed mutation.
	mockMQ.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestUserDirectoryService_PublishFailureDoesNotFailOperation(t *testing.T) {
	mockResolver := new(MockDirectoryResolver)
	mockMQ := new(MockEventPublisher)
	service := services.NewUserDirectoryService(mockResolver, mockMQ)

	mockResolver.On("Delete", mock.Anything, "alice").Return(nil).Once()
	mockMQ.On("Publish", "user.deleted", mock.Anything).Return(fmt.Errorf("broker down")).Once()

	err := service.DeleteUser(context.Background(), "alice")
	assert.NoError(t, err)
	mockMQ.AssertExpectations(t)
}
