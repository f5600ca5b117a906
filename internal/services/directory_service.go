package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"userdir/internal/models"
	"userdir/pkg/apperrors"
)

// DirectoryResolver dispatches directory operations against the backing
// store, whatever capability level it supports.
type DirectoryResolver interface {
	List(ctx context.Context, role string) ([]models.User, error)
	ListApprovers(ctx context.Context) ([]models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, username string, changes models.UserChanges) (*models.User, error)
	Delete(ctx context.Context, username string) error
}

// EventPublisher publishes directory change events.
type EventPublisher interface {
	Publish(routingKey string, body []byte) error
}

// UserDirectoryService handles business logic for the user directory:
// role filtering, approver selection, uniqueness checking, and response
// shaping. Store-capability dispatch is delegated to the resolver.
type UserDirectoryService struct {
	resolver DirectoryResolver
	mqClient EventPublisher
}

// NewUserDirectoryService creates a new UserDirectoryService. mqClient
// may be nil; change events are then skipped.
func NewUserDirectoryService(resolver DirectoryResolver, mqClient EventPublisher) *UserDirectoryService {
	return &UserDirectoryService{
		resolver: resolver,
		mqClient: mqClient,
	}
}

// ListUsers retrieves all users, filtered by role when role is non-empty.
func (s *UserDirectoryService) ListUsers(ctx context.Context, role string) ([]models.User, error) {
	if role != "" && !models.ValidRole(role) {
		return nil, fmt.Errorf("unknown role %q: %w", role, apperrors.ErrValidation)
	}
	users, err := s.resolver.List(ctx, role)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// ListApprovers retrieves all users eligible to approve workflow actions.
// Results are sorted by full name then username whichever strategy served
// the request, so callers cannot tell the strategies apart.
func (s *UserDirectoryService) ListApprovers(ctx context.Context) ([]models.User, error) {
	approvers, err := s.resolver.ListApprovers(ctx)
	if err != nil {
		return nil, err
	}
	if approvers == nil {
		approvers = []models.User{}
	}
	sort.Slice(approvers, func(i, j int) bool {
		if approvers[i].FullName != approvers[j].FullName {
			return approvers[i].FullName < approvers[j].FullName
		}
		return approvers[i].Username < approvers[j].Username
	})
	return approvers, nil
}

// CreateUser creates a new directory user. The role defaults to "user"
// when unspecified; a username already present is a conflict.
func (s *UserDirectoryService) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if !models.ValidRole(user.Role) {
		return nil, fmt.Errorf("unknown role %q: %w", user.Role, apperrors.ErrValidation)
	}

	existing, err := s.resolver.GetByUsername(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("user %q already exists: %w", user.Username, apperrors.ErrConflict)
	}

	if err := s.resolver.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Printf("User created: %s with role %s", user.Username, user.Role)
	s.publishEvent("user.created", user.Username, user.Role)
	return user, nil
}

// UpdateUser applies a partial update to the user matching username and
// returns the merged record. Unsupplied fields are left unchanged.
func (s *UserDirectoryService) UpdateUser(ctx context.Context, username string, changes models.UserChanges) (*models.User, error) {
	if changes.Role != nil && !models.ValidRole(*changes.Role) {
		return nil, fmt.Errorf("unknown role %q: %w", *changes.Role, apperrors.ErrValidation)
	}

	updated, err := s.resolver.Update(ctx, username, changes)
	if err != nil {
		return nil, err
	}

	log.Printf("User updated: %s", username)
	s.publishEvent("user.updated", updated.Username, updated.Role)
	return updated, nil
}

// DeleteUser removes the user matching username. Deleting an absent user
// reports not found, so a repeated delete is not silently successful.
func (s *UserDirectoryService) DeleteUser(ctx context.Context, username string) error {
	if err := s.resolver.Delete(ctx, username); err != nil {
		return err
	}

	log.Printf("User deleted: %s", username)
	s.publishEvent("user.deleted", username, "")
	return nil
}

// publishEvent publishes a directory change event. Publishing is
// best-effort: failures are logged and never fail the operation.
func (s *UserDirectoryService) publishEvent(action, username, role string) {
	if s.mqClient == nil {
		return
	}

	event := map[string]interface{}{
		"event_id":  uuid.New().String(),
		"action":    action,
		"username":  username,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if role != "" {
		event["role"] = role
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal directory event: %v", err)
		return
	}
	if err := s.mqClient.Publish(action, body); err != nil {
		log.Printf("Warning: Failed to publish %s event for user %s: %v", action, username, err)
	}
}
