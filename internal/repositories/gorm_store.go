package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"userdir/internal/models"
	"userdir/pkg/apperrors"
)

// GORMUserStore is a GORM implementation of the persistence adapter. It
// implements all three capability groups: NativeStore through GORM,
// ListingStore trivially, and RawStore via the underlying *sql.DB.
type GORMUserStore struct {
	db *gorm.DB
}

// NewGORMUserStore creates a new instance of GORMUserStore. Open the
// gorm.DB with TranslateError enabled so unique-index violations surface
// as gorm.ErrDuplicatedKey.
func NewGORMUserStore(db *gorm.DB) *GORMUserStore {
	return &GORMUserStore{
		db: db,
	}
}

// ListUsers returns all users, filtered by role when role is non-empty.
func (s *GORMUserStore) ListUsers(ctx context.Context, role string) ([]models.User, error) {
	query := s.db.WithContext(ctx)
	if role != "" {
		query = query.Where("role = ?", role)
	}
	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ListApprovers returns all users whose role is approver or admin,
// ordered by full name then username.
func (s *GORMUserStore) ListApprovers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("role IN ?", []string{models.RoleApprover, models.RoleAdmin}).
		Order("full_name, username").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list approvers: %w", err)
	}
	return users, nil
}

// GetUserByUsername retrieves a user by username, or (nil, nil) when no
// record exists.
func (s *GORMUserStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by username %s: %w", username, err)
	}
	return &user, nil
}

// CreateUser persists user and assigns user.UserID. A duplicate username
// is reported as a conflict.
func (s *GORMUserStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("user %q already exists: %w", user.Username, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateUser applies the supplied fields to the record matching username
// and returns the merged record. Unsupplied fields are not touched.
func (s *GORMUserStore) UpdateUser(ctx context.Context, username string, changes models.UserChanges) (*models.User, error) {
	fields := map[string]any{}
	if changes.Email != nil {
		fields["email"] = *changes.Email
	}
	if changes.FullName != nil {
		fields["full_name"] = *changes.FullName
	}
	if changes.Role != nil {
		fields["role"] = *changes.Role
	}

	if len(fields) > 0 {
		result := s.db.WithContext(ctx).
			Model(&models.User{}).
			Where("username = ?", username).
			Updates(fields)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to update user %s: %w", username, result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, fmt.Errorf("user %q: %w", username, apperrors.ErrNotFound)
		}
	}

	updated, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("user %q: %w", username, apperrors.ErrNotFound)
	}
	return updated, nil
}

// DeleteUser removes the record matching username. Deleting an absent
// record is reported as not found, not silent success.
func (s *GORMUserStore) DeleteUser(ctx context.Context, username string) error {
	result := s.db.WithContext(ctx).Where("username = ?", username).Delete(&models.User{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete user %s: %w", username, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user %q: %w", username, apperrors.ErrNotFound)
	}
	return nil
}

// ListAllUsers returns every record in the directory.
func (s *GORMUserStore) ListAllUsers(ctx context.Context) ([]models.User, error) {
	return s.ListUsers(ctx, "")
}

// RawQuerier exposes the underlying database handle for raw parameterized
// queries against the users relation.
func (s *GORMUserStore) RawQuerier(ctx context.Context) (Querier, error) {
	sqlDB, err := s.db.WithContext(ctx).DB()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain raw database handle: %w", err)
	}
	return sqlDB, nil
}
