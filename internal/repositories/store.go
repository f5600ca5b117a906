package repositories

import (
	"context"
	"database/sql"

	"userdir/internal/models"
)

// The persistence adapter for the directory is a plain value implementing
// zero or more of the capability groups below. The resolver type-asserts
// the groups once at construction; a store declares support for a group by
// implementing the whole group.

// NativeStore is the rich capability group: the store provides a dedicated
// operation for every directory operation.
type NativeStore interface {
	// ListUsers returns all users, filtered by role when role is non-empty.
	ListUsers(ctx context.Context, role string) ([]models.User, error)
	// ListApprovers returns all users whose role is approver or admin.
	ListApprovers(ctx context.Context) ([]models.User, error)
	// GetUserByUsername returns the matching user, or (nil, nil) when no
	// record exists.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// CreateUser persists user and assigns user.UserID.
	CreateUser(ctx context.Context, user *models.User) error
	// UpdateUser applies the supplied fields to the record matching
	// username and returns the merged record.
	UpdateUser(ctx context.Context, username string, changes models.UserChanges) (*models.User, error)
	// DeleteUser removes the record matching username.
	DeleteUser(ctx context.Context, username string) error
}

// ListingStore is the generic capability group: the store can enumerate
// every record, leaving filtering and selection to the caller.
type ListingStore interface {
	ListAllUsers(ctx context.Context) ([]models.User, error)
}

// Querier is the subset of *sql.DB the raw fallback strategy needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RawStore is the low-level capability group: the store hands out a
// connection able to run parameterized statements against the users
// relation directly.
type RawStore interface {
	RawQuerier(ctx context.Context) (Querier, error)
}
