package repositories

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"userdir/internal/models"
	"userdir/pkg/apperrors"
)

// Operation identifies a directory operation the resolver can dispatch.
type Operation string

const (
	OpList          Operation = "list"
	OpListApprovers Operation = "list-approvers"
	OpGetByUsername Operation = "get-by-username"
	OpCreate        Operation = "create"
	OpUpdate        Operation = "update"
	OpDelete        Operation = "delete"
)

// Strategy identifies which capability group serves an operation.
type Strategy string

const (
	StrategyNative  Strategy = "native"
	StrategyListing Strategy = "listing"
	StrategyRaw     Strategy = "raw"
	StrategyNone    Strategy = "none"
)

// userColumns is the projection every raw query uses, in scan order.
var userColumns = []string{"user_id", "username", "email", "full_name", "role"}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithPlaceholderFormat sets the placeholder style for raw statements.
// The default is '?' (SQLite, MySQL); pass squirrel.Dollar for PostgreSQL.
func WithPlaceholderFormat(format sq.PlaceholderFormat) ResolverOption {
	return func(r *Resolver) {
		r.stmt = sq.StatementBuilder.PlaceholderFormat(format)
	}
}

// Resolver dispatches directory operations to the best capability group
// the store supports, in fixed priority order: a dedicated store operation,
// then list-all-and-filter in memory, then a raw parameterized query
// against the users relation. The capability probe happens exactly once,
// here at construction; per-call dispatch is a table lookup.
//
// Reads degrade gracefully when no group is available (empty results);
// mutations do not (ErrUnsupported).
type Resolver struct {
	native NativeStore
	lister ListingStore
	raw    RawStore

	stmt       sq.StatementBuilderType
	strategies map[Operation]Strategy
}

// NewResolver probes store for the three capability groups and caches the
// chosen strategy for each operation.
func NewResolver(store any, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		stmt: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
	r.native, _ = store.(NativeStore)
	r.lister, _ = store.(ListingStore)
	r.raw, _ = store.(RawStore)

	for _, opt := range opts {
		opt(r)
	}

	readStrategy := StrategyNone
	switch {
	case r.native != nil:
		readStrategy = StrategyNative
	case r.lister != nil:
		readStrategy = StrategyListing
	case r.raw != nil:
		readStrategy = StrategyRaw
	}

	writeStrategy := StrategyNone
	switch {
	case r.native != nil:
		writeStrategy = StrategyNative
	case r.raw != nil:
		writeStrategy = StrategyRaw
	}

	// The listing group can only serve reads; mutations skip straight
	// from native to raw.
	r.strategies = map[Operation]Strategy{
		OpList:          readStrategy,
		OpListApprovers: readStrategy,
		OpGetByUsername: readStrategy,
		OpCreate:        writeStrategy,
		OpUpdate:        writeStrategy,
		OpDelete:        writeStrategy,
	}
	return r
}

// StrategyFor returns the strategy cached for op.
func (r *Resolver) StrategyFor(op Operation) Strategy {
	return r.strategies[op]
}

// Strategies returns a copy of the full operation-to-strategy table.
func (r *Resolver) Strategies() map[Operation]Strategy {
	out := make(map[Operation]Strategy, len(r.strategies))
	for op, s := range r.strategies {
		out[op] = s
	}
	return out
}

// List returns all users, filtered by role when role is non-empty. With no
// read capability available it returns an empty result set.
func (r *Resolver) List(ctx context.Context, role string) ([]models.User, error) {
	switch r.strategies[OpList] {
	case StrategyNative:
		return r.native.ListUsers(ctx, role)
	case StrategyListing:
		all, err := r.lister.ListAllUsers(ctx)
		if err != nil {
			return nil, err
		}
		if role == "" {
			return all, nil
		}
		filtered := make([]models.User, 0, len(all))
		for _, u := range all {
			if u.Role == role {
				filtered = append(filtered, u)
			}
		}
		return filtered, nil
	case StrategyRaw:
		builder := r.stmt.Select(userColumns...).From("users")
		if role != "" {
			builder = builder.Where(sq.Eq{"role": role})
		}
		return r.rawSelect(ctx, builder)
	}
	return []models.User{}, nil
}

// ListApprovers returns all users whose role is approver or admin. The raw
// path orders by full_name then username; the other paths leave ordering
// to the store.
func (r *Resolver) ListApprovers(ctx context.Context) ([]models.User, error) {
	switch r.strategies[OpListApprovers] {
	case StrategyNative:
		return r.native.ListApprovers(ctx)
	case StrategyListing:
		all, err := r.lister.ListAllUsers(ctx)
		if err != nil {
			return nil, err
		}
		approvers := make([]models.User, 0, len(all))
		for _, u := range all {
			if u.CanApprove() {
				approvers = append(approvers, u)
			}
		}
		return approvers, nil
	case StrategyRaw:
		builder := r.stmt.Select(userColumns...).From("users").
			Where(sq.Eq{"role": []string{models.RoleApprover, models.RoleAdmin}}).
			OrderBy("full_name", "username")
		return r.rawSelect(ctx, builder)
	}
	return []models.User{}, nil
}

// GetByUsername returns the matching user, or (nil, nil) when no record
// exists or no read capability is available.
func (r *Resolver) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	switch r.strategies[OpGetByUsername] {
	case StrategyNative:
		return r.native.GetUserByUsername(ctx, username)
	case StrategyListing:
		all, err := r.lister.ListAllUsers(ctx)
		if err != nil {
			return nil, err
		}
		for _, u := range all {
			if u.Username == username {
				return &u, nil
			}
		}
		return nil, nil
	case StrategyRaw:
		return r.rawGet(ctx, username)
	}
	return nil, nil
}

// Create persists user and assigns user.UserID.
func (r *Resolver) Create(ctx context.Context, user *models.User) error {
	switch r.strategies[OpCreate] {
	case StrategyNative:
		return r.native.CreateUser(ctx, user)
	case StrategyRaw:
		return r.rawCreate(ctx, user)
	}
	return fmt.Errorf("create user: %w", apperrors.ErrUnsupported)
}

// Update applies the supplied fields to the record matching username and
// returns the merged record.
func (r *Resolver) Update(ctx context.Context, username string, changes models.UserChanges) (*models.User, error) {
	switch r.strategies[OpUpdate] {
	case StrategyNative:
		return r.native.UpdateUser(ctx, username, changes)
	case StrategyRaw:
		return r.rawUpdate(ctx, username, changes)
	}
	return nil, fmt.Errorf("update user: %w", apperrors.ErrUnsupported)
}

// Delete removes the record matching username.
func (r *Resolver) Delete(ctx context.Context, username string) error {
	switch r.strategies[OpDelete] {
	case StrategyNative:
		return r.native.DeleteUser(ctx, username)
	case StrategyRaw:
		return r.rawDelete(ctx, username)
	}
	return fmt.Errorf("delete user: %w", apperrors.ErrUnsupported)
}

// rawSelect runs a select builder and scans the rows into users.
func (r *Resolver) rawSelect(ctx context.Context, builder sq.SelectBuilder) ([]models.User, error) {
	querier, err := r.raw.RawQuerier(ctx)
	if err != nil {
		return nil, err
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("raw user query failed: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("raw user query failed: %w", err)
	}
	return users, nil
}

// rawGet returns the user matching username, or (nil, nil) when absent.
func (r *Resolver) rawGet(ctx context.Context, username string) (*models.User, error) {
	users, err := r.rawSelect(ctx, r.stmt.Select(userColumns...).From("users").
		Where(sq.Eq{"username": username}).
		Limit(1))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

func (r *Resolver) rawCreate(ctx context.Context, user *models.User) error {
	querier, err := r.raw.RawQuerier(ctx)
	if err != nil {
		return err
	}
	query, args, err := r.stmt.Insert("users").
		Columns("username", "email", "full_name", "role").
		Values(user.Username, user.Email, user.FullName, user.Role).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}
	result, err := querier.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("raw user insert failed: %w", err)
	}

	// Re-read the row so user_id is populated regardless of whether the
	// driver supports LastInsertId.
	created, err := r.rawGet(ctx, user.Username)
	if err == nil && created != nil {
		*user = *created
		return nil
	}
	if id, idErr := result.LastInsertId(); idErr == nil {
		user.UserID = id
	}
	return nil
}

func (r *Resolver) rawUpdate(ctx context.Context, username string, changes models.UserChanges) (*models.User, error) {
	querier, err := r.raw.RawQuerier(ctx)
	if err != nil {
		return nil, err
	}

	// The statement is built only from the fields actually supplied so
	// unsupplied fields are never overwritten.
	builder := r.stmt.Update("users").Where(sq.Eq{"username": username})
	supplied := false
	if changes.Email != nil {
		builder = builder.Set("email", *changes.Email)
		supplied = true
	}
	if changes.FullName != nil {
		builder = builder.Set("full_name", *changes.FullName)
		supplied = true
	}
	if changes.Role != nil {
		builder = builder.Set("role", *changes.Role)
		supplied = true
	}

	if supplied {
		query, args, err := builder.ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build update: %w", err)
		}
		result, err := querier.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("raw user update failed: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("raw user update failed: %w", err)
		}
		if affected == 0 {
			return nil, fmt.Errorf("user %q: %w", username, apperrors.ErrNotFound)
		}
	}

	updated, err := r.rawGet(ctx, username)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("user %q: %w", username, apperrors.ErrNotFound)
	}
	return updated, nil
}

func (r *Resolver) rawDelete(ctx context.Context, username string) error {
	querier, err := r.raw.RawQuerier(ctx)
	if err != nil {
		return err
	}
	query, args, err := r.stmt.Delete("users").Where(sq.Eq{"username": username}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	result, err := querier.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("raw user delete failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("raw user delete failed: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %q: %w", username, apperrors.ErrNotFound)
	}
	return nil
}

// scanUser scans one row of the userColumns projection, mapping NULL
// email/full_name/role to empty strings.
func scanUser(rows *sql.Rows) (models.User, error) {
	var (
		u        models.User
		email    sql.NullString
		fullName sql.NullString
		role     sql.NullString
	)
	if err := rows.Scan(&u.UserID, &u.Username, &email, &fullName, &role); err != nil {
		return models.User{}, fmt.Errorf("failed to scan user row: %w", err)
	}
	u.Email = email.String
	u.FullName = fullName.String
	u.Role = role.String
	return u, nil
}
