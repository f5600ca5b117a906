package models

// Roles a directory user can hold. These are the only values that may
// ever be persisted in the role column.
const (
	RoleUser     = "user"
	RoleApprover = "approver"
	RoleAdmin    = "admin"
)

// User is a role-tagged identity in the directory. The table carries
// exactly these five columns; the raw-query fallback path selects and
// mutates the same rows the ORM path does, so no ORM bookkeeping columns
// (timestamps, soft-delete markers) are added.
type User struct {
	UserID   int64  `json:"user_id" gorm:"column:user_id;primaryKey;autoIncrement"`
	Username string `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=2,max=100"`
	Email    string `json:"email" gorm:"type:varchar(200)" validate:"omitempty,max=200"`
	FullName string `json:"full_name" gorm:"type:varchar(200)" validate:"omitempty,max=200"`
	Role     string `json:"role" gorm:"type:varchar(20);default:user" validate:"omitempty,oneof=user approver admin"`
}

// TableName fixes the relation name the raw fallback queries rely on.
func (User) TableName() string {
	return "users"
}

// CanApprove reports whether the user is eligible to approve workflow
// actions: approvers and admins both qualify.
func (u User) CanApprove() bool {
	return u.Role == RoleApprover || u.Role == RoleAdmin
}

// ValidRole reports whether role is one of the three enumerated values.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleApprover, RoleAdmin:
		return true
	}
	return false
}

// UserChanges is a partial update to a user. Nil fields are left
// unchanged; username is immutable and therefore not represented here.
type UserChanges struct {
	Email    *string `json:"email" validate:"omitempty,max=200"`
	FullName *string `json:"full_name" validate:"omitempty,max=200"`
	Role     *string `json:"role" validate:"omitempty,oneof=user approver admin"`
}

// IsEmpty reports whether no fields were supplied.
func (c UserChanges) IsEmpty() bool {
	return c.Email == nil && c.FullName == nil && c.Role == nil
}

// Apply overlays the supplied fields onto u.
func (c UserChanges) Apply(u *User) {
	if c.Email != nil {
		u.Email = *c.Email
	}
	if c.FullName != nil {
		u.FullName = *c.FullName
	}
	if c.Role != nil {
		u.Role = *c.Role
	}
}
