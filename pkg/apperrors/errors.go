package apperrors

import "errors"

// Sentinel errors for the known failure kinds of directory operations.
// Services and repositories wrap these with fmt.Errorf("...: %w", ...) so
// callers can classify with errors.Is while keeping the detail message.
var (
	// ErrConflict indicates a uniqueness violation, e.g. creating a user
	// whose username is already taken.
	ErrConflict = errors.New("conflict")

	// ErrNotFound indicates the target record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnsupported indicates the backing store exposes no capability
	// path for the requested operation.
	ErrUnsupported = errors.New("operation not supported by store")

	// ErrUnauthenticated indicates a missing or unverifiable identity token.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrPermissionDenied indicates a valid identity lacking the role the
	// operation requires.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrValidation indicates structurally invalid input.
	ErrValidation = errors.New("validation failed")
)
