package handlers

import (
	"errors"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"userdir/internal/models"
	"userdir/internal/services"
	"userdir/pkg/apperrors"
)

// UserCreateRequest is the request body for creating a user.
type UserCreateRequest struct {
	Username string  `json:"username" validate:"required,min=2,max=100"`
	Email    string  `json:"email" validate:"required,max=200"`
	FullName *string `json:"full_name" validate:"omitempty,max=200"`
	Role     string  `json:"role" validate:"omitempty,oneof=user approver admin"`
}

// UserUpdateRequest is the request body for a partial user update. Absent
// fields are left unchanged.
type UserUpdateRequest struct {
	Email    *string `json:"email" validate:"omitempty,max=200"`
	FullName *string `json:"full_name" validate:"omitempty,max=200"`
	Role     *string `json:"role" validate:"omitempty,oneof=user approver admin"`
}

// UserResponse is a user record as presented to callers. Fields the store
// never assigned are null rather than zero values.
type UserResponse struct {
	UserID   *int64  `json:"user_id"`
	Username string  `json:"username"`
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Role     *string `json:"role"`
}

func toUserResponse(u models.User) UserResponse {
	resp := UserResponse{Username: u.Username}
	if u.UserID != 0 {
		resp.UserID = &u.UserID
	}
	if u.Email != "" {
		resp.Email = &u.Email
	}
	if u.FullName != "" {
		resp.FullName = &u.FullName
	}
	if u.Role != "" {
		resp.Role = &u.Role
	}
	return resp
}

func toUserResponses(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

// UserHandler handles HTTP requests for the user directory.
type UserHandler struct {
	service  *services.UserDirectoryService
	validate *validator.Validate
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *services.UserDirectoryService) *UserHandler {
	return &UserHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the user directory routes with the Fiber app.
// auth resolves the caller's identity for every route; admin additionally
// guards the mutating routes.
func (h *UserHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler, admin fiber.Handler) {
	userRoutes := router.Group("/users", auth)
	userRoutes.Get("/", h.HandleListUsers)
	userRoutes.Get("/approvers", h.HandleListApprovers)
	userRoutes.Post("/", admin, h.HandleCreateUser)
	userRoutes.Put("/:username", admin, h.HandleUpdateUser)
	userRoutes.Delete("/:username", admin, h.HandleDeleteUser)
}

// HandleListUsers lists all users, optionally filtered by role.
func (h *UserHandler) HandleListUsers(c *fiber.Ctx) error {
	role := c.Query("role")
	if err := h.validate.Var(role, "omitempty,oneof=user approver admin"); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  map[string]string{"role": fmt.Sprintf("Role must be one of '%s', '%s', '%s'", models.RoleUser, models.RoleApprover, models.RoleAdmin)},
		})
	}

	users, err := h.service.ListUsers(c.Context(), role)
	if err != nil {
		return h.handleServiceError(c, "Could not retrieve users", err)
	}
	return c.JSON(fiber.Map{
		"users": toUserResponses(users),
		"count": len(users),
	})
}

// HandleListApprovers lists all users who can approve workflow actions
// (approvers and admins).
func (h *UserHandler) HandleListApprovers(c *fiber.Ctx) error {
	approvers, err := h.service.ListApprovers(c.Context())
	if err != nil {
		return h.handleServiceError(c, "Could not retrieve approvers", err)
	}
	return c.JSON(fiber.Map{
		"approvers": toUserResponses(approvers),
		"count":     len(approvers),
	})
}

// HandleCreateUser creates a new user (admin only).
func (h *UserHandler) HandleCreateUser(c *fiber.Ctx) error {
	var req UserCreateRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing create user request body: %v", err)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationMessages(err),
		})
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Role:     req.Role,
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}

	created, err := h.service.CreateUser(c.Context(), user)
	if err != nil {
		return h.handleServiceError(c, "Could not create user", err)
	}
	return c.JSON(fiber.Map{
		"message": "User created successfully",
		"user":    toUserResponse(*created),
	})
}

// HandleUpdateUser applies a partial update to a user (admin only).
func (h *UserHandler) HandleUpdateUser(c *fiber.Ctx) error {
	username := c.Params("username")

	var req UserUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing update user request body: %v", err)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationMessages(err),
		})
	}

	updated, err := h.service.UpdateUser(c.Context(), username, models.UserChanges{
		Email:    req.Email,
		FullName: req.FullName,
		Role:     req.Role,
	})
	if err != nil {
		return h.handleServiceError(c, "Could not update user", err)
	}
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"user":    toUserResponse(*updated),
	})
}

// HandleDeleteUser removes a user (admin only).
func (h *UserHandler) HandleDeleteUser(c *fiber.Ctx) error {
	username := c.Params("username")

	if err := h.service.DeleteUser(c.Context(), username); err != nil {
		return h.handleServiceError(c, "Could not delete user", err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("User '%s' deleted successfully", username),
	})
}

// handleServiceError maps the known error kinds to their status codes.
// Anything unrecognized is logged with full detail and surfaced as a
// generic internal failure.
func (h *UserHandler) handleServiceError(c *fiber.Ctx, message string, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": message,
			"error":   err.Error(),
		})
	case errors.Is(err, apperrors.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": message,
			"error":   err.Error(),
		})
	case errors.Is(err, apperrors.ErrUnsupported):
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"message": message,
			"error":   err.Error(),
		})
	case errors.Is(err, apperrors.ErrValidation):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": message,
			"error":   err.Error(),
		})
	}

	log.Printf("Internal error (%s): %v", message, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Internal server error",
	})
}

// validationMessages flattens validator errors into a field-to-message map.
func validationMessages(err error) map[string]string {
	messages := make(map[string]string)
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			messages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
	}
	return messages
}
