package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"userdir/internal/services"
)

// identityKey is where AuthRequired stores the resolved identity in the
// request locals.
const identityKey = "identity"

// TokenVerifier resolves a presented token to an identity.
type TokenVerifier interface {
	ValidateToken(tokenString string) (*services.Identity, error)
}

// AuthRequired is a Fiber middleware that resolves the caller's identity
// from the Authorization header. Every directory operation requires a
// validly resolved identity; requests without one never reach a handler.
func AuthRequired(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		identity, err := verifier.ValidateToken(parts[1])
		if err != nil {
			log.Printf("Token validation failed: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
			})
		}

		c.Locals(identityKey, identity)
		return c.Next()
	}
}

// AdminRequired is a Fiber middleware enforcing the administrator role for
// mutating operations. It must run after AuthRequired.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := IdentityFromCtx(c)
		if identity == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authentication required",
			})
		}
		if !identity.IsAdmin() {
			log.Printf("Permission denied: %s (role %s) attempted an admin operation", identity.Username, identity.Role)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Administrator role required",
			})
		}
		return c.Next()
	}
}

// IdentityFromCtx returns the identity AuthRequired stored for this
// request, or nil if the request was not authenticated.
func IdentityFromCtx(c *fiber.Ctx) *services.Identity {
	identity, _ := c.Locals(identityKey).(*services.Identity)
	return identity
}
