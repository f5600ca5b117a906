package services

import (
	"fmt"
	"log"

	"github.com/dgrijalva/jwt-go"

	"userdir/internal/models"
	"userdir/pkg/apperrors"
)

// Identity is the resolved caller of a directory operation: who they are
// and which role they hold. Tokens are issued elsewhere in the platform;
// this service only verifies them.
type Identity struct {
	Username string
	Role     string
}

// IsAdmin reports whether the identity may perform mutating operations.
func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// AuthService verifies identity tokens presented by callers.
type AuthService struct {
	jwtSecret []byte
}

// NewAuthService creates a new AuthService.
func NewAuthService(jwtSecret string) *AuthService {
	return &AuthService{
		jwtSecret: []byte(jwtSecret),
	}
}

// ValidateToken parses and validates a JWT token, returning the caller's
// identity if valid.
func (s *AuthService) ValidateToken(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the alg is what we expect:
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		log.Printf("Token validation error: %v", err)
		return nil, fmt.Errorf("invalid token: %w", apperrors.ErrUnauthenticated)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", apperrors.ErrUnauthenticated)
	}

	username, _ := claims["username"].(string)
	if username == "" {
		return nil, fmt.Errorf("token carries no username: %w", apperrors.ErrUnauthenticated)
	}
	role, _ := claims["role"].(string)

	return &Identity{Username: username, Role: role}, nil
}
