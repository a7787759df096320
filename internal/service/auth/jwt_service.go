package auth

import (
	"context"
	"time"
)

// Role is the operator role carried by a token.
type Role string

// Operator roles
const (
	RoleAdmin     Role = "admin"
	RoleSuperuser Role = "superuser"
	RoleViewer    Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSuperuser, RoleViewer:
		return true
	}
	return false
}

// CanAdminister reports whether r may trigger admin operations.
func (r Role) CanAdminister() bool {
	return r == RoleAdmin || r == RoleSuperuser
}

// JWTService defines operations for managing operator tokens.
type JWTService interface {
	// GenerateToken creates a signed access token for the named operator.
	GenerateToken(ctx context.Context, subject string, role Role) (string, error)

	// ValidateToken validates the provided token string and extracts the claims.
	// Returns the claims if the token is valid, or an error if validation fails
	// (expired, invalid signature, unknown role).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the claims of an operator token.
type Claims struct {
	// Subject names the operator the token was issued for.
	Subject   string    `json:"sub,omitempty"`
	Role      Role      `json:"role,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
