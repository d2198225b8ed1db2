package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens issued by the
// identity provider.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Principal identifies the caller in access logs as "<role>:<user id>".
func (c *JWTClaims) Principal() string {
	if c == nil {
		return ""
	}
	return string(c.Role) + ":" + c.UserID
}
