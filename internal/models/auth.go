package models

import "github.com/golang-jwt/jwt/v5"

// PortalClaims is the payload of a portal session token. Tokens are minted by
// the identity provider; this service only verifies them.
type PortalClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	// DirectorID and StudentID link the account to its roster row when known.
	DirectorID string `json:"director_id,omitempty"`
	StudentID  string `json:"student_id,omitempty"`
	jwt.RegisteredClaims
}

// EffectiveDirectorID returns the roster id used for director scoping.
func (c *PortalClaims) EffectiveDirectorID() string {
	if c == nil {
		return ""
	}
	if c.DirectorID != "" {
		return c.DirectorID
	}
	return c.UserID
}

// EffectiveStudentID returns the roster id used for student scoping.
func (c *PortalClaims) EffectiveStudentID() string {
	if c == nil {
		return ""
	}
	if c.StudentID != "" {
		return c.StudentID
	}
	return c.UserID
}
