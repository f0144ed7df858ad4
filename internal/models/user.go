package models

// UserRole represents the portal a signed-in user belongs to.
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleDirector UserRole = "director"
	RoleStudent  UserRole = "student"
)

// Valid reports whether r is a known portal role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleDirector, RoleStudent:
		return true
	default:
		return false
	}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
