package models

// UserRole represents valid user roles carried in access tokens
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// Principal is the authenticated caller extracted from a bearer token
type Principal struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
}

// IsAdmin reports whether the caller may use admin routes
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == UserRoleAdmin
}
