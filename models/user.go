package models

// Role levels recognized by the backend.
const (
	RoleUser    = "user"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

// Category is a user-defined task category
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	IsDefault bool   `json:"is_default"`
}

// User represents an authenticated QA team member
type User struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Email      string              `json:"email,omitempty"`
	Role       string              `json:"role"`
	Categories map[string]Category `json:"categories,omitempty"`
}

// IsManager reports whether the user has manager or admin privileges
func (u *User) IsManager() bool {
	return u.Role == RoleManager || u.Role == RoleAdmin
}

// IsAdmin reports whether the user has admin privileges
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=64"`
	Email    string `json:"email,omitempty" validate:"email"`
	DeviceID string `json:"device_id" validate:"required"`
}

// AssignRoleRequest is the body of POST /users/assign-role
type AssignRoleRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"required,oneof=user manager admin"`
}

// CategoryRequest is the body of POST /users/{id}/categories
type CategoryRequest struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Color string `json:"color" validate:"required"`
}
