package models

import "time"

// User roles. Managers and admins are "elevated" for guarded operations
// such as reschedule and administrative cancel.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCarer   = "carer"
	RoleClient  = "client"
)

// ElevatedRole reports whether the role may perform administrative actions.
func ElevatedRole(role string) bool {
	return role == RoleAdmin || role == RoleManager
}

// User is a platform account. Carers and clients link to their domain rows
// through CarerID / ClientID.
type User struct {
	ID           string    `json:"id"`
	OrgID        string    `json:"org_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Name         string    `json:"name"`
	CarerID      *string   `json:"carer_id,omitempty"`
	ClientID     *string   `json:"client_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LoginRequest authenticates with email and password.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest creates a new account in an organization.
type RegisterRequest struct {
	OrgID    string `json:"org_id" validate:"required,uuid"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=admin manager carer client"`
}

// AuthResponse carries the signed JWT and the authenticated user.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
