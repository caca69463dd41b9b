package models

import "time"

// UserRole enumerates application roles. Every non-student role may act as
// a reviewer on change requests.
type UserRole string

const (
	RoleStudent       UserRole = "STUDENT"
	RoleProfessor     UserRole = "PROFESSOR"
	RoleAdministrator UserRole = "ADMINISTRATOR"
	RoleDean          UserRole = "DEAN"
	RoleCoordinator   UserRole = "COORDINATOR"
)

// IsReviewer reports whether the role may review change requests.
func (r UserRole) IsReviewer() bool {
	switch r {
	case RoleProfessor, RoleAdministrator, RoleDean, RoleCoordinator:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination describes standard pagination metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
