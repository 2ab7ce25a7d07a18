package models

import (
	"database/sql"
	"time"
)

// Roles form a fixed three-tier hierarchy.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

// Task statuses. Transitions only move forward; see internal/lifecycle.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAdmin, RoleSuperadmin:
		return true
	default:
		return false
	}
}

func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

type User struct {
	ID             int            `json:"id"`
	Username       string         `json:"username"`
	Email          string         `json:"email"`
	Password       string         `json:"-"`
	Role           string         `json:"role"`
	IsActive       bool           `json:"is_active"`
	AssignedAdmin  sql.NullInt64  `json:"assigned_admin"`
	ProfilePicture sql.NullString `json:"profile_picture"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (u *User) IsUser() bool       { return u.Role == RoleUser }
func (u *User) IsAdmin() bool      { return u.Role == RoleAdmin }
func (u *User) IsSuperadmin() bool { return u.Role == RoleSuperadmin }

// SupervisedBy reports whether adminID is this account's assigned admin.
// The link only carries meaning for role=user; a stale value left on an
// admin or superadmin row grants nothing.
func (u *User) SupervisedBy(adminID int) bool {
	return u.IsUser() && u.AssignedAdmin.Valid && int(u.AssignedAdmin.Int64) == adminID
}

// Task is the unit of assigned work. CompletionReport holds plaintext in
// memory; the repository encrypts it at rest and only the report endpoints
// read it back.
type Task struct {
	ID               int             `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	AssignedTo       int             `json:"assigned_to"`
	CreatedBy        int             `json:"created_by"`
	Status           string          `json:"status"`
	DueDate          time.Time       `json:"due_date"`
	StartedAt        sql.NullTime    `json:"started_at"`
	CompletedAt      sql.NullTime    `json:"completed_at"`
	CompletionReport sql.NullString  `json:"completion_report,omitempty"`
	WorkedHours      sql.NullFloat64 `json:"worked_hours"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
