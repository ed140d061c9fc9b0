package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleUser            UserRole = "user"
	RoleAdmin           UserRole = "admin"
	RoleDepartmentStaff UserRole = "department_staff"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleDepartmentStaff:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         UserRole   `db:"role" json:"role"`
	DepartmentID *string    `db:"department_id" json:"department_id,omitempty"`
	Phone        string     `db:"phone" json:"phone"`
	Address      string     `db:"address" json:"address"`
	Avatar       *string    `db:"avatar" json:"avatar,omitempty"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role         *UserRole
	DepartmentID string
	IsActive     *bool
	Search       string
	Page         int
	PageSize     int
}

// UserStats summarises complaint activity for one user.
type UserStats struct {
	Total    int            `json:"total"`
	Resolved int            `json:"resolved"`
	Pending  int            `json:"pending"`
	ByStatus map[string]int `json:"by_status"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// MaxPageSize caps the rows returned by any paginated list.
const MaxPageSize = 100

// NewPagination computes page metadata for a result set. Sizes above
// MaxPageSize are reported as MaxPageSize, matching what the query returns.
func NewPagination(page, size, total int) *Pagination {
	if size > MaxPageSize {
		size = MaxPageSize
	}
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return &Pagination{Page: page, PageSize: size, TotalCount: total, TotalPages: pages}
}
