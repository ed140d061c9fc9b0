package models

import "time"

// Department is an administrative unit that handles a complaint category.
type Department struct {
	ID           string            `db:"id" json:"id"`
	Name         string            `db:"name" json:"name"`
	Description  string            `db:"description" json:"description"`
	Category     ComplaintCategory `db:"category" json:"category"`
	HeadID       *string           `db:"head_id" json:"head_id,omitempty"`
	IsActive     bool              `db:"is_active" json:"is_active"`
	ContactEmail string            `db:"contact_email" json:"contact_email"`
	ContactPhone string            `db:"contact_phone" json:"contact_phone"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`

	Staff []UserInfo `db:"-" json:"staff"`
}

// DepartmentFilter scopes department listings.
type DepartmentFilter struct {
	IsActive *bool
	Category ComplaintCategory
}

// DepartmentWorkload counts complaints handled by a department.
type DepartmentWorkload struct {
	DepartmentID   string         `db:"department_id" json:"department_id"`
	DepartmentName string         `db:"department_name" json:"department_name"`
	Total          int            `db:"total" json:"total"`
	StaffCount     int            `db:"staff_count" json:"staff_count"`
	ByStatus       map[string]int `db:"-" json:"by_status"`
}
