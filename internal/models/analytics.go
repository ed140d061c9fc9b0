package models

import "time"

// CountByKey is a grouped count row.
type CountByKey struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}

// DashboardStats aggregates complaint volume for the admin dashboard.
type DashboardStats struct {
	Total       int                  `json:"total"`
	Recent      int                  `json:"recent"`
	Unresolved  int                  `json:"unresolved"`
	ByCategory  []CountByKey         `json:"by_category"`
	ByPriority  []CountByKey         `json:"by_priority"`
	ByStatus    []CountByKey         `json:"by_status"`
	Departments []DepartmentWorkload `json:"departments"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// TrendPoint is a daily complaint count.
type TrendPoint struct {
	Day      time.Time `db:"day" json:"day"`
	Created  int       `db:"created" json:"created"`
	Resolved int       `db:"resolved" json:"resolved"`
}

// Trend is a daily series over a window.
type Trend struct {
	Days        int          `json:"days"`
	Points      []TrendPoint `json:"points"`
	GeneratedAt time.Time    `json:"generated_at"`
}
