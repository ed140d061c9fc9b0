package models

import (
	"database/sql/driver"
	"time"
)

// ComplaintCategory classifies a complaint and routes it to departments.
type ComplaintCategory string

const (
	CategoryInfrastructure  ComplaintCategory = "infrastructure"
	CategorySanitation      ComplaintCategory = "sanitation"
	CategoryWaterSupply     ComplaintCategory = "water_supply"
	CategoryElectricity     ComplaintCategory = "electricity"
	CategoryTraffic         ComplaintCategory = "traffic"
	CategoryWasteManagement ComplaintCategory = "waste_management"
	CategoryParks           ComplaintCategory = "parks"
	CategorySecurity        ComplaintCategory = "security"
	CategoryOther           ComplaintCategory = "other"
)

// Categories lists every category in display order.
var Categories = []ComplaintCategory{
	CategoryInfrastructure, CategorySanitation, CategoryWaterSupply, CategoryElectricity,
	CategoryTraffic, CategoryWasteManagement, CategoryParks, CategorySecurity, CategoryOther,
}

// Valid reports whether c is a known category.
func (c ComplaintCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ComplaintPriority ranks urgency.
type ComplaintPriority string

const (
	PriorityLow    ComplaintPriority = "low"
	PriorityMedium ComplaintPriority = "medium"
	PriorityHigh   ComplaintPriority = "high"
)

// Valid reports whether p is a known priority.
func (p ComplaintPriority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// ComplaintStatus is a lifecycle state.
type ComplaintStatus string

const (
	StatusSubmitted  ComplaintStatus = "submitted"
	StatusReviewed   ComplaintStatus = "reviewed"
	StatusAssigned   ComplaintStatus = "assigned"
	StatusInProgress ComplaintStatus = "in_progress"
	StatusResolved   ComplaintStatus = "resolved"
	StatusClosed     ComplaintStatus = "closed"
)

// Statuses lists every lifecycle state in order.
var Statuses = []ComplaintStatus{
	StatusSubmitted, StatusReviewed, StatusAssigned, StatusInProgress, StatusResolved, StatusClosed,
}

// Valid reports whether s is a known status.
func (s ComplaintStatus) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further status mutation is allowed.
func (s ComplaintStatus) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// FileKind distinguishes citizen evidence from resolution proof.
type FileKind string

const (
	FileKindAttachment FileKind = "attachment"
	FileKindResolution FileKind = "resolution"
)

// ComplaintFile is an uploaded file linked to a complaint.
type ComplaintFile struct {
	ID           string    `db:"id" json:"id"`
	ComplaintID  string    `db:"complaint_id" json:"-"`
	Kind         FileKind  `db:"kind" json:"-"`
	Position     int       `db:"position" json:"-"`
	Filename     string    `db:"filename" json:"filename"`
	Path         string    `db:"storage_path" json:"path"`
	OriginalName string    `db:"original_name" json:"original_name"`
	MimeType     string    `db:"mime_type" json:"mime_type"`
	Size         int64     `db:"size" json:"size"`
	CreatedAt    time.Time `db:"created_at" json:"-"`
}

// TimelineEntry is one append-only audit record of a status-affecting operation.
type TimelineEntry struct {
	ID          int64           `db:"id" json:"-"`
	ComplaintID string          `db:"complaint_id" json:"-"`
	Status      ComplaintStatus `db:"status" json:"status"`
	UpdatedBy   string          `db:"updated_by" json:"updated_by"`
	Comment     string          `db:"comment" json:"comment"`
	CreatedAt   time.Time       `db:"created_at" json:"timestamp"`
}

// Feedback is the owner's rating of a resolved complaint.
type Feedback struct {
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Value marshals the feedback for the JSONB column.
func (f Feedback) Value() (driver.Value, error) {
	return jsonValue(f, "complaint feedback")
}

// Scan unmarshals a JSONB feedback payload.
func (f *Feedback) Scan(value any) error {
	_, err := scanJSON(value, f, "complaint feedback")
	return err
}

// Location is a geographic point plus a free-form address.
type Location struct {
	Longitude float64 `db:"longitude" json:"longitude"`
	Latitude  float64 `db:"latitude" json:"latitude"`
	Address   string  `db:"address" json:"address"`
}

// Complaint is the core entity whose status follows the lifecycle state machine.
type Complaint struct {
	ID                     string            `db:"id" json:"id"`
	Title                  string            `db:"title" json:"title"`
	Description            string            `db:"description" json:"description"`
	Category               ComplaintCategory `db:"category" json:"category"`
	Priority               ComplaintPriority `db:"priority" json:"priority"`
	Status                 ComplaintStatus   `db:"status" json:"status"`
	UserID                 string            `db:"user_id" json:"user_id"`
	AssignedDepartmentID   *string           `db:"assigned_department_id" json:"assigned_department_id,omitempty"`
	AssignedStaffID        *string           `db:"assigned_staff_id" json:"assigned_staff_id,omitempty"`
	Location               `json:"location"`
	AICategory             *string   `db:"ai_category" json:"ai_category,omitempty"`
	AIPriority             *string   `db:"ai_priority" json:"ai_priority,omitempty"`
	AIAssignedDepartmentID *string   `db:"ai_assigned_department_id" json:"ai_assigned_department_id,omitempty"`
	ResolutionSummary      *string   `db:"resolution_summary" json:"resolution_summary,omitempty"`
	Feedback               *Feedback `db:"feedback" json:"feedback,omitempty"`
	Version                int       `db:"version" json:"version"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`

	Attachments      []ComplaintFile `db:"-" json:"attachments"`
	ResolutionImages []ComplaintFile `db:"-" json:"resolution_images"`
	Timeline         []TimelineEntry `db:"-" json:"timeline"`
}

// ComplaintFilter scopes complaint listings.
type ComplaintFilter struct {
	Status       ComplaintStatus
	Category     ComplaintCategory
	Priority     ComplaintPriority
	UserID       string
	DepartmentID string
	StaffID      string
	Search       string
	Sort         string
	Page         int
	PageSize     int
}

// LocationQuery asks for complaints near a point. A nil center returns every
// complaint with coordinates set.
type LocationQuery struct {
	Latitude  *float64
	Longitude *float64
	RadiusM   float64
	Limit     int
}

// ComplaintLocation is a compact map marker.
type ComplaintLocation struct {
	ID        string            `db:"id" json:"id"`
	Title     string            `db:"title" json:"title"`
	Category  ComplaintCategory `db:"category" json:"category"`
	Priority  ComplaintPriority `db:"priority" json:"priority"`
	Status    ComplaintStatus   `db:"status" json:"status"`
	Latitude  float64           `db:"latitude" json:"latitude"`
	Longitude float64           `db:"longitude" json:"longitude"`
	Address   string            `db:"address" json:"address"`
	DistanceM *float64          `db:"distance_m" json:"distance_m,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}
