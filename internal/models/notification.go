package models

import "time"

// NotificationType labels an inbox entry.
type NotificationType string

const (
	NotificationComplaintFiled    NotificationType = "complaint_filed"
	NotificationComplaintAssigned NotificationType = "complaint_assigned"
	NotificationStatusUpdated     NotificationType = "status_updated"
	NotificationEscalation        NotificationType = "escalation"
	NotificationResolved          NotificationType = "resolved"
	NotificationNewMessage        NotificationType = "new_message"
	NotificationSLAWarning        NotificationType = "sla_warning"
	NotificationFeedbackRequest   NotificationType = "feedback_request"
)

// Notification is a persisted inbox item for one user.
type Notification struct {
	ID          string           `db:"id" json:"id"`
	UserID      string           `db:"user_id" json:"user_id"`
	Type        NotificationType `db:"type" json:"type"`
	Title       string           `db:"title" json:"title"`
	Message     string           `db:"message" json:"message"`
	ComplaintID *string          `db:"complaint_id" json:"complaint_id,omitempty"`
	IsRead      bool             `db:"is_read" json:"is_read"`
	ReadAt      *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter scopes a user's inbox listing.
type NotificationFilter struct {
	UserID   string
	IsRead   *bool
	Page     int
	PageSize int
}
