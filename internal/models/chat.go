package models

import (
	"database/sql/driver"
	"time"
)

// ChatAttachment references an uploaded media file.
type ChatAttachment struct {
	URL       string `json:"url"`
	StorageID string `json:"storage_id"`
	Type      string `json:"type"`
}

// ChatAttachments is stored as a JSONB array.
type ChatAttachments []ChatAttachment

// Value marshals attachments for persistence.
func (a ChatAttachments) Value() (driver.Value, error) {
	if a == nil {
		a = ChatAttachments{}
	}
	return jsonValue([]ChatAttachment(a), "chat attachments")
}

// Scan unmarshals the JSONB attachment array.
func (a *ChatAttachments) Scan(value any) error {
	var items []ChatAttachment
	if _, err := scanJSON(value, &items, "chat attachments"); err != nil {
		return err
	}
	if items == nil {
		items = []ChatAttachment{}
	}
	*a = items
	return nil
}

// ReadReceipt records that a user has seen a message.
type ReadReceipt struct {
	MessageID string    `db:"message_id" json:"-"`
	UserID    string    `db:"user_id" json:"user_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}

// ChatMessage is one entry in a complaint's conversation thread.
type ChatMessage struct {
	ID          string          `db:"id" json:"id"`
	ComplaintID string          `db:"complaint_id" json:"complaint_id"`
	SenderID    string          `db:"sender_id" json:"sender_id"`
	SenderName  string          `db:"sender_name" json:"sender_name"`
	SenderRole  UserRole        `db:"sender_role" json:"sender_role"`
	Message     string          `db:"message" json:"message"`
	Attachments ChatAttachments `db:"attachments" json:"attachments"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`

	ReadBy []ReadReceipt `db:"-" json:"read_by"`
}
