package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/civic-complaints-api/internal/models"
)

// ChatRepository persists complaint conversation threads and read receipts.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository constructs the repository.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create stores a message and records the sender's own read receipt.
func (r *ChatRepository) Create(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	msg.CreatedAt, msg.UpdatedAt = now, now
	if msg.Attachments == nil {
		msg.Attachments = models.ChatAttachments{}
	}

	return withTx(ctx, r.db, "create chat message", func(tx *sqlx.Tx) error {
		const insert = `INSERT INTO chat_messages (id, complaint_id, sender_id, message, attachments, created_at, updated_at)
VALUES (:id, :complaint_id, :sender_id, :message, :attachments, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insert, msg); err != nil {
			return fmt.Errorf("insert chat message: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO chat_read_receipts (message_id, user_id, read_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, msg.ID, msg.SenderID, now); err != nil {
			return fmt.Errorf("insert sender receipt: %w", err)
		}
		msg.ReadBy = []models.ReadReceipt{{MessageID: msg.ID, UserID: msg.SenderID, ReadAt: now}}
		return nil
	})
}

// ListByComplaint returns the thread oldest first with sender details and receipts.
func (r *ChatRepository) ListByComplaint(ctx context.Context, complaintID string) ([]models.ChatMessage, error) {
	const query = `SELECT m.id, m.complaint_id, m.sender_id, u.name AS sender_name, u.role AS sender_role, m.message, m.attachments, m.created_at, m.updated_at
FROM chat_messages m JOIN users u ON u.id = m.sender_id WHERE m.complaint_id = $1 ORDER BY m.created_at ASC, m.id ASC`
	var messages []models.ChatMessage
	if err := r.db.SelectContext(ctx, &messages, query, complaintID); err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	if len(messages) == 0 {
		return messages, nil
	}

	ids := make([]string, len(messages))
	for i := range messages {
		ids[i] = messages[i].ID
		messages[i].ReadBy = []models.ReadReceipt{}
	}
	receipts := psql.Select("message_id", "user_id", "read_at").From("chat_read_receipts").
		Where(sq.Eq{"message_id": ids}).OrderBy("read_at ASC")
	var rows []models.ReadReceipt
	if err := selectBuilt(ctx, r.db, &rows, receipts, "list read receipts"); err != nil {
		return nil, err
	}
	index := make(map[string]int, len(messages))
	for i := range messages {
		index[messages[i].ID] = i
	}
	for _, rc := range rows {
		if i, ok := index[rc.MessageID]; ok {
			messages[i].ReadBy = append(messages[i].ReadBy, rc)
		}
	}
	return messages, nil
}

// MarkThreadRead records a receipt for every message in the thread not yet
// read by userID. Existing receipts are kept untouched.
func (r *ChatRepository) MarkThreadRead(ctx context.Context, complaintID, userID string) (int64, error) {
	const query = `INSERT INTO chat_read_receipts (message_id, user_id, read_at)
SELECT id, $2, $3 FROM chat_messages WHERE complaint_id = $1
ON CONFLICT (message_id, user_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, complaintID, userID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark chat thread read: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
