package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-complaints-api/internal/models"
)

func TestCreateChatMessageRecordsSenderReceipt(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChatRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chat_messages")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chat_read_receipts")).
		WithArgs(sqlmock.AnyArg(), "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	msg := &models.ChatMessage{ComplaintID: "c1", SenderID: "u1", Message: "hello"}
	require.NoError(t, repo.Create(context.Background(), msg))
	require.Len(t, msg.ReadBy, 1)
	assert.Equal(t, "u1", msg.ReadBy[0].UserID)
	assert.NotNil(t, msg.Attachments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByComplaintAttachesReceipts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChatRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM chat_messages m JOIN users u")).WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "complaint_id", "sender_id", "sender_name", "sender_role", "message", "attachments", "created_at", "updated_at"}).
			AddRow("m1", "c1", "u1", "Ana", "user", "hi", []byte(`[{"url":"/uploads/x.jpg","storage_id":"x.jpg","type":"image"}]`), now, now).
			AddRow("m2", "c1", "s1", "Sam", "department_staff", "on it", []byte(`[]`), now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM chat_read_receipts WHERE message_id IN ($1,$2)")).WithArgs("m1", "m2").
		WillReturnRows(sqlmock.NewRows([]string{"message_id", "user_id", "read_at"}).
			AddRow("m1", "u1", now).AddRow("m1", "s1", now).AddRow("m2", "s1", now))

	msgs, err := repo.ListByComplaint(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Len(t, msgs[0].ReadBy, 2)
	assert.Len(t, msgs[1].ReadBy, 1)
	require.Len(t, msgs[0].Attachments, 1)
	assert.Equal(t, "image", msgs[0].Attachments[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkThreadReadIsIdempotentInsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChatRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (message_id, user_id) DO NOTHING")).
		WithArgs("c1", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.MarkThreadRead(context.Background(), "c1", "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
