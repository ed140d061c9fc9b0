package service

import (
	"context"
	"mime/multipart"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-complaints-api/internal/models"
	appErrors "github.com/noah-isme/civic-complaints-api/pkg/errors"
)

type chatStore interface {
	Create(ctx context.Context, msg *models.ChatMessage) error
	ListByComplaint(ctx context.Context, complaintID string) ([]models.ChatMessage, error)
	MarkThreadRead(ctx context.Context, complaintID, userID string) (int64, error)
}

type complaintReader interface {
	FindByID(ctx context.Context, id string) (*models.Complaint, error)
}

// ChatService runs the per-complaint conversation thread.
type ChatService struct {
	repo       chatStore
	complaints complaintReader
	uploads    fileUploader
	events     EventPublisher
	logger     *zap.Logger
}

// NewChatService constructs the service.
func NewChatService(repo chatStore, complaints complaintReader, uploads fileUploader, events EventPublisher, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{repo: repo, complaints: complaints, uploads: uploads, events: events, logger: logger}
}

// List returns the thread oldest first and records that the caller has read it.
func (s *ChatService) List(ctx context.Context, actor Actor, complaintID string) ([]models.ChatMessage, error) {
	if _, err := s.authorize(ctx, actor, complaintID); err != nil {
		return nil, err
	}
	if _, err := s.repo.MarkThreadRead(ctx, complaintID, actor.ID); err != nil {
		s.logger.Warn("failed to mark chat thread read", zap.String("complaint_id", complaintID), zap.Error(err))
	}
	messages, err := s.repo.ListByComplaint(ctx, complaintID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch messages")
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	return messages, nil
}

// Send posts a message with optional media attachments.
func (s *ChatService) Send(ctx context.Context, actor Actor, complaintID, text string, files []*multipart.FileHeader) (*models.ChatMessage, error) {
	complaint, err := s.authorize(ctx, actor, complaintID)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" && len(files) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message or attachment is required")
	}

	var stored []StoredFile
	if len(files) > 0 && s.uploads != nil {
		stored, err = s.uploads.StoreAll(ctx, "chat", files)
		if err != nil {
			return nil, err
		}
	}
	attachments := make(models.ChatAttachments, 0, len(stored))
	for _, f := range stored {
		kind := "image"
		if strings.HasPrefix(f.MimeType, "video/") {
			kind = "video"
		}
		attachments = append(attachments, models.ChatAttachment{URL: f.URL, StorageID: f.Key, Type: kind})
	}

	msg := &models.ChatMessage{
		ComplaintID: complaintID,
		SenderID:    actor.ID,
		SenderName:  actor.Name,
		SenderRole:  actor.Role,
		Message:     text,
		Attachments: attachments,
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		if len(stored) > 0 {
			s.uploads.Discard(context.WithoutCancel(ctx), stored)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}

	if s.events != nil {
		s.events.Publish(ctx, LifecycleEvent{Kind: EventChatMessage, Complaint: *complaint, Actor: actor, Message: msg})
	}
	return msg, nil
}

// authorize loads the complaint and checks the caller may use its thread.
func (s *ChatService) authorize(ctx context.Context, actor Actor, complaintID string) (*models.Complaint, error) {
	complaint, err := s.complaints.FindByID(ctx, complaintID)
	if err != nil {
		return nil, notFoundOr(err, "complaint not found", "failed to load complaint")
	}
	if actor.Role == models.RoleUser && complaint.UserID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied")
	}
	return complaint, nil
}
