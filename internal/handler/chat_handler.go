package handler

import (
	"context"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-complaints-api/internal/models"
	"github.com/noah-isme/civic-complaints-api/internal/service"
	appErrors "github.com/noah-isme/civic-complaints-api/pkg/errors"
	"github.com/noah-isme/civic-complaints-api/pkg/response"
)

type chatService interface {
	List(ctx context.Context, actor service.Actor, complaintID string) ([]models.ChatMessage, error)
	Send(ctx context.Context, actor service.Actor, complaintID, text string, files []*multipart.FileHeader) (*models.ChatMessage, error)
}

// ChatHandler serves the per-complaint message thread.
type ChatHandler struct {
	service chatService
}

// NewChatHandler constructs the handler.
func NewChatHandler(svc chatService) *ChatHandler {
	return &ChatHandler{service: svc}
}

// List godoc
// @Summary Read a complaint's chat thread
// @Tags Chat
// @Produce json
// @Param complaintId path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /chat/{complaintId} [get]
func (h *ChatHandler) List(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	messages, err := h.service.List(c.Request.Context(), actor, c.Param("complaintId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}

// Send godoc
// @Summary Post a chat message
// @Tags Chat
// @Accept mpfd,json
// @Produce json
// @Param complaintId path string true "Complaint ID"
// @Param message formData string false "Message text"
// @Param attachments formData file false "Up to five images or videos"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /chat/{complaintId} [post]
func (h *ChatHandler) Send(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var payload struct {
		Message string `json:"message" form:"message"`
	}
	if err := c.ShouldBind(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}
	files, err := formFiles(c, "attachments")
	if err != nil {
		response.Error(c, err)
		return
	}

	msg, err := h.service.Send(c.Request.Context(), actor, c.Param("complaintId"), payload.Message, files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}
