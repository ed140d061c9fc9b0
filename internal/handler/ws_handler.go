package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-complaints-api/internal/models"
	"github.com/noah-isme/civic-complaints-api/internal/realtime"
	appErrors "github.com/noah-isme/civic-complaints-api/pkg/errors"
	"github.com/noah-isme/civic-complaints-api/pkg/response"
)

type socketAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type socketHub interface {
	Serve(conn *websocket.Conn, id realtime.Identity) *realtime.Client
}

// WebSocketHandler upgrades authenticated connections onto the realtime hub.
type WebSocketHandler struct {
	auth     socketAuthenticator
	hub      socketHub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler constructs the handler. checkOrigin may be nil to accept
// every origin.
func NewWebSocketHandler(auth socketAuthenticator, hub socketHub, checkOrigin func(*http.Request) bool, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WebSocketHandler{
		auth: auth,
		hub:  hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// Connect godoc
// @Summary Open the realtime channel
// @Description The access token is passed as the token query parameter or a bearer header
// @Tags Realtime
// @Param token query string false "Access token"
// @Success 101
// @Failure 401 {object} response.Envelope
// @Router /ws [get]
func (h *WebSocketHandler) Connect(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}
	}
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication token required"))
		return
	}

	user, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the failure response
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	h.hub.Serve(conn, realtime.Identity{UserID: user.ID, Role: user.Role})
}
