package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-complaints-api/internal/models"
	"github.com/noah-isme/civic-complaints-api/internal/realtime"
	appErrors "github.com/noah-isme/civic-complaints-api/pkg/errors"
)

type tokenAuthStub map[string]*models.User

func (s tokenAuthStub) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if user, ok := s[token]; ok {
		return user, nil
	}
	return nil, appErrors.ErrUnauthorized
}

func newSocketServer(t *testing.T) (*httptest.Server, *realtime.Hub, *realtime.LocalBroker) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	broker := realtime.NewLocalBroker()
	hub := realtime.NewHub(broker, nil, nil)
	auth := tokenAuthStub{"good": {ID: "u1", Role: models.RoleUser}}

	router := gin.New()
	router.GET("/ws", NewWebSocketHandler(auth, hub, nil, nil).Connect)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, hub, broker
}

func wsURL(server *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws" + query
}

func TestWebSocketHandlerRejectsMissingToken(t *testing.T) {
	server, hub, _ := newSocketServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, ""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(server, "?token=bad"), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, hub.Active())
}

func TestWebSocketHandlerJoinsUserRoom(t *testing.T) {
	server, hub, broker := newSocketServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "?token=good"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Active() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, broker.Subscribers(realtime.UserRoom("u1")))
	assert.Equal(t, 1, broker.Subscribers(realtime.RoleRoom(models.RoleUser)))

	header := http.Header{}
	header.Set("Authorization", "Bearer good")
	second, _, err := websocket.DefaultDialer.Dial(wsURL(server, ""), header)
	require.NoError(t, err)
	defer second.Close()
	require.Eventually(t, func() bool { return hub.Active() == 2 }, time.Second, 10*time.Millisecond)
}
