package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-complaints-api/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
	accessTimeout  = 5 * time.Second
)

// Identity is the authenticated owner of a connection.
type Identity struct {
	UserID string
	Role   models.UserRole
}

// ComplaintAccess decides whether a connection may follow a complaint room.
type ComplaintAccess interface {
	CanFollow(ctx context.Context, id Identity, complaintID string) (bool, error)
}

// Hub attaches websocket connections to broker rooms.
type Hub struct {
	broker Broker
	access ComplaintAccess
	logger *zap.Logger
	active atomic.Int64
}

// NewHub constructs a hub.
func NewHub(broker Broker, access ComplaintAccess, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{broker: broker, access: access, logger: logger}
}

// Active reports the number of open connections.
func (h *Hub) Active() int64 {
	return h.active.Load()
}

// Serve joins the connection to its user and role rooms and starts its pumps.
func (h *Hub) Serve(conn *websocket.Conn, id Identity) *Client {
	c := &Client{
		hub:      h,
		conn:     conn,
		identity: id,
		send:     make(chan Event, sendBuffer),
		rooms:    make(map[string]struct{}),
		done:     make(chan struct{}),
	}
	h.active.Add(1)
	c.join(UserRoom(id.UserID))
	c.join(RoleRoom(id.Role))
	h.logger.Debug("realtime client connected", zap.String("user_id", id.UserID), zap.String("role", string(id.Role)))

	go c.writePump()
	go c.readPump()
	return c
}

type clientMessage struct {
	Type        string `json:"type"`
	ComplaintID string `json:"complaint_id"`
}

// Client is one websocket connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	identity Identity
	send     chan Event

	mu    sync.Mutex
	rooms map[string]struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// Deliver queues evt for writing. A client whose buffer is full is dropped.
func (c *Client) Deliver(evt Event) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- evt:
	default:
		c.hub.logger.Warn("drop slow realtime client", zap.String("user_id", c.identity.UserID))
		go c.close()
	}
}

// Done is closed when the connection has been torn down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// join subscribes to room unless the client is already closed. The
// subscription happens under mu so close never misses a room.
func (c *Client) join(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return false
	default:
	}
	c.rooms[room] = struct{}{}
	c.hub.broker.Subscribe(room, c)
	return true
}

func (c *Client) leave(room string) {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
	c.hub.broker.Unsubscribe(room, c)
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.done)
		rooms := make([]string, 0, len(c.rooms))
		for room := range c.rooms {
			rooms = append(rooms, room)
		}
		c.rooms = map[string]struct{}{}
		c.mu.Unlock()
		for _, room := range rooms {
			c.hub.broker.Unsubscribe(room, c)
		}
		_ = c.conn.Close()
		c.hub.active.Add(-1)
		c.hub.logger.Debug("realtime client disconnected", zap.String("user_id", c.identity.UserID))
	})
}

func (c *Client) reply(name string, data any) {
	evt, err := NewEvent(name, data)
	if err != nil {
		return
	}
	c.Deliver(evt)
}

func (c *Client) handle(msg clientMessage) {
	if msg.ComplaintID == "" {
		c.reply("error", map[string]string{"message": "complaint_id is required"})
		return
	}
	room := ComplaintRoom(msg.ComplaintID)
	switch msg.Type {
	case "join_complaint":
		ctx, cancel := context.WithTimeout(context.Background(), accessTimeout)
		ok, err := c.hub.access.CanFollow(ctx, c.identity, msg.ComplaintID)
		cancel()
		if err != nil {
			c.hub.logger.Warn("complaint room access check failed", zap.String("complaint_id", msg.ComplaintID), zap.Error(err))
		}
		if !ok {
			c.reply("error", map[string]string{"message": "access denied", "complaint_id": msg.ComplaintID})
			return
		}
		if !c.join(room) {
			return
		}
		c.reply("joined_complaint", map[string]string{"complaint_id": msg.ComplaintID})
	case "leave_complaint":
		c.leave(room)
		c.reply("left_complaint", map[string]string{"complaint_id": msg.ComplaintID})
	default:
		c.reply("error", map[string]string{"message": "unknown message type"})
	}
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("realtime read failed", zap.String("user_id", c.identity.UserID), zap.Error(err))
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply("error", map[string]string{"message": "malformed message"})
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case evt := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
