// Package realtime fans complaint lifecycle events out to websocket
// connections grouped into rooms.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/noah-isme/civic-complaints-api/internal/models"
)

// Event is the wire frame pushed to clients.
type Event struct {
	Name string          `json:"event"`
	Room string          `json:"room,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
	At   time.Time       `json:"at"`
}

// NewEvent marshals data into an event frame.
func NewEvent(name string, data any) (Event, error) {
	evt := Event{Name: name, At: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s event: %w", name, err)
		}
		evt.Data = raw
	}
	return evt, nil
}

// UserRoom addresses every connection of one user.
func UserRoom(userID string) string { return "user:" + userID }

// RoleRoom addresses every connection of a role.
func RoleRoom(role models.UserRole) string { return "role:" + string(role) }

// ComplaintRoom addresses connections following one complaint.
func ComplaintRoom(complaintID string) string { return "complaint:" + complaintID }
