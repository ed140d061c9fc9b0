package realtime

import "github.com/noah-isme/civic-complaints-api/internal/models"

// Kind identifies what happened.
type Kind string

const (
	KindCreated       Kind = "created"
	KindStatusUpdated Kind = "status_updated"
	KindAssigned      Kind = "assigned"
	KindResolved      Kind = "resolved"
	KindChatMessage   Kind = "chat_message"
	KindNotification  Kind = "notification"
)

// Trigger carries the identities an emission table needs.
type Trigger struct {
	Kind        Kind
	ComplaintID string
	OwnerID     string
	StaffID     string
	TargetID    string
}

// Emission is one (room, event name) pair.
type Emission struct {
	Room  string
	Event string
}

// EmissionsFor maps a trigger to the rooms and event names it is broadcast to.
// Rooms whose identity is unknown are skipped.
func EmissionsFor(t Trigger) []Emission {
	var out []Emission
	add := func(id, room, event string) {
		if id != "" {
			out = append(out, Emission{Room: room, Event: event})
		}
	}
	admins := RoleRoom(models.RoleAdmin)

	switch t.Kind {
	case KindCreated:
		add("admin", admins, "new_complaint")
		add(t.OwnerID, UserRoom(t.OwnerID), "complaint_filed")
	case KindStatusUpdated:
		add(t.ComplaintID, ComplaintRoom(t.ComplaintID), "status_update")
		add(t.OwnerID, UserRoom(t.OwnerID), "complaint_status_updated")
		add(t.StaffID, UserRoom(t.StaffID), "assigned_complaint_updated")
	case KindAssigned:
		add(t.StaffID, UserRoom(t.StaffID), "new_assignment")
		add(t.OwnerID, UserRoom(t.OwnerID), "complaint_assigned")
		add("admin", admins, "complaint_assigned")
	case KindResolved:
		add(t.OwnerID, UserRoom(t.OwnerID), "complaint_resolved")
		add(t.ComplaintID, ComplaintRoom(t.ComplaintID), "status_update")
		add("admin", admins, "complaint_resolved")
	case KindChatMessage:
		add(t.ComplaintID, ComplaintRoom(t.ComplaintID), "new_message")
	case KindNotification:
		add(t.TargetID, UserRoom(t.TargetID), "notification_received")
	}
	return out
}
