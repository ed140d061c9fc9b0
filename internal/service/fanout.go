package service

import (
	"fmt"

	"github.com/noah-isme/civic-complaints-api/internal/models"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   string
	Role models.UserRole
	Name string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// EventKind names a committed complaint change.
type EventKind string

const (
	EventFiled         EventKind = "filed"
	EventAssigned      EventKind = "assigned"
	EventStatusChanged EventKind = "status_changed"
	EventResolved      EventKind = "resolved"
	EventFeedback      EventKind = "feedback"
	EventChatMessage   EventKind = "chat_message"
)

// LifecycleEvent describes a committed change and everything its side effects
// need. Complaint is a snapshot taken after the write.
type LifecycleEvent struct {
	Kind      EventKind
	Complaint models.Complaint
	Actor     Actor
	// Status is the requested status of a status change.
	Status models.ComplaintStatus
	// StaffAssigned is set when an assignment named a staff member.
	StaffAssigned bool
	Message       *models.ChatMessage
	// DepartmentHeadID receives chat messages from the owner when no staff is assigned.
	DepartmentHeadID string
}

var statusMessages = map[models.ComplaintStatus]string{
	models.StatusReviewed:   "Your complaint has been reviewed",
	models.StatusAssigned:   "Your complaint has been assigned to a department",
	models.StatusInProgress: "Work on your complaint has started",
	models.StatusResolved:   "Your complaint has been resolved",
	models.StatusClosed:     "Your complaint has been closed",
}

// FanOut maps an event to the notifications it produces.
func FanOut(evt LifecycleEvent) []models.Notification {
	c := evt.Complaint
	complaintID := c.ID
	note := func(userID string, typ models.NotificationType, title, message string) models.Notification {
		return models.Notification{UserID: userID, Type: typ, Title: title, Message: message, ComplaintID: &complaintID}
	}

	var out []models.Notification
	switch evt.Kind {
	case EventFiled:
		out = append(out, note(c.UserID, models.NotificationComplaintFiled, "Complaint Filed Successfully",
			fmt.Sprintf("Your complaint \"%s\" has been filed and is under review.", c.Title)))
	case EventAssigned:
		if evt.StaffAssigned && c.AssignedStaffID != nil {
			out = append(out, note(*c.AssignedStaffID, models.NotificationComplaintAssigned, "New Complaint Assigned",
				fmt.Sprintf("You have been assigned to handle complaint: \"%s\"", c.Title)))
		}
		out = append(out, statusNote(c, models.StatusAssigned))
	case EventStatusChanged:
		out = append(out, statusNote(c, evt.Status))
	case EventResolved:
		out = append(out, statusNote(c, models.StatusResolved))
		out = append(out, note(c.UserID, models.NotificationFeedbackRequest, "Feedback Request",
			fmt.Sprintf("Please provide feedback for your resolved complaint: \"%s\"", c.Title)))
	case EventChatMessage:
		if recipient := chatRecipient(evt); recipient != "" {
			out = append(out, note(recipient, models.NotificationNewMessage, "New Message",
				fmt.Sprintf("You have a new message regarding complaint: \"%s\"", c.Title)))
		}
	}
	return out
}

func statusNote(c models.Complaint, status models.ComplaintStatus) models.Notification {
	template, ok := statusMessages[status]
	if !ok {
		template = "Status updated"
	}
	complaintID := c.ID
	return models.Notification{
		UserID:      c.UserID,
		Type:        models.NotificationStatusUpdated,
		Title:       "Complaint Status Updated",
		Message:     fmt.Sprintf("%s: \"%s\"", template, c.Title),
		ComplaintID: &complaintID,
	}
}

// chatRecipient picks the counterparty of a chat message. Citizens reach the
// assigned staff member, falling back to the department head.
func chatRecipient(evt LifecycleEvent) string {
	var recipient string
	if evt.Actor.Role == models.RoleUser {
		switch {
		case evt.Complaint.AssignedStaffID != nil && *evt.Complaint.AssignedStaffID != "":
			recipient = *evt.Complaint.AssignedStaffID
		case evt.DepartmentHeadID != "":
			recipient = evt.DepartmentHeadID
		}
	} else {
		recipient = evt.Complaint.UserID
	}
	if recipient == evt.Actor.ID {
		return ""
	}
	return recipient
}
