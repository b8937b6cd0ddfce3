package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventStaffCreated      EventType = "staff.created"
	EventStaffUpdated      EventType = "staff.updated"
	EventStaffDeleted      EventType = "staff.deleted"
	EventAssignmentAdded   EventType = "assignment.added"
	EventAssignmentUpdated EventType = "assignment.updated"
	EventAssignmentRemoved EventType = "assignment.removed"
)

// AllEventTypes lists every event the services publish.
var AllEventTypes = []EventType{
	EventStaffCreated,
	EventStaffUpdated,
	EventStaffDeleted,
	EventAssignmentAdded,
	EventAssignmentUpdated,
	EventAssignmentRemoved,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	StaffID   string      `json:"staffId"`
	ActorID   string      `json:"actorId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, staffID, actorID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		StaffID:   staffID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// StaffPayload accompanies staff lifecycle events.
type StaffPayload struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Status     string `json:"status"`
}

// StaffUpdatedPayload lists the attributes a replace changed.
type StaffUpdatedPayload struct {
	ChangedFields []string `json:"changedFields"`
}

// AssignmentPayload accompanies assignment events.
type AssignmentPayload struct {
	AssignmentID string `json:"assignmentId"`
	Title        string `json:"title,omitempty"`
	OldStatus    string `json:"oldStatus,omitempty"`
	NewStatus    string `json:"newStatus,omitempty"`
}
