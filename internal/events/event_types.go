package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-router/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventBacklogSwept        EventType = "backlog_swept"
	EventAvailabilityChanged EventType = "availability_changed"
)

// AssignmentSource tells which component claimed a ticket.
type AssignmentSource string

const (
	SourceDispatch AssignmentSource = "dispatch"
	SourceSweep    AssignmentSource = "sweep"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  *int64      `json:"ticket_id,omitempty"`
	ActorID   *int64      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh id.
func New(eventType EventType, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: at,
		Payload:   payload,
	}
}

// ForTicket sets the ticket the event refers to.
func (e Event) ForTicket(id int64) Event {
	e.TicketID = &id
	return e
}

// By sets the acting user.
func (e Event) By(userID int64) Event {
	e.ActorID = &userID
	return e
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Number   string                `json:"number"`
	Subject  string                `json:"subject"`
	Priority domain.TicketPriority `json:"priority"`
	Outcome  string                `json:"dispatch_outcome"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	EngineerID int64            `json:"engineer_id"`
	Source     AssignmentSource `json:"source"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// BacklogSweptPayload payload.
type BacklogSweptPayload struct {
	EngineerID int64   `json:"engineer_id"`
	TicketIDs  []int64 `json:"ticket_ids"`
	Skipped    []int64 `json:"skipped,omitempty"`
}

// AvailabilityChangedPayload payload.
type AvailabilityChangedPayload struct {
	EngineerID      int64 `json:"engineer_id"`
	Previous        bool  `json:"previous"`
	Available       bool  `json:"available"`
	ReassignedCount int   `json:"reassigned_count"`
}
