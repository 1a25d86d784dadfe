package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusAssigned   TicketStatus = "ASSIGNED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TerminalStatuses freeze assignment permanently.
var TerminalStatuses = []TicketStatus{TicketStatusResolved, TicketStatusClosed}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// IsTerminal reports whether the status is Resolved or Closed.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// Ticket is the aggregate for support requests.
//
// AssignedToID is set exactly when Status is not Open.
type Ticket struct {
	ID           int64
	Subject      string
	Description  string
	Priority     TicketPriority
	Department   *string
	Category     *string
	Status       TicketStatus
	CreatedByID  int64
	AssignedToID *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ResolvedAt   *time.Time
}

// Number renders the human facing ticket number, e.g. TK-0042.
func (t *Ticket) Number() string {
	return fmt.Sprintf("TK-%04d", t.ID)
}

// Consistent reports whether the assignee/status pairing holds.
func (t *Ticket) Consistent() bool {
	if t.Status == TicketStatusOpen {
		return t.AssignedToID == nil
	}
	return t.AssignedToID != nil
}

// IsAssignedTo reports whether the ticket is owned by the given user.
func (t *Ticket) IsAssignedTo(userID int64) bool {
	return t.AssignedToID != nil && *t.AssignedToID == userID
}

// InBacklog reports whether the ticket needs (re)assignment. owner is the
// directory record of the current assignee, or nil when unassigned or
// unknown.
func InBacklog(t *Ticket, owner *User) bool {
	if t.Status.IsTerminal() {
		return false
	}
	if t.AssignedToID == nil {
		return true
	}
	return !IsAssignable(owner)
}

var statusTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusAssigned:   {TicketStatusInProgress, TicketStatusResolved},
	TicketStatusInProgress: {TicketStatusResolved},
	TicketStatusResolved:   {TicketStatusClosed},
}

// CanTransition reports whether the workflow allows from -> to. Open is left
// only through assignment, never through the workflow, and a resolved ticket
// can only be closed.
func CanTransition(from, to TicketStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PendingStatuses are the states that still wait on an engineer.
var PendingStatuses = []TicketStatus{TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress}
