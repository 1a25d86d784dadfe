package dto

import (
	"time"

	"github.com/spec-kit/ticket-router/internal/domain"
)

// Page size bounds for list endpoints.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string                `json:"subject" validate:"required,max=255"`
	Description string                `json:"description" validate:"max=10000"`
	Priority    domain.TicketPriority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	Department  *string               `json:"department" validate:"omitempty,max=100"`
	Category    *string               `json:"category" validate:"omitempty,max=100"`
}

// UpdateStatusRequest payload for PATCH /tickets/:id/status.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status" validate:"required,oneof=OPEN ASSIGNED IN_PROGRESS RESOLVED CLOSED"`
}

// TicketListQuery captures query filters for list endpoints.
type TicketListQuery struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	AssigneeID *int64
	Backlog    bool
	Page       int `validate:"min=1"`
	PageSize   int `validate:"min=1,max=200"`
}

// TicketResponse is the wire shape of a ticket.
type TicketResponse struct {
	ID           int64                 `json:"id"`
	Number       string                `json:"number"`
	Subject      string                `json:"subject"`
	Description  string                `json:"description"`
	Priority     domain.TicketPriority `json:"priority"`
	Department   *string               `json:"department"`
	Category     *string               `json:"category"`
	Status       domain.TicketStatus   `json:"status"`
	CreatedByID  int64                 `json:"created_by_id"`
	AssignedToID *int64                `json:"assigned_to_id"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	ResolvedAt   *time.Time            `json:"resolved_at"`
}

// DispatchResponse reports the routing decision made at creation.
type DispatchResponse struct {
	Outcome            string              `json:"outcome"`
	AssignedEngineerID *int64              `json:"assigned_engineer_id"`
	Status             domain.TicketStatus `json:"status"`
}

// CreateTicketResponse pairs the ticket with its dispatch.
type CreateTicketResponse struct {
	Ticket   TicketResponse   `json:"ticket"`
	Dispatch DispatchResponse `json:"dispatch"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:           t.ID,
		Number:       t.Number(),
		Subject:      t.Subject,
		Description:  t.Description,
		Priority:     t.Priority,
		Department:   t.Department,
		Category:     t.Category,
		Status:       t.Status,
		CreatedByID:  t.CreatedByID,
		AssignedToID: t.AssignedToID,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		ResolvedAt:   t.ResolvedAt,
	}
}

// NewTicketList maps a slice of tickets, never returning nil.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}
