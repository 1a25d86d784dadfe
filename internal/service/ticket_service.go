package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/assignment"
	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/events"
	"github.com/spec-kit/ticket-router/internal/repository"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	dispatcher *assignment.Dispatcher
	events     events.Bus
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher *assignment.Dispatcher
	Events     events.Bus
	Logger     *zap.Logger
	Now        func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description string
	Priority    domain.TicketPriority
	Department  *string
	Category    *string
}

// TicketCreateResult pairs the stored ticket with the dispatch decision.
type TicketCreateResult struct {
	Ticket   *domain.Ticket
	Dispatch assignment.Result
}

// TicketListInput describes listing filters.
type TicketListInput struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	AssigneeID *int64
	Backlog    bool
	Limit      int
	Offset     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Events == nil {
		deps.Events = events.Discard
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		events:     deps.Events,
		logger:     deps.Logger,
		now:        deps.Now,
	}
}

// CreateTicket stores an Open ticket for creator and dispatches it. A
// dispatch failure is returned after the ticket is stored; the ticket stays
// in the backlog for the next sweep.
func (s *TicketService) CreateTicket(ctx context.Context, creator *domain.User, input TicketCreateInput) (TicketCreateResult, error) {
	ticket := &domain.Ticket{
		Subject:     strings.TrimSpace(input.Subject),
		Description: strings.TrimSpace(input.Description),
		Priority:    input.Priority,
		Department:  trimOptional(input.Department),
		Category:    trimOptional(input.Category),
		Status:      domain.TicketStatusOpen,
		CreatedByID: creator.ID,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if ticket.Subject == "" {
		return TicketCreateResult{}, apperrors.NewValidationError("subject is required", map[string]any{"field": "subject"})
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return TicketCreateResult{}, apperrors.MapError(err)
	}

	dispatch, err := s.dispatcher.Assign(ctx, ticket)
	if err != nil {
		s.logger.Error("dispatch failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		return TicketCreateResult{Ticket: ticket}, apperrors.MapError(err)
	}

	s.publish(ctx, events.New(events.EventTicketCreated, ticket.CreatedAt, events.TicketCreatedPayload{
		Number:   ticket.Number(),
		Subject:  ticket.Subject,
		Priority: ticket.Priority,
		Outcome:  string(dispatch.Outcome),
	}).ForTicket(ticket.ID).By(creator.ID))

	return TicketCreateResult{Ticket: ticket, Dispatch: dispatch}, nil
}

// ListMine lists tickets created by user, newest first.
func (s *TicketService) ListMine(ctx context.Context, user *domain.User, input TicketListInput) ([]domain.Ticket, error) {
	filter := listFilter(input)
	filter.CreatedByID = &user.ID
	filter.AssignedToID = nil
	filter.Backlog = false
	return s.list(ctx, filter)
}

// ListAssigned lists tickets assigned to engineer, newest first.
func (s *TicketService) ListAssigned(ctx context.Context, engineer *domain.User, input TicketListInput) ([]domain.Ticket, error) {
	filter := listFilter(input)
	filter.AssignedToID = &engineer.ID
	filter.Backlog = false
	return s.list(ctx, filter)
}

// ListAll lists every ticket for oversight roles. Backlog listings are
// oldest first, matching the order a sweep would claim them in.
func (s *TicketService) ListAll(ctx context.Context, actor *domain.User, input TicketListInput) ([]domain.Ticket, error) {
	if !actor.Role.CanViewAllTickets() {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	filter := listFilter(input)
	if filter.Backlog {
		filter.Order = repository.OrderOldestFirst
	}
	return s.list(ctx, filter)
}

// GetTicket loads a ticket the actor may see.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	if !canView(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// ChangeStatus moves a ticket through the workflow. Only the assignee and
// oversight roles may do so, except that the creator may close a resolved
// ticket.
func (s *TicketService) ChangeStatus(ctx context.Context, actor *domain.User, id int64, to domain.TicketStatus) (*domain.Ticket, error) {
	ticket, err := s.GetTicket(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !canChangeStatus(actor, ticket, to) {
		return nil, apperrors.NewForbidden("not allowed to change status")
	}
	from := ticket.Status
	if !domain.CanTransition(from, to) {
		return nil, apperrors.NewValidationError("invalid status transition", map[string]any{
			"from": from,
			"to":   to,
		})
	}

	updated, err := s.tickets.UpdateStatus(ctx, id, from, to, s.now())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.New(events.EventTicketStatusChanged, updated.UpdatedAt, events.TicketStatusChangedPayload{
		OldStatus: from,
		NewStatus: to,
	}).ForTicket(id).By(actor.ID))
	return updated, nil
}

func (s *TicketService) list(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

func listFilter(input TicketListInput) repository.TicketFilter {
	return repository.TicketFilter{
		AssignedToID: input.AssigneeID,
		Statuses:     input.Statuses,
		Priorities:   input.Priorities,
		Backlog:      input.Backlog,
		Order:        repository.OrderNewestFirst,
		Limit:        input.Limit,
		Offset:       input.Offset,
	}
}

func canView(actor *domain.User, ticket *domain.Ticket) bool {
	return actor.Role.CanViewAllTickets() || ticket.CreatedByID == actor.ID || ticket.IsAssignedTo(actor.ID)
}

func canChangeStatus(actor *domain.User, ticket *domain.Ticket, to domain.TicketStatus) bool {
	if actor.Role.CanViewAllTickets() || ticket.IsAssignedTo(actor.ID) {
		return true
	}
	return ticket.CreatedByID == actor.ID && ticket.Status == domain.TicketStatusResolved && to == domain.TicketStatusClosed
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
