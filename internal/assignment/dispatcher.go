package assignment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/events"
)

// Outcome describes what the Dispatcher did with a ticket.
type Outcome string

const (
	// OutcomeAssigned means the ticket now belongs to the chosen engineer.
	OutcomeAssigned Outcome = "ASSIGNED"
	// OutcomeNoEngineerAvailable means the ticket stays Open for a later sweep.
	OutcomeNoEngineerAvailable Outcome = "NO_ENGINEER_AVAILABLE"
	// OutcomeAlreadyAssigned means a concurrent sweep claimed the ticket first.
	OutcomeAlreadyAssigned Outcome = "ALREADY_ASSIGNED"
)

// Result reports a dispatch decision.
type Result struct {
	AssignedEngineerID *int64
	Status             domain.TicketStatus
	Outcome            Outcome
}

// Dispatcher assigns new tickets to the least loaded available engineer.
type Dispatcher struct {
	deps       Dependencies
	accountant *Accountant
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(deps Dependencies) *Dispatcher {
	deps = deps.withDefaults()
	return &Dispatcher{deps: deps, accountant: NewAccountant(deps.Tickets)}
}

// Assign routes ticket and updates it in place with the stored state.
// Having no candidate is a normal outcome, not an error.
func (d *Dispatcher) Assign(ctx context.Context, ticket *domain.Ticket) (Result, error) {
	candidates, err := d.deps.Users.ListAvailableEngineers(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("dispatch ticket %d: %w", ticket.ID, err)
	}
	ids := make([]int64, 0, len(candidates))
	for i := range candidates {
		if domain.IsAssignable(&candidates[i]) {
			ids = append(ids, candidates[i].ID)
		}
	}
	if len(ids) == 0 {
		d.deps.Logger.Info("no engineer available", zap.Int64("ticket_id", ticket.ID))
		return Result{Status: ticket.Status, Outcome: OutcomeNoEngineerAvailable}, nil
	}

	workloads, err := d.accountant.Workloads(ctx, ids)
	if err != nil {
		return Result{}, fmt.Errorf("dispatch ticket %d: %w", ticket.ID, err)
	}
	chosen := LeastLoaded(ids, workloads)

	updated, err := d.deps.Tickets.Assign(ctx, ticket.ID, chosen, d.deps.Now())
	if errors.Is(err, domain.ErrAssignmentConflict) {
		current, getErr := d.deps.Tickets.GetByID(ctx, ticket.ID)
		if getErr != nil {
			return Result{}, fmt.Errorf("dispatch ticket %d: %w", ticket.ID, getErr)
		}
		*ticket = *current
		d.deps.Logger.Info("ticket claimed concurrently",
			zap.Int64("ticket_id", ticket.ID),
			zap.Int64("wanted_engineer_id", chosen),
		)
		return Result{AssignedEngineerID: current.AssignedToID, Status: current.Status, Outcome: OutcomeAlreadyAssigned}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("dispatch ticket %d: %w", ticket.ID, err)
	}
	*ticket = *updated

	d.deps.Logger.Info("ticket dispatched",
		zap.Int64("ticket_id", ticket.ID),
		zap.Int64("engineer_id", chosen),
		zap.Int("workload", workloads[chosen]),
	)
	d.publish(ctx, events.New(events.EventTicketAssigned, ticket.UpdatedAt, events.TicketAssignedPayload{
		EngineerID: chosen,
		Source:     events.SourceDispatch,
	}).ForTicket(ticket.ID))

	id := chosen
	return Result{AssignedEngineerID: &id, Status: ticket.Status, Outcome: OutcomeAssigned}, nil
}

func (d *Dispatcher) publish(ctx context.Context, event events.Event) {
	if err := d.deps.Events.Publish(ctx, event); err != nil {
		d.deps.Logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

// LeastLoaded returns the id with the smallest workload, breaking ties by
// the smallest id. ids must not be empty.
func LeastLoaded(ids []int64, workloads map[int64]int) int64 {
	best := ids[0]
	for _, id := range ids[1:] {
		w, bw := workloads[id], workloads[best]
		if w < bw || (w == bw && id < best) {
			best = id
		}
	}
	return best
}
