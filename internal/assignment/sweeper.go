package assignment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/events"
	"github.com/spec-kit/ticket-router/internal/repository"
)

// SweepResult lists what a sweep claimed.
type SweepResult struct {
	EngineerID int64
	// Assigned holds the claimed ticket ids, oldest ticket first.
	Assigned []int64
	// Skipped holds backlog tickets another writer changed between the
	// backlog read and the batch write.
	Skipped []int64
}

// Count returns the number of reassigned tickets.
func (r SweepResult) Count() int { return len(r.Assigned) }

// Sweeper assigns the backlog to an engineer who became available.
type Sweeper struct {
	deps Dependencies
}

// NewSweeper constructs a Sweeper.
func NewSweeper(deps Dependencies) *Sweeper {
	return &Sweeper{deps: deps.withDefaults()}
}

// Sweep hands every backlog ticket to engineerID in one batch. It is a no-op
// when the engineer is unknown or not assignable. Sweeps are serialized
// through the sweep lock.
func (s *Sweeper) Sweep(ctx context.Context, engineerID int64) (SweepResult, error) {
	result := SweepResult{EngineerID: engineerID}

	held, err := s.deps.Locker.Lock(ctx, s.deps.SweepLock)
	if err != nil {
		return result, fmt.Errorf("sweep for engineer %d: %w", engineerID, err)
	}
	defer func() {
		if err := held.Unlock(context.WithoutCancel(ctx)); err != nil {
			s.deps.Logger.Warn("release sweep lock", zap.Error(err))
		}
	}()

	engineer, err := s.deps.Users.GetByID(ctx, engineerID)
	if errors.Is(err, domain.ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("sweep for engineer %d: %w", engineerID, err)
	}
	if !domain.IsAssignable(engineer) {
		s.deps.Logger.Debug("sweep skipped, engineer not assignable", zap.Int64("engineer_id", engineerID))
		return result, nil
	}

	backlog, err := s.deps.Tickets.List(ctx, repository.TicketFilter{
		Backlog: true,
		Order:   repository.OrderOldestFirst,
	})
	if err != nil {
		return result, fmt.Errorf("sweep for engineer %d: %w", engineerID, err)
	}
	if len(backlog) == 0 {
		return result, nil
	}
	ids := make([]int64, len(backlog))
	for i := range backlog {
		ids[i] = backlog[i].ID
	}

	now := s.deps.Now()
	batch, err := s.deps.Tickets.AssignBatch(ctx, ids, engineerID, now)
	if err != nil {
		return result, fmt.Errorf("sweep for engineer %d: %w", engineerID, err)
	}
	result.Assigned = batch.Assigned
	result.Skipped = batch.Skipped

	if len(result.Skipped) > 0 {
		s.deps.Logger.Info("sweep skipped tickets claimed concurrently",
			zap.Int64("engineer_id", engineerID),
			zap.Int64s("ticket_ids", result.Skipped),
		)
	}
	s.deps.Logger.Info("backlog swept",
		zap.Int64("engineer_id", engineerID),
		zap.Int("reassigned", result.Count()),
	)

	for _, id := range result.Assigned {
		s.publish(ctx, events.New(events.EventTicketAssigned, now, events.TicketAssignedPayload{
			EngineerID: engineerID,
			Source:     events.SourceSweep,
		}).ForTicket(id))
	}
	s.publish(ctx, events.New(events.EventBacklogSwept, now, events.BacklogSweptPayload{
		EngineerID: engineerID,
		TicketIDs:  result.Assigned,
		Skipped:    result.Skipped,
	}))
	return result, nil
}

func (s *Sweeper) publish(ctx context.Context, event events.Event) {
	if err := s.deps.Events.Publish(ctx, event); err != nil {
		s.deps.Logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
