package assignment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/events"
)

// ToggleResult reports an availability change.
type ToggleResult struct {
	EngineerID int64
	Previous   bool
	Available  bool
	// Swept is true when the change triggered a backlog sweep.
	Swept           bool
	ReassignedCount int
	Sweep           SweepResult
}

// AvailabilityHandler flips the directory flag and sweeps on the false to
// true edge.
type AvailabilityHandler struct {
	deps    Dependencies
	sweeper *Sweeper
}

// NewAvailabilityHandler constructs a handler; sweeper may be shared with
// other callers.
func NewAvailabilityHandler(deps Dependencies, sweeper *Sweeper) *AvailabilityHandler {
	deps = deps.withDefaults()
	if sweeper == nil {
		sweeper = NewSweeper(deps)
	}
	return &AvailabilityHandler{deps: deps, sweeper: sweeper}
}

// SetAvailability stores the flag for an engineer. Going unavailable has no
// retroactive effect: owned tickets stay assigned until a later sweep takes
// them. If the sweep on the false to true edge fails, the flag is restored.
func (h *AvailabilityHandler) SetAvailability(ctx context.Context, engineerID int64, available bool) (ToggleResult, error) {
	result := ToggleResult{EngineerID: engineerID, Available: available}

	user, err := h.deps.Users.GetByID(ctx, engineerID)
	if err != nil {
		return result, h.lookupError(engineerID, err)
	}
	if user.Role != domain.RoleEngineer {
		return result, fmt.Errorf("set availability for %d: role %s: %w", engineerID, user.Role, domain.ErrEngineerNotFound)
	}
	previous, err := h.deps.Users.SetAvailability(ctx, engineerID, available)
	if err != nil {
		return result, h.lookupError(engineerID, err)
	}
	result.Previous = previous

	h.deps.Logger.Info("availability changed",
		zap.Int64("engineer_id", engineerID),
		zap.Bool("previous", previous),
		zap.Bool("available", available),
	)

	if !previous && available {
		sweep, err := h.sweeper.Sweep(ctx, engineerID)
		if err != nil {
			h.restore(ctx, engineerID, previous)
			return result, err
		}
		result.Swept = true
		result.Sweep = sweep
		result.ReassignedCount = sweep.Count()
	}

	if previous != available {
		event := events.New(events.EventAvailabilityChanged, h.deps.Now(), events.AvailabilityChangedPayload{
			EngineerID:      engineerID,
			Previous:        previous,
			Available:       available,
			ReassignedCount: result.ReassignedCount,
		}).By(engineerID)
		if err := h.deps.Events.Publish(ctx, event); err != nil {
			h.deps.Logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
		}
	}
	return result, nil
}

// restore puts back the flag a failed sweep was triggered by, so a retried
// toggle is again a false to true edge.
func (h *AvailabilityHandler) restore(ctx context.Context, engineerID int64, previous bool) {
	if _, err := h.deps.Users.SetAvailability(context.WithoutCancel(ctx), engineerID, previous); err != nil {
		h.deps.Logger.Error("restore availability after failed sweep",
			zap.Int64("engineer_id", engineerID), zap.Error(err))
	}
}

func (h *AvailabilityHandler) lookupError(engineerID int64, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("set availability for %d: %w", engineerID, domain.ErrEngineerNotFound)
	}
	return fmt.Errorf("set availability for %d: %w", engineerID, err)
}
