package service

import (
	"context"
	"errors"

	"github.com/spec-kit/ticket-router/internal/assignment"
	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/repository"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

// EngineerService exposes the directory query surface and availability
// toggles.
type EngineerService struct {
	users        repository.UserRepository
	accountant   *assignment.Accountant
	availability *assignment.AvailabilityHandler
}

// EngineerDependencies bundles collaborators for the engineer service.
type EngineerDependencies struct {
	UserRepo     repository.UserRepository
	Accountant   *assignment.Accountant
	Availability *assignment.AvailabilityHandler
}

// EngineerWorkload pairs an engineer with the live ticket count.
type EngineerWorkload struct {
	Engineer domain.User
	Workload int
}

// NewEngineerService constructs the service.
func NewEngineerService(deps EngineerDependencies) *EngineerService {
	return &EngineerService{
		users:        deps.UserRepo,
		accountant:   deps.Accountant,
		availability: deps.Availability,
	}
}

// ListAvailable returns the current assignment candidates, by id.
func (s *EngineerService) ListAvailable(ctx context.Context) ([]EngineerWorkload, error) {
	engineers, err := s.users.ListAvailableEngineers(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.withWorkloads(ctx, engineers)
}

// WorkloadReport returns every active engineer with their workload.
func (s *EngineerService) WorkloadReport(ctx context.Context) ([]EngineerWorkload, error) {
	engineers, err := s.users.ListEngineers(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.withWorkloads(ctx, engineers)
}

// SetOwnAvailability toggles the caller's flag.
func (s *EngineerService) SetOwnAvailability(ctx context.Context, actor *domain.User, available bool) (assignment.ToggleResult, error) {
	if actor.Role != domain.RoleEngineer {
		return assignment.ToggleResult{}, apperrors.NewForbidden("only engineers have availability")
	}
	return s.toggle(ctx, actor.ID, available)
}

// SetAvailability toggles another engineer's flag.
func (s *EngineerService) SetAvailability(ctx context.Context, actor *domain.User, engineerID int64, available bool) (assignment.ToggleResult, error) {
	if actor.ID != engineerID && !actor.Role.CanManageEngineers() {
		return assignment.ToggleResult{}, apperrors.NewForbidden("insufficient role")
	}
	return s.toggle(ctx, engineerID, available)
}

func (s *EngineerService) toggle(ctx context.Context, engineerID int64, available bool) (assignment.ToggleResult, error) {
	result, err := s.availability.SetAvailability(ctx, engineerID, available)
	if errors.Is(err, domain.ErrEngineerNotFound) {
		return result, apperrors.NewEngineerNotFound(engineerID)
	}
	if err != nil {
		return result, apperrors.MapError(err)
	}
	return result, nil
}

func (s *EngineerService) withWorkloads(ctx context.Context, engineers []domain.User) ([]EngineerWorkload, error) {
	ids := make([]int64, len(engineers))
	for i := range engineers {
		ids[i] = engineers[i].ID
	}
	workloads, err := s.accountant.Workloads(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	out := make([]EngineerWorkload, len(engineers))
	for i := range engineers {
		out[i] = EngineerWorkload{Engineer: engineers[i], Workload: workloads[engineers[i].ID]}
	}
	return out, nil
}
