package service

import (
	"context"
	"time"

	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/repository"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

// DashboardService aggregates ticket counts per role.
type DashboardService struct {
	tickets repository.TicketRepository
	now     func() time.Time
}

// Dashboard is the per-caller summary.
type Dashboard struct {
	Overview *OverviewCounts
	Mine     *RequesterCounts
	Engineer *EngineerCounts
}

// OverviewCounts cover every ticket.
type OverviewCounts struct {
	Open          int
	Assigned      int
	InProgress    int
	ResolvedToday int
	Total         int
}

// RequesterCounts cover tickets the caller created.
type RequesterCounts struct {
	Total    int
	Pending  int
	Resolved int
}

// EngineerCounts cover tickets assigned to the caller.
type EngineerCounts struct {
	Assigned        int
	PendingResponse int
	InProgress      int
	Available       bool
}

// NewDashboardService constructs the service.
func NewDashboardService(tickets repository.TicketRepository, now func() time.Time) *DashboardService {
	if now == nil {
		now = time.Now
	}
	return &DashboardService{tickets: tickets, now: now}
}

// Dashboard builds the summary for user.
func (s *DashboardService) Dashboard(ctx context.Context, user *domain.User) (Dashboard, error) {
	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var out Dashboard

	if user.Role.CanViewAllTickets() {
		stats, err := s.tickets.Stats(ctx, repository.TicketScope{}, startOfDay)
		if err != nil {
			return Dashboard{}, apperrors.MapError(err)
		}
		out.Overview = &OverviewCounts{
			Open:          stats.ByStatus[domain.TicketStatusOpen],
			Assigned:      stats.ByStatus[domain.TicketStatusAssigned],
			InProgress:    stats.ByStatus[domain.TicketStatusInProgress],
			ResolvedToday: stats.ResolvedSince,
			Total:         stats.Total,
		}
	}

	if user.Role == domain.RoleEngineer {
		stats, err := s.tickets.Stats(ctx, repository.TicketScope{AssignedToID: &user.ID}, startOfDay)
		if err != nil {
			return Dashboard{}, apperrors.MapError(err)
		}
		out.Engineer = &EngineerCounts{
			Assigned:        stats.Total - stats.ByStatus[domain.TicketStatusResolved] - stats.ByStatus[domain.TicketStatusClosed],
			PendingResponse: stats.ByStatus[domain.TicketStatusAssigned],
			InProgress:      stats.ByStatus[domain.TicketStatusInProgress],
			Available:       user.Available,
		}
	}

	stats, err := s.tickets.Stats(ctx, repository.TicketScope{CreatedByID: &user.ID}, startOfDay)
	if err != nil {
		return Dashboard{}, apperrors.MapError(err)
	}
	pending := 0
	for _, status := range domain.PendingStatuses {
		pending += stats.ByStatus[status]
	}
	out.Mine = &RequesterCounts{
		Total:    stats.Total,
		Pending:  pending,
		Resolved: stats.ByStatus[domain.TicketStatusResolved] + stats.ByStatus[domain.TicketStatusClosed],
	}
	return out, nil
}
