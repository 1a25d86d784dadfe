package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/ticket-router/internal/assignment"
	"github.com/spec-kit/ticket-router/internal/auth"
	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/events"
	"github.com/spec-kit/ticket-router/internal/observability"
	"github.com/spec-kit/ticket-router/internal/repository"
	"github.com/spec-kit/ticket-router/internal/repository/memory"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

type suite struct {
	store      *memory.Store
	bus        events.Bus
	tickets    *TicketService
	users      *UserService
	engineers  *EngineerService
	auth       *AuthService
	dashboards *DashboardService
}

func newSuite(t *testing.T) *suite {
	t.Helper()
	at := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	now := func() time.Time {
		at = at.Add(time.Second)
		return at
	}
	store := memory.NewStore(memory.WithClock(now))
	bus := events.NewInMemoryBus()
	deps := assignment.Dependencies{Users: store.Users(), Tickets: store.Tickets(), Events: bus, Now: now}
	sweeper := assignment.NewSweeper(deps)
	availability := assignment.NewAvailabilityHandler(deps, sweeper)

	return &suite{
		store: store,
		bus:   bus,
		tickets: NewTicketService(TicketDependencies{
			TicketRepo: store.Tickets(),
			Dispatcher: assignment.NewDispatcher(deps),
			Events:     bus,
			Now:        now,
		}),
		users: NewUserService(UserDependencies{UserRepo: store.Users(), Sweeper: sweeper, BcryptCost: bcrypt.MinCost}),
		engineers: NewEngineerService(EngineerDependencies{
			UserRepo:     store.Users(),
			Accountant:   assignment.NewAccountant(store.Tickets()),
			Availability: availability,
		}),
		auth: NewAuthService(AuthDependencies{
			UserRepo:           store.Users(),
			Tokens:             auth.NewTokenManager("test-secret", time.Hour),
			Availability:       availability,
			EngineerLoginSweep: true,
			Now:                now,
		}),
		dashboards: NewDashboardService(store.Tickets(), now),
	}
}

func (s *suite) user(t *testing.T, email string, role domain.Role, available bool) *domain.User {
	t.Helper()
	res, err := s.users.CreateUser(context.Background(), CreateUserInput{
		Email: email, FirstName: "Test", Password: "secret-pass", Role: role, Available: available,
	})
	require.NoError(t, err)
	return res.User
}

func TestCreateTicketDispatchesToLeastLoaded(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	requester := s.user(t, "req@example.com", domain.RoleUser, false)
	e1 := s.user(t, "e1@example.com", domain.RoleEngineer, true)
	e2 := s.user(t, "e2@example.com", domain.RoleEngineer, true)

	first, err := s.tickets.CreateTicket(ctx, requester, TicketCreateInput{Subject: "  vpn down "})
	require.NoError(t, err)
	assert.Equal(t, "vpn down", first.Ticket.Subject)
	assert.Equal(t, domain.TicketPriorityMedium, first.Ticket.Priority)
	assert.Equal(t, assignment.OutcomeAssigned, first.Dispatch.Outcome)
	require.NotNil(t, first.Ticket.AssignedToID)
	assert.Equal(t, e1.ID, *first.Ticket.AssignedToID)

	second, err := s.tickets.CreateTicket(ctx, requester, TicketCreateInput{Subject: "mail bounce"})
	require.NoError(t, err)
	require.NotNil(t, second.Ticket.AssignedToID)
	assert.Equal(t, e2.ID, *second.Ticket.AssignedToID)
}

func TestCreateTicketWithoutEngineersStaysOpen(t *testing.T) {
	s := newSuite(t)
	requester := s.user(t, "req@example.com", domain.RoleUser, false)

	res, err := s.tickets.CreateTicket(context.Background(), requester, TicketCreateInput{Subject: "badge"})
	require.NoError(t, err)
	assert.Equal(t, assignment.OutcomeNoEngineerAvailable, res.Dispatch.Outcome)
	assert.Equal(t, domain.TicketStatusOpen, res.Ticket.Status)
	assert.Nil(t, res.Ticket.AssignedToID)
}

func TestCreateTicketRequiresSubject(t *testing.T) {
	s := newSuite(t)
	requester := s.user(t, "req@example.com", domain.RoleUser, false)

	_, err := s.tickets.CreateTicket(context.Background(), requester, TicketCreateInput{Subject: "   "})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestCreatingAvailableEngineerSweepsBacklog(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	requester := s.user(t, "req@example.com", domain.RoleUser, false)
	for _, subject := range []string{"a", "b"} {
		_, err := s.tickets.CreateTicket(ctx, requester, TicketCreateInput{Subject: subject})
		require.NoError(t, err)
	}

	res, err := s.users.CreateUser(ctx, CreateUserInput{
		Email: "new@example.com", Password: "pw", Role: domain.RoleEngineer, Available: true,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Sweep)
	assert.Equal(t, 2, res.Sweep.Count())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newSuite(t)
	s.user(t, "dup@example.com", domain.RoleUser, false)

	_, err := s.users.CreateUser(context.Background(), CreateUserInput{Email: "DUP@example.com", Password: "x", Role: domain.RoleUser})
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
}

func TestEngineerLoginMarksAvailableAndSweeps(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	requester := s.user(t, "req@example.com", domain.RoleUser, false)
	eng := s.user(t, "eng@example.com", domain.RoleEngineer, false)
	_, err := s.tickets.CreateTicket(ctx, requester, TicketCreateInput{Subject: "queued"})
	require.NoError(t, err)

	res, err := s.auth.Login(ctx, "ENG@example.com", "secret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	require.NotNil(t, res.Availability)
	assert.True(t, res.Availability.Swept)
	assert.Equal(t, 1, res.Availability.ReassignedCount)

	stored, err := s.store.Users().GetByID(ctx, eng.ID)
	require.NoError(t, err)
	assert.True(t, stored.Available)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := newSuite(t)
	s.user(t, "req@example.com", domain.RoleUser, false)

	_, err := s.auth.Login(context.Background(), "req@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperrors.ToDomainError(err).Code)

	_, err = s.auth.Login(context.Background(), "nobody@example.com", "wrong")
	assert.Equal(t, "UNAUTHORIZED", apperrors.ToDomainError(err).Code)
}

func TestChangeStatusPermissions(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	requester := s.user(t, "req@example.com", domain.RoleUser, false)
	eng := s.user(t, "eng@example.com", domain.RoleEngineer, true)
	res, err := s.tickets.CreateTicket(ctx, requester, TicketCreateInput{Subject: "laptop"})
	require.NoError(t, err)
	id := res.Ticket.ID

	_, err = s.tickets.ChangeStatus(ctx, requester, id, domain.TicketStatusResolved)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)

	_, err = s.tickets.ChangeStatus(ctx, eng, id, domain.TicketStatusClosed)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	resolved, err := s.tickets.ChangeStatus(ctx, eng, id, domain.TicketStatusResolved)
	require.NoError(t, err)
	assert.NotNil(t, resolved.ResolvedAt)

	closed, err := s.tickets.ChangeStatus(ctx, requester, id, domain.TicketStatusClosed)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
}

func TestGetTicketHidesOthersTickets(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	owner := s.user(t, "a@example.com", domain.RoleUser, false)
	other := s.user(t, "b@example.com", domain.RoleUser, false)
	support := s.user(t, "s@example.com", domain.RoleSupport, false)
	res, err := s.tickets.CreateTicket(ctx, owner, TicketCreateInput{Subject: "private"})
	require.NoError(t, err)

	_, err = s.tickets.GetTicket(ctx, other, res.Ticket.ID)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)
	_, err = s.tickets.GetTicket(ctx, support, res.Ticket.ID)
	assert.NoError(t, err)
	_, err = s.tickets.GetTicket(ctx, support, 999)
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func TestListAllBacklogOldestFirst(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	requester := s.user(t, "req@example.com", domain.RoleUser, false)
	manager := s.user(t, "m@example.com", domain.RoleManager, false)
	var ids []int64
	for _, subject := range []string{"one", "two", "three"} {
		res, err := s.tickets.CreateTicket(ctx, requester, TicketCreateInput{Subject: subject})
		require.NoError(t, err)
		ids = append(ids, res.Ticket.ID)
	}

	backlog, err := s.tickets.ListAll(ctx, manager, TicketListInput{Backlog: true})
	require.NoError(t, err)
	got := make([]int64, len(backlog))
	for i := range backlog {
		got[i] = backlog[i].ID
	}
	assert.Equal(t, ids, got)

	_, err = s.tickets.ListAll(ctx, requester, TicketListInput{})
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)
}

func TestEngineerAvailabilityPermissions(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	e1 := s.user(t, "e1@example.com", domain.RoleEngineer, false)
	e2 := s.user(t, "e2@example.com", domain.RoleEngineer, false)
	manager := s.user(t, "m@example.com", domain.RoleManager, false)

	_, err := s.engineers.SetAvailability(ctx, e1, e2.ID, true)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)

	res, err := s.engineers.SetAvailability(ctx, manager, e2.ID, true)
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.False(t, res.Previous)

	_, err = s.engineers.SetAvailability(ctx, manager, 999, true)
	assert.Equal(t, "ENGINEER_NOT_FOUND", apperrors.ToDomainError(err).Code)

	_, err = s.engineers.SetOwnAvailability(ctx, manager, true)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)
}

func TestWorkloadReportCountsLiveTickets(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	requester := s.user(t, "req@example.com", domain.RoleUser, false)
	e1 := s.user(t, "e1@example.com", domain.RoleEngineer, true)
	e2 := s.user(t, "e2@example.com", domain.RoleEngineer, false)
	for _, subject := range []string{"a", "b"} {
		_, err := s.tickets.CreateTicket(ctx, requester, TicketCreateInput{Subject: subject})
		require.NoError(t, err)
	}

	report, err := s.engineers.WorkloadReport(ctx)
	require.NoError(t, err)
	require.Len(t, report, 2)
	assert.Equal(t, e1.ID, report[0].Engineer.ID)
	assert.Equal(t, 2, report[0].Workload)
	assert.Equal(t, e2.ID, report[1].Engineer.ID)
	assert.Equal(t, 0, report[1].Workload)

	available, err := s.engineers.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, e1.ID, available[0].Engineer.ID)
}

func TestDashboardCounts(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	requester := s.user(t, "req@example.com", domain.RoleUser, false)
	eng := s.user(t, "eng@example.com", domain.RoleEngineer, true)
	admin := s.user(t, "admin@example.com", domain.RoleAdmin, false)

	first, err := s.tickets.CreateTicket(ctx, requester, TicketCreateInput{Subject: "a"})
	require.NoError(t, err)
	_, err = s.tickets.CreateTicket(ctx, requester, TicketCreateInput{Subject: "b"})
	require.NoError(t, err)
	_, err = s.tickets.ChangeStatus(ctx, eng, first.Ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)

	mine, err := s.dashboards.Dashboard(ctx, requester)
	require.NoError(t, err)
	assert.Nil(t, mine.Overview)
	assert.Equal(t, RequesterCounts{Total: 2, Pending: 1, Resolved: 1}, *mine.Mine)

	engView, err := s.dashboards.Dashboard(ctx, eng)
	require.NoError(t, err)
	require.NotNil(t, engView.Engineer)
	assert.Equal(t, 1, engView.Engineer.Assigned)
	assert.Equal(t, 1, engView.Engineer.PendingResponse)
	assert.True(t, engView.Engineer.Available)

	overview, err := s.dashboards.Dashboard(ctx, admin)
	require.NoError(t, err)
	require.NotNil(t, overview.Overview)
	assert.Equal(t, 1, overview.Overview.Assigned)
	assert.Equal(t, 1, overview.Overview.ResolvedToday)
	assert.Equal(t, 2, overview.Overview.Total)
}

func TestBootstrapAdminIsIdempotent(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	require.NoError(t, s.users.EnsureBootstrapAdmin(ctx, "root@example.com", "pw"))
	require.NoError(t, s.users.EnsureBootstrapAdmin(ctx, "root@example.com", "pw"))
	require.NoError(t, s.users.EnsureBootstrapAdmin(ctx, "", ""))

	admin, err := s.store.Users().GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
}

func TestActivityServiceRecordsEvents(t *testing.T) {
	s := newSuite(t)
	metrics := observability.NewMetrics()
	NewActivityService(s.bus, nil, metrics).RegisterHandlers()
	ctx := context.Background()
	requester := s.user(t, "req@example.com", domain.RoleUser, false)

	_, err := s.tickets.CreateTicket(ctx, requester, TicketCreateInput{Subject: "queued"})
	require.NoError(t, err)
	s.user(t, "eng@example.com", domain.RoleEngineer, true)
	_, err = s.tickets.CreateTicket(ctx, requester, TicketCreateInput{Subject: "routed"})
	require.NoError(t, err)

	expected := `
# HELP ticket_assignments_total Tickets assigned to an engineer, by the component that claimed them.
# TYPE ticket_assignments_total counter
ticket_assignments_total{source="dispatch"} 1
ticket_assignments_total{source="sweep"} 1
# HELP ticket_dispatch_outcomes_total Dispatch decisions at ticket creation, by outcome.
# TYPE ticket_dispatch_outcomes_total counter
ticket_dispatch_outcomes_total{outcome="ASSIGNED"} 1
ticket_dispatch_outcomes_total{outcome="NO_ENGINEER_AVAILABLE"} 1
`
	require.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected),
		"ticket_assignments_total", "ticket_dispatch_outcomes_total"))
}

func TestResolvedTicketCannotBeReopened(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	requester := s.user(t, "req@example.com", domain.RoleUser, false)
	e1 := s.user(t, "e1@example.com", domain.RoleEngineer, true)
	admin := s.user(t, "admin@example.com", domain.RoleAdmin, false)
	res, err := s.tickets.CreateTicket(ctx, requester, TicketCreateInput{Subject: "printer"})
	require.NoError(t, err)
	_, err = s.tickets.ChangeStatus(ctx, e1, res.Ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	_, err = s.engineers.SetAvailability(ctx, admin, e1.ID, false)
	require.NoError(t, err)

	for _, actor := range []*domain.User{admin, e1} {
		_, err = s.tickets.ChangeStatus(ctx, actor, res.Ticket.ID, domain.TicketStatusInProgress)
		assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
	}

	e2 := s.user(t, "e2@example.com", domain.RoleEngineer, true)
	stored, err := s.tickets.GetTicket(ctx, admin, res.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, stored.Status)
	assert.True(t, stored.IsAssignedTo(e1.ID))
	assert.False(t, stored.IsAssignedTo(e2.ID))
}

// staleTickets moves the ticket on after handing out its current state, as a
// concurrent writer would.
type staleTickets struct {
	repository.TicketRepository
	after func()
}

func (r *staleTickets) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := r.TicketRepository.GetByID(ctx, id)
	if r.after != nil {
		r.after()
		r.after = nil
	}
	return ticket, err
}

func TestChangeStatusLosingRaceReportsConflict(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	requester := s.user(t, "req@example.com", domain.RoleUser, false)
	eng := s.user(t, "eng@example.com", domain.RoleEngineer, true)
	res, err := s.tickets.CreateTicket(ctx, requester, TicketCreateInput{Subject: "race"})
	require.NoError(t, err)

	stale := &staleTickets{TicketRepository: s.store.Tickets()}
	stale.after = func() {
		_, err := s.store.Tickets().UpdateStatus(ctx, res.Ticket.ID, domain.TicketStatusAssigned, domain.TicketStatusInProgress, time.Now())
		require.NoError(t, err)
	}
	tickets := NewTicketService(TicketDependencies{TicketRepo: stale})

	_, err = tickets.ChangeStatus(ctx, eng, res.Ticket.ID, domain.TicketStatusResolved)
	require.ErrorIs(t, err, domain.ErrStatusConflict)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "CONFLICT", domainErr.Code)
	assert.Equal(t, 409, domainErr.HTTPStatus)
}
