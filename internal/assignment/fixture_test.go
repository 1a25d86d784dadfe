package assignment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/repository"
	"github.com/spec-kit/ticket-router/internal/repository/memory"
)

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *memory.Store
	users   repository.UserRepository
	tickets repository.TicketRepository
	clock   time.Time
	seq     int
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		clock: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
	}
	f.store = memory.NewStore(memory.WithClock(f.now))
	f.users = f.store.Users()
	f.tickets = f.store.Tickets()
	return f
}

// now advances one second per call so creation order is strict.
func (f *fixture) now() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fixture) deps() Dependencies {
	return Dependencies{Users: f.users, Tickets: f.tickets, Now: f.now}
}

func (f *fixture) engineer(available bool) *domain.User {
	f.seq++
	u := &domain.User{Email: fmt.Sprintf("eng%d@example.com", f.seq), Role: domain.RoleEngineer, Active: true, Available: available}
	require.NoError(f.t, f.users.Create(f.ctx, u))
	return u
}

func (f *fixture) openTicket() *domain.Ticket {
	ticket := &domain.Ticket{Subject: "help", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityMedium, CreatedByID: 1000}
	require.NoError(f.t, f.tickets.Create(f.ctx, ticket))
	return ticket
}

func (f *fixture) ownedTicket(engineerID int64) *domain.Ticket {
	ticket := f.openTicket()
	assigned, err := f.tickets.Assign(f.ctx, ticket.ID, engineerID, f.now())
	require.NoError(f.t, err)
	return assigned
}

func (f *fixture) reload(id int64) *domain.Ticket {
	ticket, err := f.tickets.GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return ticket
}

func (f *fixture) requireConsistent() {
	all, err := f.tickets.List(f.ctx, repository.TicketFilter{})
	require.NoError(f.t, err)
	for _, ticket := range all {
		require.Truef(f.t, ticket.Consistent(), "ticket %d status %s assignee %v", ticket.ID, ticket.Status, ticket.AssignedToID)
	}
}
