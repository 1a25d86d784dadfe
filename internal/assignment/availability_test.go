package assignment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/events"
	"github.com/spec-kit/ticket-router/internal/lock"
)

func TestBacklogWaitsForFirstAvailableEngineer(t *testing.T) {
	f := newFixture(t)
	e3 := f.engineer(false)
	dispatcher := NewDispatcher(f.deps())

	var created []*domain.Ticket
	for i := 0; i < 3; i++ {
		ticket := f.openTicket()
		result, err := dispatcher.Assign(f.ctx, ticket)
		require.NoError(t, err)
		require.Equal(t, OutcomeNoEngineerAvailable, result.Outcome)
		created = append(created, ticket)
	}

	toggle, err := NewAvailabilityHandler(f.deps(), nil).SetAvailability(f.ctx, e3.ID, true)
	require.NoError(t, err)
	assert.False(t, toggle.Previous)
	assert.True(t, toggle.Swept)
	assert.Equal(t, 3, toggle.ReassignedCount)
	assert.Equal(t, []int64{created[0].ID, created[1].ID, created[2].ID}, toggle.Sweep.Assigned)
	f.requireConsistent()
}

func TestGoingUnavailableKeepsAssignments(t *testing.T) {
	f := newFixture(t)
	e1 := f.engineer(true)
	ticket := f.openTicket()
	_, err := NewDispatcher(f.deps()).Assign(f.ctx, ticket)
	require.NoError(t, err)

	bus := events.NewInMemoryBus()
	var changes []events.AvailabilityChangedPayload
	bus.Subscribe(events.EventAvailabilityChanged, func(_ context.Context, e events.Event) error {
		changes = append(changes, e.Payload.(events.AvailabilityChangedPayload))
		return nil
	})
	deps := f.deps()
	deps.Events = bus

	result, err := NewAvailabilityHandler(deps, nil).SetAvailability(f.ctx, e1.ID, false)
	require.NoError(t, err)
	assert.True(t, result.Previous)
	assert.False(t, result.Swept)
	assert.Zero(t, result.ReassignedCount)

	stored := f.reload(ticket.ID)
	assert.True(t, stored.IsAssignedTo(e1.ID))
	assert.Equal(t, domain.TicketStatusAssigned, stored.Status)
	require.Len(t, changes, 1)
	assert.False(t, changes[0].Available)
}

func TestStayingAvailableDoesNotSweep(t *testing.T) {
	f := newFixture(t)
	e := f.engineer(true)
	f.openTicket()

	result, err := NewAvailabilityHandler(f.deps(), nil).SetAvailability(f.ctx, e.ID, true)
	require.NoError(t, err)
	assert.True(t, result.Previous)
	assert.False(t, result.Swept)
}

func TestNonEngineerToggleIsRejected(t *testing.T) {
	f := newFixture(t)
	for _, role := range []domain.Role{domain.RoleUser, domain.RoleSupport, domain.RoleAdmin} {
		account := &domain.User{Email: string(role) + "@example.com", Role: role, Active: true}
		require.NoError(t, f.users.Create(f.ctx, account))
		ticket := f.openTicket()

		_, err := NewAvailabilityHandler(f.deps(), nil).SetAvailability(f.ctx, account.ID, true)
		require.ErrorIs(t, err, domain.ErrEngineerNotFound, role)

		stored, err := f.users.GetByID(f.ctx, account.ID)
		require.NoError(t, err)
		assert.False(t, stored.Available, role)
		assert.Equal(t, domain.TicketStatusOpen, f.reload(ticket.ID).Status)
	}
}

func TestFailedSweepRestoresFlagSoRetrySweeps(t *testing.T) {
	f := newFixture(t)
	e := f.engineer(false)
	ticket := f.openTicket()

	locker := lock.NewLocalLocker()
	deps := f.deps()
	deps.Locker = locker
	handler := NewAvailabilityHandler(deps, nil)

	held, err := locker.Lock(f.ctx, DefaultSweepLock)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(f.ctx, 10*time.Millisecond)
	_, err = handler.SetAvailability(ctx, e.ID, true)
	cancel()
	require.ErrorIs(t, err, lock.ErrLockNotAcquired)

	stored, err := f.users.GetByID(f.ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, stored.Available)
	require.NoError(t, held.Unlock(f.ctx))

	retry, err := handler.SetAvailability(f.ctx, e.ID, true)
	require.NoError(t, err)
	assert.False(t, retry.Previous)
	assert.True(t, retry.Swept)
	assert.Equal(t, []int64{ticket.ID}, retry.Sweep.Assigned)
	assert.True(t, f.reload(ticket.ID).IsAssignedTo(e.ID))
}

func TestFailedSweepOnStoreErrorRestoresFlag(t *testing.T) {
	f := newFixture(t)
	e := f.engineer(false)
	deps := f.deps()
	deps.Tickets = brokenTickets{f.tickets}

	_, err := NewAvailabilityHandler(deps, nil).SetAvailability(f.ctx, e.ID, true)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	stored, err := f.users.GetByID(f.ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, stored.Available)
}

func TestToggleUnknownEngineer(t *testing.T) {
	f := newFixture(t)
	_, err := NewAvailabilityHandler(f.deps(), nil).SetAvailability(f.ctx, 404, true)
	require.ErrorIs(t, err, domain.ErrEngineerNotFound)
}

func TestReturningEngineerSweepsTicketsOfUnavailableColleague(t *testing.T) {
	f := newFixture(t)
	e1 := f.engineer(true)
	e2 := f.engineer(false)
	owned := f.ownedTicket(e1.ID)
	handler := NewAvailabilityHandler(f.deps(), nil)

	_, err := handler.SetAvailability(f.ctx, e1.ID, false)
	require.NoError(t, err)
	result, err := handler.SetAvailability(f.ctx, e2.ID, true)
	require.NoError(t, err)

	assert.Equal(t, []int64{owned.ID}, result.Sweep.Assigned)
	assert.True(t, f.reload(owned.ID).IsAssignedTo(e2.ID))
}

func TestWorkloadsReportsEveryRequestedID(t *testing.T) {
	f := newFixture(t)
	e1 := f.engineer(true)
	f.ownedTicket(e1.ID)
	f.ownedTicket(e1.ID)

	workloads, err := NewAccountant(f.tickets).Workloads(f.ctx, []int64{e1.ID, 77})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{e1.ID: 2, 77: 0}, workloads)

	empty, err := NewAccountant(f.tickets).Workloads(f.ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
