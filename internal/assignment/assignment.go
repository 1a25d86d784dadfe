// Package assignment routes tickets to engineers.
//
// The Dispatcher picks the least loaded available engineer when a ticket is
// created. The Sweeper hands the whole backlog, oldest first, to an engineer
// who just became available. The AvailabilityHandler flips the directory flag
// and triggers the sweep on the false to true edge. Workload is derived from
// the ticket store on every call; nothing is cached between decisions.
package assignment

import (
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/events"
	"github.com/spec-kit/ticket-router/internal/lock"
	"github.com/spec-kit/ticket-router/internal/repository"
)

// DefaultSweepLock names the critical section all sweeps share.
const DefaultSweepLock = "backlog-sweep"

// Dependencies wires the routing components.
type Dependencies struct {
	Users   repository.UserRepository
	Tickets repository.TicketRepository
	Locker  lock.Locker
	Events  events.Bus
	Logger  *zap.Logger
	// SweepLock overrides DefaultSweepLock.
	SweepLock string
	// Now overrides time.Now.
	Now func() time.Time
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Locker == nil {
		d.Locker = lock.NewLocalLocker()
	}
	if d.Events == nil {
		d.Events = events.Discard
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.SweepLock == "" {
		d.SweepLock = DefaultSweepLock
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}
