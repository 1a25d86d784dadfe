// Package memory provides a process-local implementation of the ticket store
// and engineer directory. It backs the service when no Postgres DSN is
// configured and is the default fixture in tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/repository"
)

// Store keeps users and tickets behind one mutex so every write, including
// a batch sweep, is a single critical section.
type Store struct {
	mu         sync.RWMutex
	users      map[int64]*domain.User
	tickets    map[int64]*domain.Ticket
	nextUserID int64
	nextTicket int64
	now        func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the clock used for created_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		users:   make(map[int64]*domain.User),
		tickets: make(map[int64]*domain.Ticket),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Users exposes the directory view of the store.
func (s *Store) Users() repository.UserRepository { return (*userStore)(s) }

// Tickets exposes the ticket view of the store.
func (s *Store) Tickets() repository.TicketRepository { return (*ticketStore)(s) }

type userStore Store

func (u *userStore) Create(_ context.Context, user *domain.User) error {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return fmt.Errorf("create user: %w", domain.ErrEmailTaken)
		}
	}
	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = s.now()
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (u *userStore) GetByID(_ context.Context, id int64) (*domain.User, error) {
	s := (*Store)(u)
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", domain.ErrNotFound)
	}
	clone := *user
	return &clone, nil
}

func (u *userStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s := (*Store)(u)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("get user by email: %w", domain.ErrNotFound)
}

func (u *userStore) ListAvailableEngineers(_ context.Context) ([]domain.User, error) {
	s := (*Store)(u)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectUsers(domain.IsAssignable), nil
}

func (u *userStore) ListEngineers(_ context.Context) ([]domain.User, error) {
	s := (*Store)(u)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectUsers(func(user *domain.User) bool {
		return user.Role == domain.RoleEngineer && user.Active
	}), nil
}

func (u *userStore) SetAvailability(_ context.Context, id int64, available bool) (bool, error) {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return false, fmt.Errorf("set availability: %w", domain.ErrNotFound)
	}
	previous := user.Available
	user.Available = available
	return previous, nil
}

func (u *userStore) TouchLogin(_ context.Context, id int64, at time.Time) error {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return fmt.Errorf("touch login: %w", domain.ErrNotFound)
	}
	stamp := at
	user.LastLoginAt = &stamp
	return nil
}

// collectUsers must be called with s.mu held.
func (s *Store) collectUsers(keep func(*domain.User) bool) []domain.User {
	var out []domain.User
	for _, user := range s.users {
		if keep(user) {
			out = append(out, *user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type ticketStore Store

func (t *ticketStore) Create(_ context.Context, ticket *domain.Ticket) error {
	s := (*Store)(t)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTicket++
	ticket.ID = s.nextTicket
	now := s.now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	s.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (t *ticketStore) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	s := (*Store)(t)
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("get ticket: %w", domain.ErrNotFound)
	}
	return cloneTicket(ticket), nil
}

func (t *ticketStore) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	s := (*Store)(t)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Ticket
	for _, ticket := range s.tickets {
		if s.matches(ticket, filter) {
			out = append(out, *cloneTicket(ticket))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if filter.Order == repository.OrderOldestFirst {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		if offset >= len(out) {
			return nil, nil
		}
		end := offset + filter.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[offset:end]
	}
	return out, nil
}

func (t *ticketStore) UpdateStatus(_ context.Context, id int64, from, to domain.TicketStatus, at time.Time) (*domain.Ticket, error) {
	s := (*Store)(t)
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("update ticket status: %w", domain.ErrNotFound)
	}
	if ticket.Status != from {
		return nil, fmt.Errorf("update ticket %d status: %w", id, domain.ErrStatusConflict)
	}
	ticket.Status = to
	ticket.UpdatedAt = at
	if to == domain.TicketStatusResolved {
		stamp := at
		ticket.ResolvedAt = &stamp
	}
	return cloneTicket(ticket), nil
}

func (t *ticketStore) Assign(_ context.Context, ticketID, engineerID int64, at time.Time) (*domain.Ticket, error) {
	s := (*Store)(t)
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, fmt.Errorf("assign ticket: %w", domain.ErrNotFound)
	}
	if !s.inBacklog(ticket) {
		return nil, fmt.Errorf("assign ticket %d: %w", ticketID, domain.ErrAssignmentConflict)
	}
	s.assign(ticket, engineerID, at)
	return cloneTicket(ticket), nil
}

func (t *ticketStore) AssignBatch(_ context.Context, ticketIDs []int64, engineerID int64, at time.Time) (repository.BatchResult, error) {
	s := (*Store)(t)
	s.mu.Lock()
	defer s.mu.Unlock()
	result := repository.BatchResult{}
	for _, id := range ticketIDs {
		ticket, ok := s.tickets[id]
		if !ok || !s.inBacklog(ticket) {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		s.assign(ticket, engineerID, at)
		result.Assigned = append(result.Assigned, id)
	}
	return result, nil
}

func (t *ticketStore) CountActiveByAssignee(_ context.Context, engineerIDs []int64) (map[int64]int, error) {
	s := (*Store)(t)
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[int64]int, len(engineerIDs))
	for _, id := range engineerIDs {
		counts[id] = 0
	}
	for _, ticket := range s.tickets {
		if ticket.AssignedToID == nil || ticket.Status.IsTerminal() {
			continue
		}
		if _, wanted := counts[*ticket.AssignedToID]; wanted {
			counts[*ticket.AssignedToID]++
		}
	}
	return counts, nil
}

func (t *ticketStore) Stats(_ context.Context, scope repository.TicketScope, resolvedSince time.Time) (repository.TicketStats, error) {
	s := (*Store)(t)
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := repository.TicketStats{ByStatus: map[domain.TicketStatus]int{}}
	for _, ticket := range s.tickets {
		if scope.CreatedByID != nil && ticket.CreatedByID != *scope.CreatedByID {
			continue
		}
		if scope.AssignedToID != nil && !ticket.IsAssignedTo(*scope.AssignedToID) {
			continue
		}
		stats.ByStatus[ticket.Status]++
		stats.Total++
		if ticket.ResolvedAt != nil && !ticket.ResolvedAt.Before(resolvedSince) {
			stats.ResolvedSince++
		}
	}
	return stats, nil
}

// matches must be called with s.mu held.
func (s *Store) matches(ticket *domain.Ticket, filter repository.TicketFilter) bool {
	if filter.CreatedByID != nil && ticket.CreatedByID != *filter.CreatedByID {
		return false
	}
	if filter.AssignedToID != nil && !ticket.IsAssignedTo(*filter.AssignedToID) {
		return false
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, ticket.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !slices.Contains(filter.Priorities, ticket.Priority) {
		return false
	}
	if filter.Backlog && !s.inBacklog(ticket) {
		return false
	}
	return true
}

func (s *Store) inBacklog(ticket *domain.Ticket) bool {
	var owner *domain.User
	if ticket.AssignedToID != nil {
		owner = s.users[*ticket.AssignedToID]
	}
	return domain.InBacklog(ticket, owner)
}

func (s *Store) assign(ticket *domain.Ticket, engineerID int64, at time.Time) {
	id := engineerID
	ticket.AssignedToID = &id
	ticket.Status = domain.TicketStatusAssigned
	ticket.UpdatedAt = at
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	clone := *t
	if t.AssignedToID != nil {
		id := *t.AssignedToID
		clone.AssignedToID = &id
	}
	if t.ResolvedAt != nil {
		at := *t.ResolvedAt
		clone.ResolvedAt = &at
	}
	return &clone
}
