package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/ticket-router/internal/domain"
)

// DB is the subset of *pgxpool.Pool the repositories rely on.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TicketOrder selects the listing order.
type TicketOrder int

const (
	// OrderNewestFirst lists by created_at descending.
	OrderNewestFirst TicketOrder = iota
	// OrderOldestFirst lists by created_at ascending, id ascending. Backlog
	// sweeps rely on it for FIFO fairness.
	OrderOldestFirst
)

// TicketFilter captures ticket query parameters.
type TicketFilter struct {
	CreatedByID  *int64
	AssignedToID *int64
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	// Backlog restricts to tickets not owned by an assignable engineer.
	Backlog bool
	Order   TicketOrder
	// Limit <= 0 means unbounded.
	Limit  int
	Offset int
}

// TicketScope restricts statistics to a creator or an assignee.
type TicketScope struct {
	CreatedByID  *int64
	AssignedToID *int64
}

// TicketStats aggregates counts for dashboards.
type TicketStats struct {
	ByStatus      map[domain.TicketStatus]int
	ResolvedSince int
	Total         int
}

// BatchResult reports the outcome of a conditional batch assignment.
type BatchResult struct {
	Assigned []int64
	Skipped  []int64
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// UpdateStatus moves a ticket from one status to another. It returns
	// domain.ErrStatusConflict when the ticket is no longer in from.
	UpdateStatus(ctx context.Context, id int64, from, to domain.TicketStatus, at time.Time) (*domain.Ticket, error)
	// Assign sets assignee and Assigned status in one write, only while the
	// ticket is still in the backlog. It returns domain.ErrAssignmentConflict
	// otherwise.
	Assign(ctx context.Context, ticketID, engineerID int64, at time.Time) (*domain.Ticket, error)
	// AssignBatch applies Assign to every id, in order, as one atomic write.
	// Tickets that are no longer backlog are reported as skipped.
	AssignBatch(ctx context.Context, ticketIDs []int64, engineerID int64, at time.Time) (BatchResult, error)
	CountActiveByAssignee(ctx context.Context, engineerIDs []int64) (map[int64]int, error)
	Stats(ctx context.Context, scope TicketScope, resolvedSince time.Time) (TicketStats, error)
}

// UserRepository is the engineer directory.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// ListAvailableEngineers returns assignable engineers ordered by id.
	ListAvailableEngineers(ctx context.Context) ([]domain.User, error)
	// ListEngineers returns every active engineer ordered by id.
	ListEngineers(ctx context.Context) ([]domain.User, error)
	// SetAvailability stores the flag and returns the previous value.
	SetAvailability(ctx context.Context, id int64, available bool) (bool, error)
	TouchLogin(ctx context.Context, id int64, at time.Time) error
}

const uniqueViolation = "23505"

func storeError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, domain.ErrEmailTaken)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
