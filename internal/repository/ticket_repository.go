package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-router/internal/domain"
)

const ticketColumns = `id, subject, description, priority, department, category, status,
               created_by_id, assigned_to_id, created_at, updated_at, resolved_at`

// backlogPredicate matches tickets that are non-terminal and not owned by an
// assignable engineer. It must stay in sync with domain.InBacklog.
const backlogPredicate = `t.status NOT IN ('RESOLVED','CLOSED')
          AND (t.assigned_to_id IS NULL OR NOT EXISTS (
                SELECT 1 FROM users u
                WHERE u.id = t.assigned_to_id
                  AND u.role = 'ENGINEER' AND u.is_active AND u.is_available))`

const assignQuery = `
        UPDATE tickets t SET assigned_to_id=$1, status='ASSIGNED', updated_at=$2
        WHERE t.id=$3 AND ` + backlogPredicate + `
        RETURNING ` + ticketColumns

type ticketRepository struct {
	db DB
}

// NewTicketRepository instantiates a Postgres-backed ticket store.
func NewTicketRepository(db DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (subject, description, priority, department, category, status, created_by_id, assigned_to_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Priority,
		ticket.Department,
		ticket.Category,
		ticket.Status,
		ticket.CreatedByID,
		ticket.AssignedToID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		return storeError("create ticket", err)
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.id=$1`
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, storeError("get ticket", err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets t`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedByID != nil {
		args = append(args, *filter.CreatedByID)
		clauses = append(clauses, fmt.Sprintf("t.created_by_id=$%d", len(args)))
	}
	if filter.AssignedToID != nil {
		args = append(args, *filter.AssignedToID)
		clauses = append(clauses, fmt.Sprintf("t.assigned_to_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Backlog {
		clauses = append(clauses, backlogPredicate)
	}

	order := "t.created_at DESC, t.id DESC"
	if filter.Order == OrderOldestFirst {
		order = "t.created_at ASC, t.id ASC"
	}
	query := fmt.Sprintf(`%s WHERE %s ORDER BY %s`, base, strings.Join(clauses, " AND "), order)
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError("list tickets", err)
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, storeError("list tickets", err)
	}
	return tickets, nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.TicketStatus, at time.Time) (*domain.Ticket, error) {
	query := `
        UPDATE tickets t SET status=$1, updated_at=$2,
            resolved_at = CASE WHEN $1 = 'RESOLVED' THEN $2 ELSE t.resolved_at END
        WHERE t.id=$3 AND t.status=$4
        RETURNING ` + ticketColumns
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, to, at, id, from))
	if err == nil {
		return ticket, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, storeError("update ticket status", err)
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("update ticket %d status: %w", id, domain.ErrStatusConflict)
}

func (r *ticketRepository) Assign(ctx context.Context, ticketID, engineerID int64, at time.Time) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, assignQuery, engineerID, at, ticketID))
	if err == nil {
		return ticket, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, storeError("assign ticket", err)
	}
	if _, getErr := r.GetByID(ctx, ticketID); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("assign ticket %d: %w", ticketID, domain.ErrAssignmentConflict)
}

func (r *ticketRepository) AssignBatch(ctx context.Context, ticketIDs []int64, engineerID int64, at time.Time) (BatchResult, error) {
	result := BatchResult{}
	if len(ticketIDs) == 0 {
		return result, nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return result, storeError("begin sweep", err)
	}

	const query = `
        UPDATE tickets t SET assigned_to_id=$1, status='ASSIGNED', updated_at=$2
        WHERE t.id=$3 AND ` + backlogPredicate
	for _, id := range ticketIDs {
		cmd, err := tx.Exec(ctx, query, engineerID, at, id)
		if err != nil {
			_ = tx.Rollback(ctx)
			return BatchResult{}, storeError("sweep assign", err)
		}
		if cmd.RowsAffected() == 0 {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		result.Assigned = append(result.Assigned, id)
	}
	if err := tx.Commit(ctx); err != nil {
		return BatchResult{}, storeError("commit sweep", err)
	}
	return result, nil
}

func (r *ticketRepository) CountActiveByAssignee(ctx context.Context, engineerIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(engineerIDs))
	if len(engineerIDs) == 0 {
		return counts, nil
	}
	for _, id := range engineerIDs {
		counts[id] = 0
	}
	const query = `
        SELECT assigned_to_id, COUNT(*)
        FROM tickets
        WHERE assigned_to_id = ANY($1) AND status NOT IN ('RESOLVED','CLOSED')
        GROUP BY assigned_to_id`
	rows, err := r.db.Query(ctx, query, engineerIDs)
	if err != nil {
		return nil, storeError("count workload", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, storeError("count workload", err)
		}
		counts[id] = count
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("count workload", err)
	}
	return counts, nil
}

func (r *ticketRepository) Stats(ctx context.Context, scope TicketScope, resolvedSince time.Time) (TicketStats, error) {
	args := []any{resolvedSince}
	clauses := []string{"1=1"}
	if scope.CreatedByID != nil {
		args = append(args, *scope.CreatedByID)
		clauses = append(clauses, fmt.Sprintf("created_by_id=$%d", len(args)))
	}
	if scope.AssignedToID != nil {
		args = append(args, *scope.AssignedToID)
		clauses = append(clauses, fmt.Sprintf("assigned_to_id=$%d", len(args)))
	}
	query := fmt.Sprintf(`
        SELECT status, COUNT(*), COUNT(*) FILTER (WHERE resolved_at >= $1)
        FROM tickets WHERE %s GROUP BY status`, strings.Join(clauses, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return TicketStats{}, storeError("ticket stats", err)
	}
	defer rows.Close()
	stats := TicketStats{ByStatus: map[domain.TicketStatus]int{}}
	for rows.Next() {
		var status domain.TicketStatus
		var count, resolved int
		if err := rows.Scan(&status, &count, &resolved); err != nil {
			return TicketStats{}, storeError("ticket stats", err)
		}
		stats.ByStatus[status] = count
		stats.ResolvedSince += resolved
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return TicketStats{}, storeError("ticket stats", err)
	}
	return stats, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Department,
		&ticket.Category,
		&ticket.Status,
		&ticket.CreatedByID,
		&ticket.AssignedToID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
