package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-router/internal/domain"
)

var userCols = []string{
	"id", "email", "first_name", "last_name", "password_hash", "role",
	"is_active", "is_available", "created_at", "last_login_at",
}

func userRow(id int64, role domain.Role, available bool) []any {
	return []any{
		id, "eng@example.com", "Ada", "Lovelace", "hash", role,
		true, available, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), (*time.Time)(nil),
	}
}

func TestSetAvailabilityReturnsPreviousFlag(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`WITH prev AS`).
		WithArgs(int64(2), true).
		WillReturnRows(pgxmock.NewRows([]string{"is_available"}).AddRow(false))

	previous, err := repo.SetAvailability(context.Background(), 2, true)
	require.NoError(t, err)
	assert.False(t, previous)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetAvailabilityUnknownUser(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`WITH prev AS`).WillReturnError(pgx.ErrNoRows)

	_, err := repo.SetAvailability(context.Background(), 404, true)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListAvailableEngineersOrderedByID(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`is_active AND is_available\s+ORDER BY id ASC`).
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(userRow(1, domain.RoleEngineer, true)...).
			AddRow(userRow(2, domain.RoleEngineer, true)...))

	engineers, err := repo.ListAvailableEngineers(context.Background())
	require.NoError(t, err)
	require.Len(t, engineers, 2)
	assert.True(t, domain.IsAssignable(&engineers[0]))
	assert.Equal(t, int64(2), engineers[1].ID)
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &domain.User{Email: "dup@example.com", Role: domain.RoleUser})
	require.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestTouchLoginUnknownUser(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectExec(`UPDATE users SET last_login_at`).
		WithArgs(pgxmock.AnyArg(), int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.TouchLogin(context.Background(), 3, time.Now())
	require.ErrorIs(t, err, domain.ErrNotFound)
}
