package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-router/internal/domain"
)

const userColumns = `id, email, first_name, last_name, password_hash, role, is_active, is_available, created_at, last_login_at`

type userRepository struct {
	db DB
}

// NewUserRepository returns a Postgres-backed directory.
func NewUserRepository(db DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (email, first_name, last_name, password_hash, role, is_active, is_available)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.Role,
		user.Active,
		user.Available,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return storeError("create user", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, storeError("get user", err)
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email)=LOWER($1)`
	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, storeError("get user by email", err)
	}
	return user, nil
}

func (r *userRepository) ListAvailableEngineers(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
        WHERE role='ENGINEER' AND is_active AND is_available
        ORDER BY id ASC`
	return r.list(ctx, "list available engineers", query)
}

func (r *userRepository) ListEngineers(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
        WHERE role='ENGINEER' AND is_active
        ORDER BY id ASC`
	return r.list(ctx, "list engineers", query)
}

func (r *userRepository) SetAvailability(ctx context.Context, id int64, available bool) (bool, error) {
	const query = `
        WITH prev AS (SELECT id, is_available FROM users WHERE id=$1 FOR UPDATE)
        UPDATE users u SET is_available=$2
        FROM prev WHERE u.id = prev.id
        RETURNING prev.is_available`
	var previous bool
	if err := r.db.QueryRow(ctx, query, id, available).Scan(&previous); err != nil {
		return false, storeError("set availability", err)
	}
	return previous, nil
}

func (r *userRepository) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET last_login_at=$1 WHERE id=$2`, at, id)
	if err != nil {
		return storeError("touch login", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("touch login: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *userRepository) list(ctx context.Context, op, query string, args ...any) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError(op, err)
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, storeError(op, err)
		}
		result = append(result, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(op, err)
	}
	return result, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.Role,
		&user.Active,
		&user.Available,
		&user.CreatedAt,
		&user.LastLoginAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
