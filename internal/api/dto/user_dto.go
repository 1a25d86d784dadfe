package dto

import (
	"time"

	"github.com/spec-kit/ticket-router/internal/domain"
)

// LoginRequest payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// CreateUserRequest payload for POST /users.
type CreateUserRequest struct {
	Email     string      `json:"email" validate:"required,email,max=254"`
	FirstName string      `json:"first_name" validate:"max=100"`
	LastName  string      `json:"last_name" validate:"max=100"`
	Password  string      `json:"password" validate:"required,min=8,max=72"`
	Role      domain.Role `json:"role" validate:"required,oneof=USER ENGINEER SUPPORT MANAGER ADMIN"`
	Available bool        `json:"available"`
}

// UserResponse omits credentials.
type UserResponse struct {
	ID          int64       `json:"id"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	Role        domain.Role `json:"role"`
	Active      bool        `json:"active"`
	Available   bool        `json:"available"`
	CreatedAt   time.Time   `json:"created_at"`
	LastLoginAt *time.Time  `json:"last_login_at"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewUserResponse maps a directory record.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.FullName(),
		Role:        u.Role,
		Active:      u.Active,
		Available:   u.Available,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}
