package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/assignment"
	"github.com/spec-kit/ticket-router/internal/auth"
	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/repository"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

// AuthService coordinates login.
type AuthService struct {
	users        repository.UserRepository
	tokens       *auth.TokenManager
	availability *assignment.AvailabilityHandler
	loginSweep   bool
	logger       *zap.Logger
	now          func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	Tokens       *auth.TokenManager
	Availability *assignment.AvailabilityHandler
	// EngineerLoginSweep marks engineers available when they log in.
	EngineerLoginSweep bool
	Logger             *zap.Logger
	Now                func() time.Time
}

// LoginResult carries the issued token. Availability is set when the login
// flipped an engineer to available.
type LoginResult struct {
	User         *domain.User
	Token        string
	Meta         domain.Token
	Availability *assignment.ToggleResult
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &AuthService{
		users:        deps.UserRepo,
		tokens:       deps.Tokens,
		availability: deps.Availability,
		loginSweep:   deps.EngineerLoginSweep,
		logger:       deps.Logger,
		now:          deps.Now,
	}
}

// Login authenticates a user and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return LoginResult{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return LoginResult{}, apperrors.MapError(err)
	}
	if !user.Active {
		return LoginResult{}, apperrors.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return LoginResult{}, apperrors.NewUnauthorized("invalid credentials")
	}

	at := s.now()
	if err := s.users.TouchLogin(ctx, user.ID, at); err != nil {
		return LoginResult{}, apperrors.MapError(err)
	}
	user.LastLoginAt = &at

	result := LoginResult{User: user}
	if s.loginSweep && user.Role == domain.RoleEngineer && s.availability != nil {
		toggle, err := s.availability.SetAvailability(ctx, user.ID, true)
		if err != nil {
			return LoginResult{}, apperrors.MapError(err)
		}
		user.Available = true
		result.Availability = &toggle
	}

	token, meta, err := s.tokens.GenerateToken(user)
	if err != nil {
		return LoginResult{}, apperrors.NewInternalError(err)
	}
	result.Token = token
	result.Meta = meta
	s.logger.Info("login", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return result, nil
}
