package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/assignment"
	"github.com/spec-kit/ticket-router/internal/auth"
	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/repository"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

// UserService manages directory accounts.
type UserService struct {
	users      repository.UserRepository
	sweeper    *assignment.Sweeper
	bcryptCost int
	logger     *zap.Logger
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	Sweeper    *assignment.Sweeper
	BcryptCost int
	Logger     *zap.Logger
}

// CreateUserInput describes a new account.
type CreateUserInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
	Role      domain.Role
	Available bool
}

// CreateUserResult carries the account and, for an engineer created
// available, the sweep it triggered.
type CreateUserResult struct {
	User  *domain.User
	Sweep *assignment.SweepResult
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &UserService{
		users:      deps.UserRepo,
		sweeper:    deps.Sweeper,
		bcryptCost: deps.BcryptCost,
		logger:     deps.Logger,
	}
}

// CreateUser stores an account. An engineer created already available
// triggers a backlog sweep.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (CreateUserResult, error) {
	if !input.Role.Valid() {
		return CreateUserResult{}, apperrors.NewValidationError("unknown role", map[string]any{"role": input.Role})
	}
	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return CreateUserResult{}, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: hash,
		Role:         input.Role,
		Active:       true,
		Available:    input.Available && input.Role == domain.RoleEngineer,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return CreateUserResult{}, apperrors.NewConflict("email already registered", map[string]any{"email": user.Email})
		}
		return CreateUserResult{}, apperrors.MapError(err)
	}
	s.logger.Info("user created", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))

	result := CreateUserResult{User: user}
	if domain.IsAssignable(user) && s.sweeper != nil {
		sweep, err := s.sweeper.Sweep(ctx, user.ID)
		if err != nil {
			return result, apperrors.MapError(err)
		}
		result.Sweep = &sweep
	}
	return result, nil
}

// EnsureBootstrapAdmin creates the first admin account when email is set and
// unknown. It is a no-op otherwise.
func (s *UserService) EnsureBootstrapAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil
	}
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	_, err = s.CreateUser(ctx, CreateUserInput{
		Email:     email,
		FirstName: "Admin",
		Password:  password,
		Role:      domain.RoleAdmin,
	})
	if err != nil {
		return err
	}
	s.logger.Info("bootstrap admin created", zap.String("email", email))
	return nil
}
