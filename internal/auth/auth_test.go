package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/repository/memory"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	token, meta, err := tm.GenerateToken(&domain.User{ID: 12, Role: domain.RoleEngineer})
	require.NoError(t, err)
	assert.NotEmpty(t, meta.ID)
	assert.Equal(t, int64(12), meta.SubjectID)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(12), claims.UserID)
	assert.Equal(t, domain.RoleEngineer, claims.Role)
	assert.Equal(t, meta.ID, claims.ID)
}

func TestTokenRejectsForeignSecretAndExpiry(t *testing.T) {
	issuer := NewTokenManager("one", time.Minute)
	token, _, err := issuer.GenerateToken(&domain.User{ID: 1, Role: domain.RoleUser})
	require.NoError(t, err)

	_, err = NewTokenManager("two", time.Minute).ParseToken(token)
	require.Error(t, err)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = issuer.ParseToken(token)
	require.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hashed, err := HashPassword("correct horse", bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, ComparePassword(hashed, "correct horse"))
	require.Error(t, ComparePassword(hashed, "battery staple"))
}

func TestMiddlewareAndRoles(t *testing.T) {
	store := memory.NewStore()
	manager := &domain.User{Email: "m@example.com", Role: domain.RoleManager, Active: true}
	engineer := &domain.User{Email: "e@example.com", Role: domain.RoleEngineer, Active: true}
	require.NoError(t, store.Users().Create(context.Background(), manager))
	require.NoError(t, store.Users().Create(context.Background(), engineer))

	tm := NewTokenManager("secret", time.Hour)
	mw := NewAuthMiddleware(tm, store.Users())

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
	}})
	app.Get("/managers", mw.Handle, RequireRole(domain.RoleManager, domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	call := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/managers", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	managerToken, _, err := tm.GenerateToken(manager)
	require.NoError(t, err)
	engineerToken, _, err := tm.GenerateToken(engineer)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, call("Bearer "+managerToken))
	assert.Equal(t, http.StatusForbidden, call("Bearer "+engineerToken))
	assert.Equal(t, http.StatusUnauthorized, call(""))
	assert.Equal(t, http.StatusUnauthorized, call("Bearer nope"))
}
