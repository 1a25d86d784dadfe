package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/ticket-router/internal/api/http/handlers"
	"github.com/spec-kit/ticket-router/internal/auth"
	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Engineers      *handlers.EngineersHandler
	Dashboard      *handlers.DashboardHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	app.Post("/auth/login", cfg.Users.Login)

	authed := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole())
	managers := auth.RequireRole(domain.RoleManager, domain.RoleAdmin)
	oversight := auth.RequireRole(domain.RoleSupport, domain.RoleManager, domain.RoleAdmin)

	authed.Get("/users/me", cfg.Users.Me)
	authed.Post("/users", managers, cfg.Users.CreateUser)

	authed.Post("/tickets", cfg.Tickets.CreateTicket)
	authed.Get("/tickets", oversight, cfg.Tickets.ListAll)
	authed.Get("/tickets/mine", cfg.Tickets.ListMine)
	authed.Get("/tickets/assigned", auth.RequireRole(domain.RoleEngineer), cfg.Tickets.ListAssigned)
	authed.Get("/tickets/:id", cfg.Tickets.GetTicket)
	authed.Patch("/tickets/:id/status", cfg.Tickets.UpdateStatus)

	authed.Put("/engineers/me/availability", auth.RequireRole(domain.RoleEngineer), cfg.Engineers.SetOwnAvailability)
	authed.Put("/engineers/:id/availability", managers, cfg.Engineers.SetAvailability)
	authed.Get("/engineers/available", cfg.Engineers.ListAvailable)
	authed.Get("/engineers/workload", oversight, cfg.Engineers.Workload)

	authed.Get("/dashboard", cfg.Dashboard.Get)
}
