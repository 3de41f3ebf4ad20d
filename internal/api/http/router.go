package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/issue-escalation/internal/api/http/handlers"
	"github.com/spec-kit/issue-escalation/internal/auth"
	"github.com/spec-kit/issue-escalation/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Escalation     *handlers.EscalationHandler
	Tickets        *handlers.TicketsHandler
	Directory      *handlers.DirectoryHandler
	AuthMiddleware *auth.AuthMiddleware
	Gatherer       prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes. Handler groups left nil are not mounted.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	if cfg.Escalation != nil {
		internal := app.Group("/internal")
		internal.Post("/escalate", cfg.Escalation.Trigger)
		internal.Get("/escalate", cfg.Escalation.Trigger)
	}

	if cfg.AuthMiddleware == nil {
		return
	}
	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireRole())
	admin := auth.RequireRole(auth.AdminRoles...)

	if cfg.Tickets != nil {
		tickets := api.Group("/tickets")
		tickets.Post("/", cfg.Tickets.CreateTicket)
		tickets.Get("/", cfg.Tickets.ListTickets)
		tickets.Get("/:id", cfg.Tickets.GetTicket)
		tickets.Get("/:id/history", cfg.Tickets.ListHistory)
		tickets.Post("/:id/in-progress", cfg.Tickets.MarkInProgress)
		tickets.Post("/:id/resolve", cfg.Tickets.Resolve)
		tickets.Post("/:id/unresolve", cfg.Tickets.Unresolve)
		tickets.Post("/:id/deescalate", admin, cfg.Tickets.Deescalate)
		tickets.Post("/:id/escalate", admin, cfg.Tickets.Escalate)
		tickets.Post("/:id/extensions", cfg.Tickets.RequestExtension)
		tickets.Get("/:id/extensions", cfg.Tickets.ListExtensions)

		extensions := api.Group("/extensions", admin)
		extensions.Post("/:id/approve", cfg.Tickets.ApproveExtension)
		extensions.Post("/:id/reject", cfg.Tickets.RejectExtension)
	}

	if cfg.Directory != nil {
		api.Get("/directory", admin, cfg.Directory.ListEntries)
		api.Post("/directory", auth.RequireRole(domain.RoleCentralAdmin), cfg.Directory.CreateEntry)
		api.Post("/rooms", auth.RequireRole(domain.RoleCentralAdmin), cfg.Directory.CreateRoom)
	}
}
