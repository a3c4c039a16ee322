package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/order-ticket-service/internal/api/http/handlers"
	"github.com/spec-kit/order-ticket-service/internal/auth"
	"github.com/spec-kit/order-ticket-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)
	api.Get("/orders/:id/ticket-types", cfg.Tickets.TicketTypes)

	tickets := api.Group("/tickets")
	tickets.Post("/", auth.RequireParty(domain.PartyCustomer), cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/transitions", cfg.Tickets.Transition)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)

	api.Get("/admin/metrics", auth.RequireParty(domain.PartySuperadmin), cfg.Health.Metrics)
}
