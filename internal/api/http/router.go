package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/api/http/handlers"
	"github.com/spec-kit/workflow-service/internal/auth"
	"github.com/spec-kit/workflow-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Dashboard      *handlers.DashboardHandler
	Tasks          *handlers.TasksHandler
	Requests       *handlers.RequestsHandler
	Chats          *handlers.ChatsHandler
	WS             *handlers.WSHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	app.Post("/auth/login", cfg.Auth.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Post("/auth/logout", cfg.Auth.Logout)
	protected.Get("/auth/me", cfg.Auth.Me)

	users := protected.Group("/users", auth.RequireRole(domain.RoleSuperAdmin))
	users.Post("/", cfg.Users.Create)
	users.Patch("/:id/active", cfg.Users.SetActive)

	protected.Get("/dashboard", cfg.Dashboard.Get)
	protected.Put("/dashboard/filters", cfg.Dashboard.SetFilters)

	tasks := protected.Group("/tasks", auth.RequireRole(domain.RoleAdmin, domain.RoleEmployee))
	tasks.Post("/", cfg.Tasks.Create)
	tasks.Get("/:id", cfg.Tasks.Get)
	tasks.Patch("/:id", cfg.Tasks.Update)
	tasks.Delete("/:id", cfg.Tasks.Delete)
	tasks.Post("/:id/move", cfg.Tasks.Move)
	tasks.Post("/:id/complete", cfg.Tasks.Complete)
	tasks.Post("/:id/comments", cfg.Tasks.AddComment)
	tasks.Post("/:id/subtasks", cfg.Tasks.AddSubtask)
	tasks.Post("/:id/subtasks/:index/toggle", cfg.Tasks.ToggleSubtask)

	requests := protected.Group("/requests", auth.RequireRole(domain.RoleAdmin, domain.RoleEmployee))
	requests.Post("/", cfg.Requests.Create)
	requests.Post("/:id/decision", cfg.Requests.Decide)
	requests.Post("/:id/reassign", cfg.Requests.Reassign)

	chats := protected.Group("/chats")
	chats.Get("/contacts", cfg.Chats.Contacts)
	chats.Get("/:userId/messages", cfg.Chats.History)
	chats.Post("/:userId/messages", cfg.Chats.Send)

	protected.Get("/ws", cfg.WS.Upgrade, cfg.WS.Stream())
}
