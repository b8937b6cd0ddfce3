package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/staff-service/internal/api/http/handlers"
	"github.com/spec-kit/staff-service/internal/auth"
	"github.com/spec-kit/staff-service/internal/domain"
	"github.com/spec-kit/staff-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Staff          *handlers.StaffHandler
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

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/password/reset/request", cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)

	account := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	account.Post("/logout", cfg.Auth.Logout)
	account.Get("/me", cfg.Auth.Me)
	account.Put("/me", cfg.Auth.UpdateMe)
	account.Put("/password", cfg.Auth.ChangePassword)

	editors := auth.RequireRole(domain.UserRoleAdmin, domain.UserRoleManager)
	staff := api.Group("/staff", cfg.AuthMiddleware.Handle)
	staff.Get("/", cfg.Staff.ListStaff)
	staff.Get("/stats", editors, cfg.Staff.GetStats)
	staff.Get("/:id", cfg.Staff.GetStaff)
	staff.Post("/", editors, cfg.Staff.CreateStaff)
	staff.Put("/:id", editors, cfg.Staff.UpdateStaff)
	staff.Delete("/:id", editors, cfg.Staff.DeleteStaff)
	staff.Post("/:id/assignments", editors, cfg.Staff.AddAssignment)
	staff.Put("/:id/assignments/:assignmentId", cfg.Staff.UpdateAssignment)
	staff.Delete("/:id/assignments/:assignmentId", editors, cfg.Staff.RemoveAssignment)
}
