package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Roberto640Alvarado/sae-LTI/internal/config"
	"github.com/Roberto640Alvarado/sae-LTI/internal/handler"
	"github.com/Roberto640Alvarado/sae-LTI/internal/middleware"
	"github.com/Roberto640Alvarado/sae-LTI/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	LTIHandler       *handler.LTIHandler
	GradeSyncHandler *handler.GradeSyncHandler
	HealthProbes     map[string]handler.HealthProbe
	// SessionMiddleware authenticates requests carrying an instructor ltik.
	SessionMiddleware fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler(cfg.AppName, cfg.AppEnv))

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	sessionMiddleware := deps.SessionMiddleware
	if sessionMiddleware == nil {
		sessionMiddleware = func(c *fiber.Ctx) error {
			return fiber.ErrUnauthorized
		}
	}

	if deps.GradeSyncHandler != nil {
		grades := api.Group("/grades")
		deps.GradeSyncHandler.Register(grades, sessionMiddleware,
			middleware.RateLimit("grades_sync", cfg.Grades.SyncRateLimit, time.Minute))
	}

	// The LTI routes sit at the root: the platform is configured with /login and /.
	if deps.LTIHandler != nil {
		deps.LTIHandler.Register(app)
	}
}
