package setup

import (
	"log/slog"

	"parliament-api/app"
	"parliament-api/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// ApplyMiddleware applies all global middleware to the Fiber app
func ApplyMiddleware(fiberApp *fiber.App, application *app.App, logger *slog.Logger) {
	cfg := application.Config

	fiberApp.Use(
		recover.New(),
		middleware.StructuredLogger(logger),
		middleware.Security(cfg.IsProduction()),
		cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     "GET,POST,OPTIONS",
			AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
			ExposeHeaders:    "X-Request-ID,X-RateLimit-Limit,X-RateLimit-Remaining,Retry-After",
			AllowCredentials: false,
			MaxAge:           86400,
		}),
		middleware.RateLimit(middleware.RateLimitOptions{
			Limiter: application.Limiter,
			Stats:   application.RateStats,
			Skip: func(c *fiber.Ctx) bool {
				return c.Path() == "/health"
			},
			Logger: logger,
		}),
	)
}

// groupLimit scopes the quota to one endpoint group on top of the global one
func groupLimit(application *app.App, group string) fiber.Handler {
	return middleware.RateLimit(middleware.RateLimitOptions{
		Limiter: application.Limiter,
		Stats:   application.RateStats,
		Group:   group,
		Logger:  application.Logger,
	})
}
