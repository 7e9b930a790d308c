package handlers

import (
	"parliament-api/app"
	"parliament-api/middleware"

	"github.com/gofiber/fiber/v2"
)

// TriggerIngest starts a background run for :entity. Responds 202 once the
// run is scheduled and 409 while one for the same entity is in flight.
func TriggerIngest(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entity, err := a.Ingest.Trigger(c.Params("entity"))
		if err != nil {
			return serviceError(c, "Failed to start ingest", err)
		}

		a.Logger.Info("ingest triggered",
			"entity", entity,
			"request_id", middleware.RequestID(c),
		)

		return accepted(c, fiber.Map{
			"entity":  entity,
			"message": "Ingest started",
		})
	}
}

func ListIngestRuns(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		runs, err := a.Ingest.Runs(c.UserContext(), c.Query("entity"), c.QueryInt("limit"))
		if err != nil {
			return serviceError(c, "Failed to fetch ingest runs", err)
		}
		return success(c, fiber.Map{"runs": runs})
	}
}

// IngestStatus reports the latest run per entity and the worker's interval
func IngestStatus(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status, err := a.Ingest.Status(c.UserContext())
		if err != nil {
			return serviceError(c, "Failed to fetch ingest status", err)
		}

		resp := fiber.Map{"latest": status}
		if a.Worker != nil {
			resp["interval"] = a.Worker.Interval().String()
		}
		return success(c, resp)
	}
}

func RateLimitStats(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if a.RateStats == nil {
			return notFound(c, "Rate limit statistics are not enabled")
		}

		snapshot, err := a.RateStats.Snapshot(c.UserContext())
		if err != nil {
			return serverErrorWithDetails(c, "Failed to fetch rate limit statistics", err)
		}
		return success(c, snapshot)
	}
}
