package setup

import (
	"parliament-api/app"
	"parliament-api/handlers"
	"parliament-api/middleware"
	"parliament-api/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(fiberApp *fiber.App, application *app.App) {
	// Public routes
	fiberApp.Get("/", handlers.HomePage(application))
	fiberApp.Get("/health", handlers.Health(application))

	api := fiberApp.Group("/api/v1")

	bills := api.Group("/bills", groupLimit(application, "bills"))
	bills.Get("/", handlers.ListBills(application))
	bills.Get("/id/:id", handlers.GetBillByID(application))
	bills.Get("/:session/:number", handlers.GetBill(application))

	politicians := api.Group("/politicians", groupLimit(application, "politicians"))
	politicians.Get("/", handlers.ListPoliticians(application))
	politicians.Get("/:slug", handlers.GetPolitician(application))

	votes := api.Group("/votes", groupLimit(application, "votes"))
	votes.Get("/", handlers.ListVotes(application))
	votes.Get("/:session/:number", handlers.GetVote(application))

	debates := api.Group("/debates", groupLimit(application, "debates"))
	debates.Get("/", handlers.ListDebates(application))
	debates.Get("/:date/:number", handlers.GetDebate(application))

	committees := api.Group("/committees", groupLimit(application, "committees"))
	committees.Get("/", handlers.ListCommittees(application))
	committees.Get("/:slug", handlers.GetCommittee(application))

	// Feeds are rebuilt from the precomputed table; cache rendered bodies.
	// Next runs again after the handler, so only 200s are stored.
	feeds := fiberApp.Group("/feeds", groupLimit(application, "feeds"), cache.New(cache.Config{
		Expiration:   application.Config.FeedCacheTTL,
		CacheControl: true,
		Next: func(c *fiber.Ctx) bool {
			return application.Config.FeedCacheTTL <= 0 || c.Response().StatusCode() != fiber.StatusOK
		},
	}))
	feeds.Get("/bills.rss", handlers.BillsFeed(application, services.FeedRSS))
	feeds.Get("/bills.atom", handlers.BillsFeed(application, services.FeedAtom))
	feeds.Get("/bills.json", handlers.BillsFeed(application, services.FeedJSON))
	feeds.Get("/politicians/:slug/bills.rss", handlers.PoliticianBillsFeed(application, services.FeedRSS))
	feeds.Get("/politicians/:slug/bills.atom", handlers.PoliticianBillsFeed(application, services.FeedAtom))

	// Admin routes
	admin := api.Group("/admin", middleware.AdminRequired(application.Config.AdminAPIKey))
	admin.Post("/ingest/:entity", handlers.TriggerIngest(application))
	admin.Get("/ingest/runs", handlers.ListIngestRuns(application))
	admin.Get("/ingest/status", handlers.IngestStatus(application))
	admin.Get("/ratelimit/stats", handlers.RateLimitStats(application))
}
