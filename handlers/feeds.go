package handlers

import (
	"parliament-api/app"
	"parliament-api/models"
	"parliament-api/services"

	"github.com/gofiber/fiber/v2"
)

// BillsFeed renders the latest-bills feed in the given format
func BillsFeed(a *app.App, format services.FeedFormat) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return renderBillsFeed(c, a, "", format)
	}
}

// PoliticianBillsFeed renders the feed of bills sponsored by :slug
func PoliticianBillsFeed(a *app.App, format services.FeedFormat) fiber.Handler {
	return func(c *fiber.Ctx) error {
		slug := models.NormalizeSlug(c.Params("slug"))
		if err := a.Validator.Var("slug", slug, "required,slug"); err != nil {
			return validationError(c, err)
		}
		return renderBillsFeed(c, a, slug, format)
	}
}

func renderBillsFeed(c *fiber.Ctx, a *app.App, sponsor string, format services.FeedFormat) error {
	feed, err := a.Feeds.LatestBills(c.UserContext(), sponsor)
	if err != nil {
		return serviceError(c, "Failed to build feed", err)
	}

	body, err := services.Render(feed, format)
	if err != nil {
		return serviceError(c, "Failed to render feed", err)
	}

	c.Set(fiber.HeaderContentType, format.ContentType())
	return c.SendString(body)
}
