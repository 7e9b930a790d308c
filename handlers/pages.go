package handlers

import (
	"context"
	"fmt"
	"io"
	"time"

	"parliament-api/app"

	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"
)

type endpoint struct {
	Path        string
	Description string
}

var publicEndpoints = []endpoint{
	{"/api/v1/bills", "Bills, filterable by parliament, session, status, sponsor, q, law"},
	{"/api/v1/bills/44-1/C-11", "A single bill by session and number"},
	{"/api/v1/politicians", "Members of Parliament, filterable by party, province, q"},
	{"/api/v1/votes", "House divisions"},
	{"/api/v1/debates", "Hansard sittings"},
	{"/api/v1/committees", "House committees"},
	{"/feeds/bills.rss", "Latest bills as RSS 2.0 (also .atom and .json)"},
}

// indexPage is the landing page listing the public endpoints
func indexPage(env string, endpoints []endpoint) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<title>Parliament API</title>`+
			`<style>body{font-family:system-ui,sans-serif;max-width:48rem;margin:2rem auto;padding:0 1rem}code{background:#f3f3f3;padding:0 .25rem}</style>`+
			`</head><body><h1>Parliament API</h1>`+
			`<p>Bills, politicians, votes, debates and committees of the Parliament of Canada.</p><ul>`); err != nil {
			return err
		}
		for _, e := range endpoints {
			if _, err := fmt.Fprintf(w, `<li><a href="%s"><code>%s</code></a> %s</li>`,
				templ.EscapeString(e.Path), templ.EscapeString(e.Path), templ.EscapeString(e.Description)); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, `</ul><p><small>Environment: %s</small></p></body></html>`, templ.EscapeString(env))
		return err
	})
}

func HomePage(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return indexPage(a.Config.Env, publicEndpoints).Render(c.Context(), c.Response().BodyWriter())
	}
}

// Health reports whether the database is reachable
func Health(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		if err := a.Repo.Ping(ctx); err != nil {
			a.Logger.Error("health check failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":   "unavailable",
				"database": "down",
			})
		}

		return c.JSON(fiber.Map{
			"status":   "ok",
			"database": "up",
			"time":     time.Now().UTC().Format(time.RFC3339),
		})
	}
}
