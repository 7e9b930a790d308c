package handlers

import (
	"strconv"
	"time"

	"parliament-api/app"
	"parliament-api/models"

	"github.com/gofiber/fiber/v2"
)

// ==================== POLITICIANS ====================

func ListPoliticians(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var filter models.PoliticianFilter
		if ok, err := parseQuery(c, a.Validator, &filter); !ok {
			return err
		}

		page, err := a.Politicians.List(c.UserContext(), filter)
		if err != nil {
			return serviceError(c, "Failed to fetch politicians", err)
		}
		return success(c, page)
	}
}

// GetPolitician returns a politician with the bills they sponsored
func GetPolitician(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		slug := models.NormalizeSlug(c.Params("slug"))
		if err := a.Validator.Var("slug", slug, "required,slug"); err != nil {
			return validationError(c, err)
		}

		detail, err := a.Politicians.Get(c.UserContext(), slug)
		if err != nil {
			return serviceError(c, "Failed to fetch politician", err)
		}
		return success(c, detail)
	}
}

// ==================== VOTES ====================

func ListVotes(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var filter models.VoteFilter
		if ok, err := parseQuery(c, a.Validator, &filter); !ok {
			return err
		}

		page, err := a.Votes.List(c.UserContext(), filter)
		if err != nil {
			return serviceError(c, "Failed to fetch votes", err)
		}
		return success(c, page)
	}
}

func GetVote(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session := c.Params("session")
		if err := a.Validator.Var("session", session, "required,session"); err != nil {
			return validationError(c, err)
		}

		number, err := strconv.Atoi(c.Params("number"))
		if err != nil || number < 1 {
			return badRequest(c, "Vote number must be a positive integer")
		}

		vote, err := a.Votes.Get(c.UserContext(), session, number)
		if err != nil {
			return serviceError(c, "Failed to fetch vote", err)
		}
		return success(c, vote)
	}
}

// ==================== DEBATES ====================

func ListDebates(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var filter models.DebateFilter
		if ok, err := parseQuery(c, a.Validator, &filter); !ok {
			return err
		}

		page, err := a.Debates.List(c.UserContext(), filter)
		if err != nil {
			return serviceError(c, "Failed to fetch debates", err)
		}
		return success(c, page)
	}
}

// GetDebate looks a sitting up by date (YYYY-MM-DD) and Hansard number
func GetDebate(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dateStr := c.Params("date")
		if err := a.Validator.Var("date", dateStr, "required,dateformat"); err != nil {
			return validationError(c, err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return badRequest(c, "Invalid date")
		}

		number := c.Params("number")
		if number == "" || len(number) > 20 {
			return badRequest(c, "Debate number is required")
		}

		debate, err := a.Debates.Get(c.UserContext(), date, number)
		if err != nil {
			return serviceError(c, "Failed to fetch debate", err)
		}
		return success(c, debate)
	}
}

// ==================== COMMITTEES ====================

func ListCommittees(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var filter models.CommitteeFilter
		if ok, err := parseQuery(c, a.Validator, &filter); !ok {
			return err
		}

		page, err := a.Committees.List(c.UserContext(), filter)
		if err != nil {
			return serviceError(c, "Failed to fetch committees", err)
		}
		return success(c, page)
	}
}

func GetCommittee(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		slug := models.NormalizeSlug(c.Params("slug"))
		if err := a.Validator.Var("slug", slug, "required,slug"); err != nil {
			return validationError(c, err)
		}

		committee, err := a.Committees.Get(c.UserContext(), slug)
		if err != nil {
			return serviceError(c, "Failed to fetch committee", err)
		}
		return success(c, committee)
	}
}
