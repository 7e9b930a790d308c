package handlers

import (
	"parliament-api/app"
	"parliament-api/models"

	"github.com/gofiber/fiber/v2"
)

// ListBills returns a page of bills filtered by the query string
func ListBills(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var filter models.BillFilter
		if ok, err := parseQuery(c, a.Validator, &filter); !ok {
			return err
		}

		page, err := a.Bills.List(c.UserContext(), filter)
		if err != nil {
			return serviceError(c, "Failed to fetch bills", err)
		}

		return success(c, page)
	}
}

// GetBill looks a bill up by session code and number, e.g. /bills/44-1/C-11
func GetBill(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session := c.Params("session")
		number := c.Params("number")

		if err := a.Validator.Var("session", session, "required,session"); err != nil {
			return validationError(c, err)
		}
		if err := a.Validator.Var("number", number, "required,billnumber"); err != nil {
			return validationError(c, err)
		}

		bill, err := a.Bills.Get(c.UserContext(), session, number)
		if err != nil {
			return serviceError(c, "Failed to fetch bill", err)
		}

		return success(c, bill)
	}
}

func GetBillByID(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if err := a.Validator.Var("id", id, "required,uuid"); err != nil {
			return validationError(c, err)
		}

		bill, err := a.Bills.GetByID(c.UserContext(), id)
		if err != nil {
			return serviceError(c, "Failed to fetch bill", err)
		}

		return success(c, bill)
	}
}
