package handlers

import (
	"errors"
	"log/slog"

	"parliament-api/middleware"
	"parliament-api/services"
	"parliament-api/validator"

	"github.com/gofiber/fiber/v2"
)

func success(c *fiber.Ctx, data any) error {
	return c.JSON(data)
}

func accepted(c *fiber.Ctx, data fiber.Map) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

func notFound(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": message})
}

func conflict(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": message})
}

func validationError(c *fiber.Ctx, err error) error {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  "Validation failed",
			"fields": fields,
		})
	}
	return badRequest(c, err.Error())
}

func serverErrorWithDetails(c *fiber.Ctx, message string, err error) error {
	slog.Error("server error",
		"request_id", middleware.RequestID(c),
		"method", c.Method(),
		"path", c.Path(),
		"message", message,
		"error", err,
	)

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":      message,
		"request_id": middleware.RequestID(c),
	})
}

// serviceError maps the service layer's sentinel errors onto responses
func serviceError(c *fiber.Ctx, message string, err error) error {
	switch {
	case errors.Is(err, services.ErrBillNotFound),
		errors.Is(err, services.ErrPoliticianNotFound),
		errors.Is(err, services.ErrVoteNotFound),
		errors.Is(err, services.ErrDebateNotFound),
		errors.Is(err, services.ErrCommitteeNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, services.ErrInvalidSession),
		errors.Is(err, services.ErrUnknownEntity),
		errors.Is(err, services.ErrUnknownFeedFormat):
		return badRequest(c, err.Error())
	case errors.Is(err, services.ErrIngestInProgress):
		return conflict(c, err.Error())
	case errors.Is(err, services.ErrIngestDisabled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	default:
		return serverErrorWithDetails(c, message, err)
	}
}

// parseQuery binds query parameters into a filter struct and validates it.
// When ok is false the error response has already been written.
func parseQuery(c *fiber.Ctx, v *validator.Validator, out any) (ok bool, err error) {
	if err := c.QueryParser(out); err != nil {
		return false, badRequest(c, "Invalid query parameters")
	}
	if err := v.Validate(out); err != nil {
		return false, validationError(c, err)
	}
	return true, nil
}
