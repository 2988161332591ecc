package handlers

import (
	"apotek/internal/apperrors"
	"apotek/internal/repositories"

	"github.com/gofiber/fiber/v2"
)

// respondError maps the service error taxonomy onto HTTP statuses and
// renders the shared message JSON envelope.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case apperrors.IsValidation(err), apperrors.IsInsufficientStock(err):
		status = fiber.StatusBadRequest
	case apperrors.IsNotFound(err):
		status = fiber.StatusNotFound
	case apperrors.IsAuthorization(err):
		status = fiber.StatusForbidden
	case apperrors.IsInvalidState(err):
		status = fiber.StatusConflict
	case apperrors.IsUpstream(err):
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{
		"message": err.Error(),
	})
}

// listParamsFrom reads the page/limit/search/filter query parameters.
func listParamsFrom(c *fiber.Ctx) repositories.ListParams {
	return repositories.ListParams{
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 10),
		Search: c.Query("search"),
		Filter: c.Query("filter"),
	}
}
