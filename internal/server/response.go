package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/krismatthes/drawdash-sub002/internal/ledger"
	"github.com/krismatthes/drawdash-sub002/internal/risk"
)

func jsonSuccess(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

// jsonDomainError maps the error taxonomy onto HTTP statuses and stable
// machine-readable codes.
func jsonDomainError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return jsonError(c, fiber.StatusBadRequest, "INVALID_AMOUNT", err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return jsonError(c, fiber.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", err.Error())
	case errors.Is(err, ledger.ErrLimitExceeded):
		return jsonError(c, fiber.StatusUnprocessableEntity, "LIMIT_EXCEEDED", err.Error())
	case errors.Is(err, ledger.ErrMethodNotVerified):
		return jsonError(c, fiber.StatusForbidden, "METHOD_NOT_VERIFIED", err.Error())
	case errors.Is(err, ledger.ErrDuplicateRequest):
		return jsonError(c, fiber.StatusConflict, "DUPLICATE_REQUEST", err.Error())
	case errors.Is(err, ledger.ErrInvalidStateTransition):
		return jsonError(c, fiber.StatusConflict, "INVALID_STATE_TRANSITION", err.Error())
	case errors.Is(err, ledger.ErrProviderTimeout):
		return jsonError(c, fiber.StatusServiceUnavailable, "PROVIDER_TIMEOUT", err.Error())
	case errors.Is(err, risk.ErrFlagNotFound):
		return jsonError(c, fiber.StatusNotFound, "FLAG_NOT_FOUND", err.Error())
	default:
		return jsonError(c, fiber.StatusInternalServerError, "INTERNAL", err.Error())
	}
}
