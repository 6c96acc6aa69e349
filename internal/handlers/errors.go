package handlers

import (
	"errors"

	"digistore/internal/apperrors"

	"github.com/gofiber/fiber/v2"
)

// errorStatus maps the service error taxonomy onto HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, apperrors.ErrAuth):
		return fiber.StatusUnauthorized
	case errors.Is(err, apperrors.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, apperrors.ErrExpired), errors.Is(err, apperrors.ErrAlreadyUsed):
		return fiber.StatusGone
	case errors.Is(err, apperrors.ErrDependency):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
