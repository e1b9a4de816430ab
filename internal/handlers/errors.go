package handlers

import (
	"errors"

	"pasar/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// statusForError maps service errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, models.ErrInvalidTransition):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// validationMessages flattens validator errors into a field -> message map
// for the error envelope. Returns nil if err is not a validation error.
func validationMessages(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	messages := make(map[string]string)
	for _, e := range validationErrors {
		messages[e.Field()] = "Field '" + e.Field() + "' failed on the '" + e.Tag() + "' tag"
	}
	return messages
}
