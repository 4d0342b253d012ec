package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/id"
)

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case tuition.IsNotFound(err):
		return fiber.StatusNotFound
	case tuition.IsIllegalTransition(err), errors.Is(err, tuition.ErrAlreadyExists):
		return fiber.StatusConflict
	case tuition.IsValidation(err):
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

// errorHandler renders every error as an ErrorResponse. Server errors are
// logged and their details withheld.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusFor(err)
		message := err.Error()
		if code >= fiber.StatusInternalServerError {
			logger.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err)
			message = "internal server error"
		}
		return c.Status(code).JSON(ErrorResponse{Error: true, Message: message})
	}
}

// fieldParser parses identifier fields, collecting one validation error per
// bad field.
type fieldParser struct {
	err tuition.MultiError
}

func (p *fieldParser) required(field, raw string) id.ID {
	if raw == "" {
		p.err.Add(tuition.ValidationError{Field: field, Message: "is required"})
		return id.Nil
	}
	return p.optional(field, raw)
}

func (p *fieldParser) optional(field, raw string) id.ID {
	v, err := id.FromString(raw)
	if err != nil {
		p.err.Add(tuition.ValidationError{Field: field, Message: err.Error()})
		return id.Nil
	}
	return v
}
