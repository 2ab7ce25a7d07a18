package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Sentinel errors for the lifecycle and repository core. Handlers match
// with errors.Is and translate through HTTPStatus; authorization denials
// are emitted by the handlers directly and have no sentinel here.
var (
	ErrNotFound             = errors.New("not found")
	ErrIncompleteSubmission = errors.New("completion report and worked hours are required")
	ErrIllegalTransition    = errors.New("illegal status transition")
	ErrDuplicateIdentity    = errors.New("username or email already exists")
	ErrValidation           = errors.New("validation error")
)

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrDuplicateIdentity):
		return fiber.StatusConflict
	case errors.Is(err, ErrIncompleteSubmission),
		errors.Is(err, ErrIllegalTransition),
		errors.Is(err, ErrValidation):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
