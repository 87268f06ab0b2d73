package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/bridge-pay/bridge_pay/internal/apperr"
)

// StatusOf is the HTTP status an error renders with. *fiber.Error keeps its
// own code; classified errors use their kind.
func StatusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return apperr.KindOf(err).Status()
}
