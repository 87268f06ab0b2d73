package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/bridge-pay/bridge_pay/internal/apperr"
	"github.com/bridge-pay/bridge_pay/internal/middleware"
)

// ErrorHandler renders every handler error as {ok:false, error, details?}.
// Unclassified errors are logged and hidden behind internal_error.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := middleware.StatusOf(err)
		body := fiber.Map{"ok": false}

		var fe *fiber.Error
		switch appErr, ok := apperr.As(err); {
		case ok:
			body["error"] = appErr.Code
			if appErr.Message != "" {
				body["message"] = appErr.Message
			}
			if len(appErr.Details) > 0 {
				body["details"] = appErr.Details
			}
		case errors.As(err, &fe):
			body["error"] = codeFor(fe.Code)
			body["message"] = fe.Message
		default:
			body["error"] = "internal_error"
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Int("status", status),
				slog.Any("error", err),
			)
		}
		return c.Status(status).JSON(body)
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusTooManyRequests:
		return "rate_limited"
	}
	if status >= http.StatusInternalServerError {
		return "internal_error"
	}
	return "request_failed"
}
