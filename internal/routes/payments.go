package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bridge-pay/bridge_pay/internal/payments"
	"github.com/bridge-pay/bridge_pay/internal/splits"
)

// RegisterPaymentRoutes wires payment intent and split endpoints. execute
// guards split execution, typically a rate limiter.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, sh *splits.Handler, execute fiber.Handler) {
	r.Post("/payments/intents", h.Create)
	r.Get("/payments/intents/:id", h.Get)
	r.Post("/payments/intents/:id/confirm", h.Confirm)

	r.Post("/payments/split", sh.Create)
	r.Get("/payments/split/:id", sh.Get)
	r.Post("/payments/split/:id/execute", execute, sh.Execute)
}
