package fees

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bridge-pay/bridge_pay/internal/apperr"
	"github.com/bridge-pay/bridge_pay/internal/money"
)

var (
	ErrUnknownCategory = apperr.New(apperr.KindValidation, "invalid_applies_to", "unknown fee category")
	ErrInvalidAmount   = apperr.New(apperr.KindValidation, "invalid_amount", "amount must be positive")
)

// Handler exposes fee quotes over HTTP.
type Handler struct {
	resolver        *Resolver
	defaultCurrency string
}

// NewHandler builds a fee handler.
func NewHandler(resolver *Resolver, defaultCurrency string) *Handler {
	return &Handler{resolver: resolver, defaultCurrency: defaultCurrency}
}

// Quote resolves the fees for a prospective transaction.
func (h *Handler) Quote(c *fiber.Ctx) error {
	category := Category(strings.ToUpper(c.Query("applies_to")))
	if !category.Valid() {
		return ErrUnknownCategory
	}
	amount, err := money.Parse(c.Query("amount"))
	if err != nil || !money.Positive(amount) {
		return ErrInvalidAmount
	}
	quote, err := h.resolver.Resolve(c.UserContext(), Request{
		AppliesTo:  category,
		Amount:     amount,
		Currency:   c.Query("currency", h.defaultCurrency),
		MerchantID: c.Query("merchant_id"),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"ok":    true,
		"items": quote.Items,
		"total": quote.Total.StringFixed(2),
	})
}
