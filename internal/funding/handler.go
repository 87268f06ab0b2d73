package funding

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/bridge-pay/bridge_pay/internal/apperr"
)

// Handler exposes wallet top-up and withdrawal endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type fundingRequest struct {
	Amount       decimal.NullDecimal `json:"amount"`
	PhoneNumber  string              `json:"phone_number"`
	WalletNumber string              `json:"wallet_number"`
	Reference    string              `json:"reference"`
}

type fundingResponse struct {
	ID           string `json:"id"`
	Kind         Kind   `json:"kind"`
	WalletID     string `json:"wallet_id"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Reference    string `json:"reference"`
	ProviderTxID string `json:"provider_tx_id,omitempty"`
	Status       string `json:"status"`
}

func toResponse(r Request) fundingResponse {
	return fundingResponse{
		ID:           r.ID,
		Kind:         r.Kind,
		WalletID:     r.WalletID,
		Amount:       r.Amount.StringFixed(2),
		Currency:     r.Currency,
		Reference:    r.Reference,
		ProviderTxID: r.ProviderTxID,
		Status:       r.Status,
	}
}

func (h *Handler) input(c *fiber.Ctx, walletFirst bool) (Input, error) {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return Input{}, apperr.ErrUnauthorized
	}
	var req fundingRequest
	if err := c.BodyParser(&req); err != nil {
		return Input{}, apperr.New(apperr.KindValidation, "invalid_body", err.Error())
	}
	account := req.PhoneNumber
	if walletFirst && req.WalletNumber != "" {
		account = req.WalletNumber
	}
	return Input{
		WalletID:  c.Params("walletId"),
		UserID:    uid,
		Amount:    req.Amount.Decimal,
		Account:   account,
		Reference: req.Reference,
	}, nil
}

// TopUp starts a wallet top-up.
func (h *Handler) TopUp(c *fiber.Ctx) error {
	in, err := h.input(c, false)
	if err != nil {
		return err
	}
	res, err := h.service.TopUp(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"ok": true, "funding": toResponse(res)})
}

// Withdraw starts a wallet withdrawal.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	in, err := h.input(c, true)
	if err != nil {
		return err
	}
	res, err := h.service.Withdraw(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"ok": true, "funding": toResponse(res)})
}
