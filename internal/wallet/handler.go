package wallet

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bridge-pay/bridge_pay/internal/apperr"
	"github.com/bridge-pay/bridge_pay/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service         *Service
	defaultCurrency string
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service, defaultCurrency string) *Handler {
	return &Handler{service: service, defaultCurrency: defaultCurrency}
}

type walletResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"created_at"`
}

func toResponse(w ledger.Wallet) walletResponse {
	return walletResponse{
		ID:        w.ID,
		UserID:    w.UserID,
		Currency:  w.Currency,
		Balance:   w.Balance.StringFixed(2),
		CreatedAt: w.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Me returns (creating on first use) the caller's wallet for a currency.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return apperr.ErrUnauthorized
	}
	currency := strings.ToUpper(c.Query("currency", h.defaultCurrency))
	w, err := h.service.GetOrCreate(c.UserContext(), uid, currency)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"ok": true, "wallet": toResponse(w)})
}

// Balance returns the wallet balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	w, err := h.owned(c)
	if err != nil {
		return err
	}
	balance, err := h.service.Balance(c.UserContext(), w.ID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"ok":        true,
		"wallet_id": balance.WalletID,
		"currency":  balance.Currency,
		"balance":   balance.Amount.StringFixed(2),
		"timestamp": balance.AsOf,
	})
}

// Entries lists the ledger entries of a wallet.
func (h *Handler) Entries(c *fiber.Ctx) error {
	w, err := h.owned(c)
	if err != nil {
		return err
	}
	entries, err := h.service.Entries(c.UserContext(), w.ID)
	if err != nil {
		return err
	}
	items := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		items = append(items, fiber.Map{
			"id":            e.ID,
			"direction":     e.Direction,
			"amount":        e.Amount.StringFixed(2),
			"currency":      e.Currency,
			"ref":           e.Ref,
			"narration":     e.Narration,
			"balance_after": e.BalanceAfter.StringFixed(2),
			"created_at":    e.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"ok": true, "wallet_id": w.ID, "entries": items})
}

// Transactions returns the user-visible transaction log, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	w, err := h.owned(c)
	if err != nil {
		return err
	}
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := h.service.History(c.UserContext(), w.ID, limit)
	if err != nil {
		return err
	}
	items := make([]fiber.Map, 0, len(rows))
	for _, tx := range rows {
		items = append(items, fiber.Map{
			"id":           tx.ID,
			"type":         tx.Type,
			"direction":    tx.Direction,
			"amount":       tx.Amount.StringFixed(2),
			"currency":     tx.Currency,
			"external_ref": tx.ExternalRef,
			"status":       tx.Status,
			"created_at":   tx.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"ok": true, "wallet_id": w.ID, "transactions": items})
}

// owned loads the path wallet and checks the caller may read it.
func (h *Handler) owned(c *fiber.Ctx) (ledger.Wallet, error) {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return ledger.Wallet{}, apperr.ErrUnauthorized
	}
	w, err := h.service.Get(c.UserContext(), c.Params("walletId"))
	if err != nil {
		return ledger.Wallet{}, err
	}
	role, _ := c.Locals("role").(string)
	if w.UserID != uid && role != "admin" {
		return ledger.Wallet{}, apperr.ErrForbidden
	}
	return w, nil
}
