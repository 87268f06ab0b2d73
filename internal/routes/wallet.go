package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bridge-pay/bridge_pay/internal/fees"
	"github.com/bridge-pay/bridge_pay/internal/funding"
	"github.com/bridge-pay/bridge_pay/internal/wallet"
)

// RegisterWalletRoutes wires wallet, funding and fee quote endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, fh *funding.Handler, quotes *fees.Handler) {
	r.Get("/wallets/me", h.Me)
	r.Get("/wallets/:walletId/balance", h.Balance)
	r.Get("/wallets/:walletId/entries", h.Entries)
	r.Get("/wallets/:walletId/transactions", h.Transactions)
	r.Post("/wallets/:walletId/topup", fh.TopUp)
	r.Post("/wallets/:walletId/withdraw", fh.Withdraw)
	r.Get("/fees/quote", quotes.Quote)
}
