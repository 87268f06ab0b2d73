package payments

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/bridge-pay/bridge_pay/internal/apperr"
)

// Handler exposes payment intent endpoints.
type Handler struct {
	service         *Service
	defaultCurrency string
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service, defaultCurrency string) *Handler {
	return &Handler{service: service, defaultCurrency: defaultCurrency}
}

type createRequest struct {
	AmountDue   decimal.NullDecimal `json:"amount_due"`
	Amount      decimal.NullDecimal `json:"amount"`
	Currency    string              `json:"currency"`
	MerchantID  string              `json:"merchant_id"`
	FundingPlan Plan                `json:"funding_plan"`
	Autopilot   *bool               `json:"autopilot"`
}

type confirmRequest struct {
	FundingPlan Plan                  `json:"funding_plan"`
	SourcesMeta map[string]SourceMeta `json:"sources_meta"`
}

type intentResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	MerchantID  string `json:"merchant_id,omitempty"`
	AmountDue   string `json:"amount_due"`
	Currency    string `json:"currency"`
	Status      Status `json:"status"`
	FundingPlan Plan   `json:"funding_plan"`
	CreatedAt   string `json:"created_at"`
}

type legResponse struct {
	Index        int        `json:"index"`
	Type         SourceType `json:"type"`
	Amount       string     `json:"amount"`
	Currency     string     `json:"currency"`
	OrderRef     string     `json:"order_reference"`
	ProviderTxID string     `json:"provider_tx_id,omitempty"`
	Status       string     `json:"status"`
}

func toIntentResponse(in Intent) intentResponse {
	plan := in.FundingPlan
	if plan == nil {
		plan = Plan{}
	}
	return intentResponse{
		ID:          in.ID,
		UserID:      in.UserID,
		MerchantID:  in.MerchantID,
		AmountDue:   in.AmountDue.StringFixed(2),
		Currency:    in.Currency,
		Status:      in.Status,
		FundingPlan: plan,
		CreatedAt:   in.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func caller(c *fiber.Ctx) (string, bool, error) {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return "", false, apperr.ErrUnauthorized
	}
	role, _ := c.Locals("role").(string)
	return uid, role == "admin", nil
}

// Create stores a new payment intent.
func (h *Handler) Create(c *fiber.Ctx) error {
	uid, _, err := caller(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.New(apperr.KindValidation, "invalid_body", err.Error())
	}
	amount := req.AmountDue
	if !amount.Valid {
		amount = req.Amount
	}
	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = h.defaultCurrency
	}
	autopilot := req.Autopilot == nil || *req.Autopilot

	intent, err := h.service.CreateIntent(c.UserContext(), CreateInput{
		UserID:     uid,
		MerchantID: req.MerchantID,
		Amount:     amount.Decimal,
		Currency:   currency,
		Plan:       req.FundingPlan,
		Autopilot:  autopilot,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"ok": true, "intent": toIntentResponse(intent)})
}

// Get returns an intent with its external legs.
func (h *Handler) Get(c *fiber.Ctx) error {
	uid, admin, err := caller(c)
	if err != nil {
		return err
	}
	view, err := h.service.Get(c.UserContext(), c.Params("id"), uid, admin)
	if err != nil {
		return err
	}
	legs := make([]legResponse, 0, len(view.Legs))
	for _, l := range view.Legs {
		legs = append(legs, legResponse{
			Index:        l.Index,
			Type:         l.Type,
			Amount:       l.Amount.StringFixed(2),
			Currency:     l.Currency,
			OrderRef:     l.OrderRef,
			ProviderTxID: l.ProviderTxID,
			Status:       l.Status,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"ok": true, "intent": toIntentResponse(view.Intent), "legs": legs})
}

// Confirm executes the funding plan of an intent.
func (h *Handler) Confirm(c *fiber.Ctx) error {
	uid, _, err := caller(c)
	if err != nil {
		return err
	}
	var req confirmRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperr.New(apperr.KindValidation, "invalid_body", err.Error())
		}
	}
	res, err := h.service.Confirm(c.UserContext(), ConfirmInput{
		IntentID:       c.Params("id"),
		UserID:         uid,
		Plan:           req.FundingPlan,
		Sources:        req.SourcesMeta,
		IdempotencyKey: c.Get("Idempotency-Key"),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"ok":            true,
		"intent_id":     res.IntentID,
		"status":        res.Status,
		"wallet_debits": res.WalletDebits,
		"external":      res.External,
	})
}
