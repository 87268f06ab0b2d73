package splits

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/bridge-pay/bridge_pay/internal/apperr"
)

// Handler exposes split group endpoints.
type Handler struct {
	service         *Service
	defaultCurrency string
}

// NewHandler constructs a split handler.
func NewHandler(service *Service, defaultCurrency string) *Handler {
	return &Handler{service: service, defaultCurrency: defaultCurrency}
}

type memberRequest struct {
	RecipientUserID string              `json:"recipient_user_id"`
	Payee           string              `json:"payee"`
	Method          Method              `json:"method"`
	Amount          decimal.NullDecimal `json:"amount"`
	PhoneNumber     string              `json:"phone_number"`
	WalletNumber    string              `json:"wallet_number"`
}

type createRequest struct {
	TotalAmount decimal.NullDecimal `json:"total_amount"`
	Currency    string              `json:"currency"`
	SplitType   string              `json:"split_type"`
	Method      Method              `json:"method"`
	Members     []memberRequest     `json:"members"`
}

type groupResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	TotalAmount string `json:"total_amount"`
	Currency    string `json:"currency"`
	SplitType   string `json:"split_type"`
	Status      string `json:"status"`
}

type memberResponse struct {
	ID              string `json:"id"`
	RecipientUserID string `json:"recipient_user_id,omitempty"`
	Payee           string `json:"payee,omitempty"`
	Method          Method `json:"method"`
	Amount          string `json:"amount"`
	Status          string `json:"status"`
	OrderRef        string `json:"order_reference,omitempty"`
}

func toResponse(v View) fiber.Map {
	members := make([]memberResponse, 0, len(v.Members))
	for _, m := range v.Members {
		members = append(members, memberResponse{
			ID:              m.ID,
			RecipientUserID: m.RecipientUserID,
			Payee:           m.Payee,
			Method:          m.Method,
			Amount:          m.Amount.StringFixed(2),
			Status:          m.Status,
			OrderRef:        m.OrderRef,
		})
	}
	return fiber.Map{
		"ok": true,
		"group": groupResponse{
			ID:          v.Group.ID,
			UserID:      v.Group.UserID,
			TotalAmount: v.Group.TotalAmount.StringFixed(2),
			Currency:    v.Group.Currency,
			SplitType:   v.Group.SplitType,
			Status:      v.Group.Status,
		},
		"members": members,
	}
}

func caller(c *fiber.Ctx) (string, string, error) {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return "", "", apperr.ErrUnauthorized
	}
	role, _ := c.Locals("role").(string)
	return uid, role, nil
}

// Create stores a new split group.
func (h *Handler) Create(c *fiber.Ctx) error {
	uid, _, err := caller(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.New(apperr.KindValidation, "invalid_body", err.Error())
	}
	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = h.defaultCurrency
	}
	members := make([]MemberInput, 0, len(req.Members))
	for _, m := range req.Members {
		members = append(members, MemberInput{
			RecipientUserID: m.RecipientUserID,
			Payee:           m.Payee,
			Method:          Method(strings.ToLower(strings.TrimSpace(string(m.Method)))),
			Amount:          m.Amount.Decimal,
			PhoneNumber:     m.PhoneNumber,
			WalletNumber:    m.WalletNumber,
		})
	}
	view, err := h.service.Create(c.UserContext(), CreateInput{
		UserID:    uid,
		Currency:  currency,
		Total:     req.TotalAmount.Decimal,
		SplitType: req.SplitType,
		Method:    Method(strings.ToLower(strings.TrimSpace(string(req.Method)))),
		Members:   members,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toResponse(view))
}

// Get returns a group with its members.
func (h *Handler) Get(c *fiber.Ctx) error {
	uid, role, err := caller(c)
	if err != nil {
		return err
	}
	view, err := h.service.Get(c.UserContext(), c.Params("id"), uid, role)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(view))
}

// Execute pays the members of a group.
func (h *Handler) Execute(c *fiber.Ctx) error {
	uid, role, err := caller(c)
	if err != nil {
		return err
	}
	res, replayed, err := h.service.Execute(c.UserContext(), ExecuteInput{
		GroupID:        c.Params("id"),
		UserID:         uid,
		Role:           role,
		IdempotencyKey: c.Get("Idempotency-Key"),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"ok":        true,
		"completed": res.Completed,
		"pending":   res.Pending,
		"failed":    res.Failed,
		"replayed":  replayed,
	})
}
