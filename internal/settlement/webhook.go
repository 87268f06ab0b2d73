package settlement

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bridge-pay/bridge_pay/internal/apperr"
	"github.com/bridge-pay/bridge_pay/internal/provider"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Webhook-Signature"

var (
	ErrInvalidSignature = apperr.New(apperr.KindUnauthorized, "invalid_signature", "webhook signature mismatch")
	ErrInvalidPayload   = apperr.New(apperr.KindValidation, "invalid_payload", "webhook payload carries no reference or status")
)

// Sign returns the signature the webhook expects for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// WebhookHandler receives provider status callbacks.
type WebhookHandler struct {
	reconciler *Reconciler
	secret     []byte
}

// NewWebhookHandler builds the handler. An empty secret disables signature
// checks.
func NewWebhookHandler(r *Reconciler, secret string) *WebhookHandler {
	return &WebhookHandler{reconciler: r, secret: []byte(secret)}
}

// Handle verifies, parses and reconciles one callback.
func (h *WebhookHandler) Handle(c *fiber.Ctx) error {
	body := c.Body()
	if len(h.secret) > 0 {
		got := strings.TrimSpace(c.Get(SignatureHeader))
		if !hmac.Equal([]byte(strings.ToLower(got)), []byte(Sign(h.secret, body))) {
			return ErrInvalidSignature
		}
	}
	u, err := ParseUpdate(body)
	if err != nil {
		return ErrInvalidPayload
	}
	outcome, err := h.reconciler.Apply(c.UserContext(), SourceWebhook, u)
	if err != nil && outcome == OutcomeError {
		return err
	}
	if outcome == OutcomeInvalid {
		return ErrInvalidPayload
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"ok": true, "outcome": outcome})
}

type envelope struct {
	ExternalReference string `json:"external_reference"`
	Reference         string `json:"reference"`
	OrderReference    string `json:"order_reference"`
	TransactionID     string `json:"transaction_id"`
	Status            string `json:"status"`
}

type payload struct {
	envelope
	Data *envelope `json:"data"`
}

// ParseUpdate reads a provider callback or queue message. Fields under
// "data" win over top-level ones.
func ParseUpdate(body []byte) (provider.StatusUpdate, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return provider.StatusUpdate{}, err
	}
	pick := func(get func(envelope) string) string {
		if p.Data != nil {
			if v := strings.TrimSpace(get(*p.Data)); v != "" {
				return v
			}
		}
		return strings.TrimSpace(get(p.envelope))
	}
	u := provider.StatusUpdate{
		OrderRef: pick(func(e envelope) string {
			switch {
			case e.ExternalReference != "":
				return e.ExternalReference
			case e.OrderReference != "":
				return e.OrderReference
			}
			return e.Reference
		}),
		ProviderTxID: pick(func(e envelope) string { return e.TransactionID }),
		Status:       pick(func(e envelope) string { return e.Status }),
		Raw:          append(json.RawMessage(nil), body...),
	}
	return u, u.Validate()
}
