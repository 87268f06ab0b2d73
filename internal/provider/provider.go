// Package provider is the client side of the external payment provider:
// STK push, external wallet payment, refund and transaction status queries.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Action names a provider operation.
type Action string

const (
	ActionSTKPush           Action = "stk_push"
	ActionWalletPayment     Action = "wallet_payment"
	ActionRefund            Action = "refund"
	ActionTransactionStatus Action = "transaction_status"
)

// Channel is the provider-specific code for a payment action.
func Channel(a Action) string {
	switch a {
	case ActionSTKPush:
		return "100001"
	case ActionWalletPayment:
		return "111111"
	}
	return ""
}

// Terminal and pending statuses as reported to the rest of the service.
const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// MapStatus normalises a provider status string.
func MapStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "succeeded", "successful", "completed", "complete", "paid":
		return StatusSuccess
	case "failed", "failure", "declined", "rejected", "error", "cancelled", "canceled":
		return StatusFailed
	}
	return StatusPending
}

// Terminal reports whether status is SUCCESS or FAILED.
func Terminal(status string) bool {
	return status == StatusSuccess || status == StatusFailed
}

// Request is one provider call. IdempotencyKey is forwarded so the provider
// can deduplicate retried calls.
type Request struct {
	Action         Action
	Payload        map[string]any
	IdempotencyKey string
}

// Response is the immediate provider answer. OK is false for rejected calls;
// transport failures are returned as errors instead.
type Response struct {
	OK     bool
	Status int
	Data   map[string]any
	Raw    json.RawMessage
}

// TransactionID returns the provider transaction id, if any.
func (r Response) TransactionID() string {
	return stringField(r.Data, "transaction_id")
}

// DataStatus returns the status field of the response data.
func (r Response) DataStatus() string {
	return stringField(r.Data, "status")
}

// Message returns the provider message, if any.
func (r Response) Message() string {
	return stringField(r.Data, "message")
}

// Client calls the provider.
type Client interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// Payment describes a collection request.
type Payment struct {
	Action      Action
	Account     string
	AccountName string
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	Description string
}

// Payload renders the provider request body for the payment.
func (p Payment) Payload() map[string]any {
	name := p.AccountName
	if name == "" {
		if p.Action == ActionSTKPush {
			name = "MSISDN"
		} else {
			name = "Wallet"
		}
	}
	return map[string]any{
		"acc_no":      p.Account,
		"acc_name":    name,
		"amount":      p.Amount.StringFixed(2),
		"reference":   p.Reference,
		"currency":    strings.ToUpper(p.Currency),
		"description": p.Description,
		"channel":     Channel(p.Action),
	}
}

// StatusUpdate is a provider-reported status for an order reference, from a
// webhook, the status queue or the poller.
type StatusUpdate struct {
	OrderRef     string          `json:"order_ref"`
	ProviderTxID string          `json:"provider_tx_id"`
	Status       string          `json:"status"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// Validate checks the update carries a reference and a known status.
func (u StatusUpdate) Validate() error {
	if strings.TrimSpace(u.OrderRef) == "" && strings.TrimSpace(u.ProviderTxID) == "" {
		return fmt.Errorf("status update needs an order reference or provider transaction id")
	}
	if u.Status == "" {
		return fmt.Errorf("status update needs a status")
	}
	return nil
}

// QueryStatus asks the provider for the current status of a transaction.
func QueryStatus(ctx context.Context, c Client, orderRef, providerTxID string) (string, error) {
	resp, err := c.Call(ctx, Request{
		Action:  ActionTransactionStatus,
		Payload: map[string]any{"transaction_id": providerTxID, "reference": orderRef},
	})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return StatusPending, nil
	}
	return MapStatus(resp.DataStatus()), nil
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case float64:
		return decimal.NewFromFloat(v).String()
	}
	return ""
}
