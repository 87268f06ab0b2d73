package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bridge-pay/bridge_pay/internal/metrics"
)

// HTTPClient is the provider client over its JSON HTTP API.
type HTTPClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewHTTPClient builds a client with the given request timeout.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    m,
	}
}

type envelope struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func path(a Action) (string, error) {
	switch a {
	case ActionSTKPush, ActionWalletPayment:
		return "/api/v2/payment", nil
	case ActionRefund:
		return "/api/v2/payment/refund", nil
	case ActionTransactionStatus:
		return "/api/v2/payment/status-query", nil
	}
	return "", fmt.Errorf("unknown provider action %q", a)
}

// Call posts the action payload. A non-2xx answer or an error envelope is a
// non-OK Response, not an error.
func (c *HTTPClient) Call(ctx context.Context, r Request) (Response, error) {
	p, err := path(r.Action)
	if err != nil {
		return Response{}, err
	}
	body, err := json.Marshal(r.Payload)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+p, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if r.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", r.IdempotencyKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.metrics.ProviderCall(string(r.Action), false)
		return Response{}, fmt.Errorf("failed to execute provider request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ProviderCall(string(r.Action), false)
		return Response{}, fmt.Errorf("failed to read provider response: %w", err)
	}

	out := Response{Status: resp.StatusCode, Raw: raw}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && c.logger != nil {
			c.logger.Warn("provider response not json",
				slog.String("action", string(r.Action)),
				slog.Int("status", resp.StatusCode),
			)
		}
	}
	out.Data = env.Data
	if out.Data == nil {
		out.Data = map[string]any{}
	}
	if env.Message != "" {
		if _, ok := out.Data["message"]; !ok {
			out.Data["message"] = env.Message
		}
	}
	out.OK = resp.StatusCode >= 200 && resp.StatusCode < 300 && !strings.EqualFold(env.Status, "error")
	c.metrics.ProviderCall(string(r.Action), out.OK)
	if !out.OK && c.logger != nil {
		c.logger.Warn("provider call rejected",
			slog.String("action", string(r.Action)),
			slog.Int("status", resp.StatusCode),
			slog.String("message", env.Message),
		)
	}
	return out, nil
}
