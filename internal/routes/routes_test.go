package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/bridge-pay/bridge_pay/internal/config"
	"github.com/bridge-pay/bridge_pay/internal/ledger"
	"github.com/bridge-pay/bridge_pay/internal/logging"
)

const testSecret = "test-secret"

func newTestApp(t *testing.T) (*fiber.App, *Runtime) {
	t.Helper()
	cfg := config.Config{
		AppName:            "bridge-test",
		AppEnv:             "test",
		JWTSecret:          testSecret,
		IdempotencyTTL:     time.Hour,
		PlatformUserID:     "platform",
		PlatformCurrencies: []string{"KES"},
		DefaultCurrency:    "KES",
		RateLimitPerMinute: 30,
		StatusSyncMinAge:   time.Minute,
	}
	logger := logging.Discard()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	rt, err := Setup(app, Deps{Cfg: cfg, Logger: logger, Registry: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	return app, rt
}

func token(t *testing.T, sub string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func do(t *testing.T, app *fiber.App, method, path, user, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if user != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token(t, user))
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestHealthAndMetrics(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := do(t, app, http.MethodGet, "/healthz", "", "")
	if status != http.StatusOK || body["ok"] != true {
		t.Fatalf("healthz: %d %v", status, body)
	}
	do(t, app, http.MethodGet, "/api/v1/ping", "", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(raw), "bridge_http_requests_total") {
		t.Fatalf("metrics: %d %s", resp.StatusCode, raw)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := do(t, app, http.MethodGet, "/api/v1/wallets/me", "", "")
	if status != http.StatusUnauthorized || body["ok"] != false || body["error"] != "unauthorized" {
		t.Fatalf("unexpected response: %d %v", status, body)
	}
}

func TestUnknownRouteRendersEnvelope(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := do(t, app, http.MethodGet, "/nope", "", "")
	if status != http.StatusNotFound || body["error"] != "not_found" {
		t.Fatalf("unexpected response: %d %v", status, body)
	}
}

func TestWalletIntentSettlesOverHTTP(t *testing.T) {
	app, rt := newTestApp(t)

	status, body := do(t, app, http.MethodGet, "/api/v1/wallets/me", "alice", "")
	if status != http.StatusOK {
		t.Fatalf("wallet me: %d %v", status, body)
	}
	walletID := body["wallet"].(map[string]any)["id"].(string)
	if _, err := rt.Ledger.Post(context.Background(), ledger.Posting{
		WalletID:  walletID,
		Direction: ledger.Credit,
		Amount:    decimal.RequireFromString("100.00"),
		Currency:  "KES",
		Ref:       "seed-alice",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	status, body = do(t, app, http.MethodPost, "/api/v1/payments/intents", "alice",
		`{"amount_due":"40.00","merchant_id":"shop","funding_plan":[{"type":"BRIDGE_WALLET","amount":"40.00"}]}`)
	if status != http.StatusCreated {
		t.Fatalf("create intent: %d %v", status, body)
	}
	intentID := body["intent"].(map[string]any)["id"].(string)

	status, body = do(t, app, http.MethodPost, "/api/v1/payments/intents/"+intentID+"/confirm", "bob", "")
	if status != http.StatusForbidden {
		t.Fatalf("foreign confirm: %d %v", status, body)
	}

	status, body = do(t, app, http.MethodPost, "/api/v1/payments/intents/"+intentID+"/confirm", "alice", "")
	if status != http.StatusOK || body["status"] != "SETTLED" {
		t.Fatalf("confirm: %d %v", status, body)
	}

	status, body = do(t, app, http.MethodGet, "/api/v1/wallets/"+walletID+"/balance", "alice", "")
	if status != http.StatusOK {
		t.Fatalf("balance: %d %v", status, body)
	}
	for _, path := range []string{"/entries", "/transactions"} {
		if status, body = do(t, app, http.MethodGet, "/api/v1/wallets/"+walletID+path, "alice", ""); status != http.StatusOK {
			t.Fatalf("%s: %d %v", path, status, body)
		}
	}
	if status, _ = do(t, app, http.MethodGet, "/api/v1/wallets/"+walletID+"/balance", "bob", ""); status != http.StatusForbidden {
		t.Fatalf("foreign balance: %d", status)
	}
	bal, _ := rt.Wallets.Get(context.Background(), walletID)
	if !bal.Balance.Equal(decimal.RequireFromString("60")) {
		t.Fatalf("expected balance 60, got %s", bal.Balance)
	}

	status, body = do(t, app, http.MethodPost, "/api/v1/payments/intents/"+intentID+"/confirm", "alice", "")
	if status != http.StatusBadRequest {
		t.Fatalf("second confirm: %d %v", status, body)
	}
}

func TestFeeQuoteValidatesCategory(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := do(t, app, http.MethodGet, "/api/v1/fees/quote?applies_to=BOGUS&amount=10", "alice", "")
	if status != http.StatusBadRequest || body["ok"] != false {
		t.Fatalf("unexpected response: %d %v", status, body)
	}
	status, body = do(t, app, http.MethodGet, "/api/v1/fees/quote?applies_to=TOPUP&amount=10", "alice", "")
	if status != http.StatusOK || body["total"] != "0.00" {
		t.Fatalf("unexpected quote: %d %v", status, body)
	}
}

func TestWebhookIsPublicAndReportsUnmatched(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := do(t, app, http.MethodPost, "/api/v1/webhooks/provider", "",
		`{"external_reference":"unknown-ref","status":"SUCCESS"}`)
	if status != http.StatusOK || body["outcome"] != "unmatched" {
		t.Fatalf("unexpected response: %d %v", status, body)
	}
}
