package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/bridge-pay/bridge_pay/internal/logging"
	"github.com/bridge-pay/bridge_pay/internal/metrics"
)

func TestMapStatus(t *testing.T) {
	cases := map[string]string{
		"SUCCESS":    StatusSuccess,
		" completed": StatusSuccess,
		"paid":       StatusSuccess,
		"Declined":   StatusFailed,
		"canceled":   StatusFailed,
		"processing": StatusPending,
		"":           StatusPending,
	}
	for in, want := range cases {
		if got := MapStatus(in); got != want {
			t.Fatalf("MapStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestPaymentPayload(t *testing.T) {
	p := Payment{Action: ActionSTKPush, Account: "254700000000", Amount: decimal.RequireFromString("12.5"), Currency: "kes", Reference: "pi123", Description: "order"}
	body := p.Payload()
	if body["channel"] != "100001" || body["acc_name"] != "MSISDN" || body["amount"] != "12.50" || body["currency"] != "KES" {
		t.Fatalf("unexpected payload %+v", body)
	}
	w := Payment{Action: ActionWalletPayment, Account: "W-1", Amount: decimal.NewFromInt(3)}.Payload()
	if w["channel"] != "111111" || w["acc_name"] != "Wallet" {
		t.Fatalf("unexpected wallet payload %+v", w)
	}
}

func TestHTTPClientCall(t *testing.T) {
	var gotKey, gotAuth, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"transaction_id":"tx-9","status":"pending"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "secret", time.Second, metrics.New(prometheus.NewRegistry()), logging.Discard())
	resp, err := c.Call(context.Background(), Request{
		Action:         ActionSTKPush,
		Payload:        map[string]any{"reference": "pi1"},
		IdempotencyKey: "pi1",
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !resp.OK || resp.TransactionID() != "tx-9" || resp.DataStatus() != "pending" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if gotKey != "pi1" || gotAuth != "Bearer secret" || gotPath != "/api/v2/payment" || gotBody["reference"] != "pi1" {
		t.Fatalf("unexpected request key=%q auth=%q path=%q body=%v", gotKey, gotAuth, gotPath, gotBody)
	}
}

func TestHTTPClientRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"status":"error","message":"invalid msisdn"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", time.Second, nil, logging.Discard())
	resp, err := c.Call(context.Background(), Request{Action: ActionWalletPayment, Payload: map[string]any{}})
	if err != nil {
		t.Fatalf("rejection must not be an error: %v", err)
	}
	if resp.OK || resp.Status != http.StatusUnprocessableEntity || resp.Message() != "invalid msisdn" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestQueryStatusMapsResult(t *testing.T) {
	status, err := QueryStatus(context.Background(), StaticClient{Outcome: "completed"}, "pi1", "tx1")
	if err != nil || status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s %v", status, err)
	}
	status, _ = QueryStatus(context.Background(), StaticClient{}, "pi1", "tx1")
	if status != StatusPending {
		t.Fatalf("expected PENDING, got %s", status)
	}
}
