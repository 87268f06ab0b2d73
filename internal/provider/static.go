package provider

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// StaticClient simulates a provider that accepts every request. Payments are
// left pending and status queries report Outcome (pending when empty).
type StaticClient struct {
	Outcome string
}

// Call accepts the request with a synthetic transaction id.
func (s StaticClient) Call(_ context.Context, r Request) (Response, error) {
	status := "pending"
	if r.Action == ActionTransactionStatus && s.Outcome != "" {
		status = s.Outcome
	}
	data := map[string]any{"transaction_id": uuid.NewString(), "status": status}
	if ref, ok := r.Payload["reference"].(string); ok {
		data["reference"] = ref
	}
	raw, _ := json.Marshal(map[string]any{"status": "success", "data": data})
	return Response{OK: true, Status: 200, Data: data, Raw: raw}, nil
}
