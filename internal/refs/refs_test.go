package refs

import (
	"strings"
	"testing"
)

func TestFeeRefFormat(t *testing.T) {
	got := Fee("MERCHANT_PAYMENT", "tx-1", "MDR")
	if got != "fee-merchant_payment-tx-1-MDR" {
		t.Fatalf("unexpected ref %q", got)
	}
	if Sub(got, SideCustomer) != "fee-merchant_payment-tx-1-MDR-cust" {
		t.Fatalf("unexpected sub ref %q", Sub(got, SideCustomer))
	}
}

func TestFeeRefTruncates(t *testing.T) {
	long := strings.Repeat("x", 200)
	got := Fee("TOPUP", long, "CODE")
	if len(got) != MaxLength {
		t.Fatalf("expected length %d, got %d", MaxLength, len(got))
	}
	if Fee("TOPUP", long, "CODE") != got {
		t.Fatal("expected deterministic output")
	}
}

func TestOrderRef(t *testing.T) {
	id := "3f2b6c1e-8d4a-4b7e-9c2d-1a2b3c4d5e6f"
	got := OrderRef(id, 1)
	if got != "pi3f2b6c1e8d4a4b7e9c1" {
		t.Fatalf("unexpected order ref %q", got)
	}
}

func TestIntentRefs(t *testing.T) {
	if IntentWalletLeg("abc", 0) != "pi-abc-wallet-0" {
		t.Fatalf("unexpected wallet leg ref %q", IntentWalletLeg("abc", 0))
	}
	if IntentRefund("abc", 2) != "pi-abc-wallet-2-refund" {
		t.Fatalf("unexpected refund ref %q", IntentRefund("abc", 2))
	}
	if SplitLeg("g", "m", SideRecipient) != "split-g-m-rcpt" {
		t.Fatalf("unexpected split ref %q", SplitLeg("g", "m", SideRecipient))
	}
	if SplitExecuteKey("g1") != "payments-split-execute-g1" {
		t.Fatalf("unexpected execute key %q", SplitExecuteKey("g1"))
	}
	if got := SplitExecuteCallerKey("g1", "u1", "k-1"); got != "payments-split-execute-g1-u1-k-1" {
		t.Fatalf("unexpected caller execute key %q", got)
	}
	if SplitExecuteCallerKey("g1", "u1", "k-1") == SplitExecuteCallerKey("g2", "u1", "k-1") {
		t.Fatalf("caller keys must differ across groups")
	}
}
