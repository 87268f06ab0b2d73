package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRound2HalfUp(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"2.675", "2.68"},
		{"10.004", "10"},
		{"0.125", "0.13"},
		{"100", "100"},
	}
	for _, tc := range cases {
		got := Round2(decimal.RequireFromString(tc.in))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("Round2(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestEqualCentsIgnoresSubCentDrift(t *testing.T) {
	a := decimal.RequireFromString("0.1").Add(decimal.RequireFromString("0.2"))
	if !EqualCents(a, decimal.RequireFromString("0.30")) {
		t.Fatalf("expected 0.1+0.2 to equal 0.30 in cents")
	}
	if EqualCents(decimal.RequireFromString("10.00"), decimal.RequireFromString("10.01")) {
		t.Fatalf("expected 10.00 != 10.01")
	}
}

func TestCents(t *testing.T) {
	if got := Cents(decimal.RequireFromString("1234.567")); got != 123457 {
		t.Fatalf("expected 123457, got %d", got)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("ten"); err == nil {
		t.Fatal("expected parse error")
	}
}
