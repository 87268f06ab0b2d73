// Package refs builds the deterministic idempotency references written to the
// ledger, the billing ledger and the payment provider. Every caller goes
// through these functions so the same logical operation always produces the
// same reference.
package refs

import (
	"fmt"
	"strings"
)

// MaxLength bounds a base reference. Sub-reference suffixes (-cust, -mrc,
// -plat, -rcpt, -refund) are appended after truncation.
const MaxLength = 120

const orderRefIDChars = 18

// Fee payer sides.
const (
	SideCustomer  = "cust"
	SideMerchant  = "mrc"
	SidePlatform  = "plat"
	SideRecipient = "rcpt"
)

func truncate(s string) string {
	if len(s) > MaxLength {
		return s[:MaxLength]
	}
	return s
}

// Build joins parts with "-" and truncates the result to MaxLength.
func Build(parts ...string) string {
	return truncate(strings.Join(parts, "-"))
}

// Sub appends a side suffix to a base reference.
func Sub(base, side string) string {
	return base + "-" + side
}

// Fee is the billing line reference for a fee code on a transaction.
func Fee(txType, txID, feeCode string) string {
	return Build("fee", strings.ToLower(txType), txID, feeCode)
}

// IntentWalletLeg references the wallet debit of funding plan leg i.
func IntentWalletLeg(intentID string, index int) string {
	return Build("pi", intentID, "wallet", fmt.Sprint(index))
}

// IntentRefund references the compensating credit for wallet leg i.
func IntentRefund(intentID string, index int) string {
	return Sub(IntentWalletLeg(intentID, index), "refund")
}

// IntentMerchantCredit references the merchant payout of a settled intent.
func IntentMerchantCredit(intentID string) string {
	return Build("pi", intentID, "merchant")
}

// OrderRef is the short provider-safe order reference for external leg i.
func OrderRef(intentID string, index int) string {
	compact := strings.ReplaceAll(intentID, "-", "")
	if len(compact) > orderRefIDChars {
		compact = compact[:orderRefIDChars]
	}
	return fmt.Sprintf("pi%s%d", compact, index)
}

// SplitMemberOrder is the provider order reference of a split member.
func SplitMemberOrder(groupID, memberID string) string {
	return Build(groupID, memberID)
}

// SplitLeg references one side of a wallet-to-wallet split transfer.
func SplitLeg(groupID, memberID, side string) string {
	return Sub(Build("split", groupID, memberID), side)
}

// SplitExecuteKey is the default idempotency key of a split execution.
func SplitExecuteKey(groupID string) string {
	return Build("payments-split-execute", groupID)
}

// SplitExecuteCallerKey scopes a caller-supplied idempotency key to the
// group and the caller. It is not truncated so distinct keys stay distinct.
func SplitExecuteCallerKey(groupID, userID, key string) string {
	return SplitExecuteKey(groupID) + "-" + userID + "-" + key
}

// TopUp references a provider-confirmed wallet top-up.
func TopUp(providerRef string) string {
	return Build("topup", providerRef)
}

// Withdrawal references a wallet withdrawal.
func Withdrawal(providerRef string) string {
	return Build("withdraw", providerRef)
}

// Webhook keys a provider status delivery for deduplication.
func Webhook(orderRef, status string) string {
	return Build("webhook", orderRef, strings.ToLower(status))
}
