package splits

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bridge-pay/bridge_pay/internal/apperr"
	"github.com/bridge-pay/bridge_pay/internal/money"
)

// Status values shared by groups and members.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Split types.
const (
	TypeEqual  = "equal"
	TypeCustom = "custom"
)

// Method is how a member leg is paid.
type Method string

const (
	MethodBridgeWallet Method = "bridge_wallet"
	MethodSTK          Method = "stk"
	MethodWallet       Method = "wallet"
)

// Valid reports whether m is a supported method.
func (m Method) Valid() bool {
	switch m {
	case MethodBridgeWallet, MethodSTK, MethodWallet:
		return true
	}
	return false
}

// Group is a bill split owned by the paying user.
type Group struct {
	ID          string
	UserID      string
	TotalAmount decimal.Decimal
	Currency    string
	SplitType   string
	Status      string
	Metadata    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Member is one leg of a group.
type Member struct {
	ID              string
	GroupID         string
	Position        int
	RecipientUserID string
	Payee           string
	Method          Method
	Amount          decimal.Decimal
	Status          string
	PhoneNumber     string
	WalletNumber    string
	OrderRef        string
	ProviderTxID    string
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Result counts member outcomes of an execution.
type Result struct {
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
}

// DeriveStatus is completed when every member completed, pending when any
// member is pending, failed otherwise.
func DeriveStatus(members []Member) string {
	if len(members) == 0 {
		return StatusPending
	}
	all, anyPending := true, false
	for _, m := range members {
		if m.Status != StatusCompleted {
			all = false
		}
		if m.Status == StatusPending {
			anyPending = true
		}
	}
	switch {
	case all:
		return StatusCompleted
	case anyPending:
		return StatusPending
	}
	return StatusFailed
}

// EqualShares splits total into n shares in whole cents; the residual cent
// goes to the last share.
func EqualShares(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	cents := money.Cents(total)
	base := cents / int64(n)
	residual := cents - base*int64(n)
	out := make([]decimal.Decimal, n)
	for i := range out {
		c := base
		if i == n-1 {
			c += residual
		}
		out[i] = decimal.New(c, -money.Scale)
	}
	return out
}

var (
	ErrGroupNotFound    = apperr.New(apperr.KindNotFound, "not_found", "split group not found")
	ErrMemberNotFound   = apperr.New(apperr.KindNotFound, "member_not_found", "split member not found")
	ErrForbidden        = apperr.New(apperr.KindForbidden, "forbidden", "split group belongs to another user")
	ErrNoMembers        = apperr.New(apperr.KindValidation, "no_members", "split group has no members")
	ErrInvalidSplitType = apperr.New(apperr.KindValidation, "invalid_split_type", "split_type must be equal or custom")
	ErrInvalidTotal     = apperr.New(apperr.KindValidation, "invalid_total_amount", "total_amount must be positive")
	ErrInvalidShare     = apperr.New(apperr.KindValidation, "invalid_member_amount", "member amount must be positive")
	ErrSharesMismatch   = apperr.New(apperr.KindValidation, "members_sum_mismatch", "member amounts must sum to total_amount")
	ErrInvalidMethod    = apperr.New(apperr.KindValidation, "invalid_method", "unsupported member payment method")
)
