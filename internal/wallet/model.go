package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the user-visible history row written next to a ledger
// posting. It is informational; the ledger entry is the source of truth.
type Transaction struct {
	ID          string
	WalletID    string
	Type        string
	Direction   string
	Amount      decimal.Decimal
	Currency    string
	ExternalRef string
	Status      string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// Transaction types and directions.
const (
	TypeDebit    = "DEBIT"
	TypeCredit   = "CREDIT"
	DirectionIn  = "IN"
	DirectionOut = "OUT"

	TransactionSuccess = "SUCCESS"
)

// Balance encapsulates available funds for a wallet.
type Balance struct {
	WalletID string
	Currency string
	Amount   decimal.Decimal
	AsOf     time.Time
}
