package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bridge-pay/bridge_pay/internal/fees"
)

// Billing line constants.
const (
	StatusPending = "pending"
	StatusPosted  = "posted"
	StatusVoid    = "void"

	PlatformAccount = "platform_revenue"
	DirectionCredit = "CREDIT"
)

// Line is a platform revenue accounting record for one fee on one transaction.
type Line struct {
	ID              string
	TxType          fees.Category
	TxID            string
	FeeCode         string
	Amount          decimal.Decimal
	Currency        string
	PayerAccount    fees.Payer
	PlatformAccount string
	Direction       string
	Status          string
	Ref             string
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Repository persists billing lines. Ref is unique.
type Repository interface {
	// UpsertPosted inserts the line as posted, or flips an existing line to
	// posted and merges metadata. It reports whether the line was already posted.
	UpsertPosted(ctx context.Context, line Line) (alreadyPosted bool, err error)
	// InsertPending inserts the line as pending unless the ref exists.
	InsertPending(ctx context.Context, line Line) (inserted bool, err error)
	// PromotePending flips every pending line of a transaction to posted.
	PromotePending(ctx context.Context, txType fees.Category, txID string) (int64, error)
	// VoidPending marks every pending line of a transaction void.
	VoidPending(ctx context.Context, txType fees.Category, txID string) (int64, error)
	ByTransaction(ctx context.Context, txType fees.Category, txID string) ([]Line, error)
}

// Task is a deferred fee application recorded when a best-effort apply left
// at least one fee line without its fund movement.
type Task struct {
	ID            string
	Request       ApplyRequest
	Attempts      int
	LastError     string
	Status        string
	NextAttemptAt time.Time
	CreatedAt     time.Time
}

// Task statuses.
const (
	TaskPending   = "pending"
	TaskCompleted = "completed"
	TaskAbandoned = "abandoned"
)

// Outbox stores deferred fee applications keyed by (tx type, tx id).
type Outbox interface {
	Enqueue(ctx context.Context, req ApplyRequest, lastErr string) error
	Due(ctx context.Context, now time.Time, limit int) ([]Task, error)
	Complete(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, lastErr string, next time.Time, abandon bool) error
}
