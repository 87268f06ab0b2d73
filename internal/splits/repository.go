package splits

import (
	"context"
	"time"
)

// Repository persists split groups and members.
type Repository interface {
	CreateGroup(ctx context.Context, g Group, members []Member) error
	Group(ctx context.Context, id string) (Group, error)
	Members(ctx context.Context, groupID string) ([]Member, error)
	SetGroupStatus(ctx context.Context, id, status string) error
	// UpdateMember records the outcome of an execution attempt.
	UpdateMember(ctx context.Context, m Member) error
	// FindMember looks a member up by order reference, then provider tx id.
	FindMember(ctx context.Context, orderRef, providerTxID string) (Member, error)
	// SettleMember moves a pending member to status and reports false when
	// it was no longer pending.
	SettleMember(ctx context.Context, memberID, status, providerTxID string) (bool, error)
	PendingMembers(ctx context.Context, updatedBefore time.Time, limit int) ([]Member, error)
}
