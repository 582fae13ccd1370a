package events

import (
	"context"
	"time"

	"github.com/Huaoe/ElurcFleet/internal/domain"
)

type Type string

const (
	MemberCreated     Type = "member.created"
	MemberReverified  Type = "member.reverified"
	MemberSuspended   Type = "member.suspended"
	MemberRevoked     Type = "member.revoked"
	MemberReactivated Type = "member.reactivated"
	MemberDeleted     Type = "member.deleted"
)

// Event records a membership lifecycle change.
type Event struct {
	ID            string               `json:"id"`
	Type          Type                 `json:"type"`
	MemberID      domain.MemberID      `json:"memberId"`
	Wallet        domain.WalletAddress `json:"wallet"`
	Status        domain.MemberStatus  `json:"status"`
	Reason        string               `json:"reason,omitempty"`
	CorrelationID string               `json:"correlationId,omitempty"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

// Publisher delivers lifecycle events. Delivery is best-effort: callers log failures
// and never roll back the state change.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
