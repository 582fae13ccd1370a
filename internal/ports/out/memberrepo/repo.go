package memberrepo

import (
	"context"
	"time"

	"github.com/Huaoe/ElurcFleet/internal/domain"
)

// ListFilter narrows List results. A nil Status lists every non-deleted identity.
type ListFilter struct {
	Status *domain.MemberStatus
	Limit  int
}

// Repository persists member identities.
//
// Wallet uniqueness must be enforced by the store itself: two concurrent Create calls
// for the same wallet leave exactly one identity and the other gets ErrWalletAlreadyBound.
// List results are ordered by CreatedAt ascending, then ID.
type Repository interface {
	Create(ctx context.Context, m domain.MemberIdentity) error
	Update(ctx context.Context, m domain.MemberIdentity) error

	// GetByID returns the identity even when soft-deleted, for audit.
	GetByID(ctx context.Context, id domain.MemberID) (domain.MemberIdentity, error)
	// GetByWallet returns the non-deleted identity bound to the wallet.
	GetByWallet(ctx context.Context, wallet domain.WalletAddress) (domain.MemberIdentity, error)

	List(ctx context.Context, f ListFilter) ([]domain.MemberIdentity, error)
	CountByStatus(ctx context.Context) (map[domain.MemberStatus]int, error)

	// SoftDelete marks the identity deleted and frees its wallet.
	SoftDelete(ctx context.Context, id domain.MemberID, at time.Time) error
}
