package profilerepo

import (
	"context"
	"errors"
	"time"

	"github.com/Huaoe/ElurcFleet/internal/domain"
)

var (
	ErrNotFound = errors.New("member profile not found")

	// ErrProfileExists indicates the identity already has a non-deleted profile.
	ErrProfileExists = errors.New("member profile already exists for identity")

	// ErrDisplayNameTaken indicates another profile (deleted or not) uses the display name.
	ErrDisplayNameTaken = errors.New("display name already taken")
)

// Repository persists member profiles, one per identity.
type Repository interface {
	Create(ctx context.Context, p domain.MemberProfile) error
	Update(ctx context.Context, p domain.MemberProfile) error

	GetByIdentity(ctx context.Context, id domain.MemberID) (domain.MemberProfile, error)

	SoftDeleteByIdentity(ctx context.Context, id domain.MemberID, at time.Time) error
}
