package members

import "github.com/Huaoe/ElurcFleet/internal/domain"

// Optional is a tri-state field used to distinguish:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Optional[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Optional[T] { return Optional[T]{} }
func Null[T any]() Optional[T]        { return Optional[T]{specified: true, isNull: true} }
func Some[T any](v T) Optional[T]     { return Optional[T]{specified: true, value: v} }

func (o Optional[T]) IsSpecified() bool { return o.specified }
func (o Optional[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Optional[T]) Value() T          { return o.value }

// ProfilePatch is a partial profile update. DisplayName cannot be null;
// AvatarURL and Bio may be cleared with null.
type ProfilePatch struct {
	DisplayName Optional[string]
	AvatarURL   Optional[string]
	Bio         Optional[string]
}

type CreateVerifiedInput struct {
	Wallet       domain.WalletAddress
	TokenAccount string
	// Metadata seeds the audit map, typically with the verifying NFT's details.
	Metadata      domain.Metadata
	CorrelationID string
}

// Stats summarizes non-deleted identities.
type Stats struct {
	Counts map[domain.MemberStatus]int
	Total  int
}
