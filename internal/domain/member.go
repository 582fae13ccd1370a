package domain

import "time"

// MemberStatus is the lifecycle state of a member identity.
type MemberStatus string

const (
	StatusPending   MemberStatus = "pending"
	StatusVerified  MemberStatus = "verified"
	StatusSuspended MemberStatus = "suspended"
	StatusRevoked   MemberStatus = "revoked"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []MemberStatus{StatusPending, StatusVerified, StatusSuspended, StatusRevoked}

func (s MemberStatus) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusSuspended, StatusRevoked:
		return true
	}
	return false
}

// Metadata keys written by the membership lifecycle.
const (
	MetaSuspendedAt         = "suspended_at"
	MetaSuspensionReason    = "suspension_reason"
	MetaRevokedAt           = "revoked_at"
	MetaRevocationReason    = "revocation_reason"
	MetaReactivatedAt       = "reactivated_at"
	MetaCorrelationID       = "verification_correlation_id"
	MetaNFTMint             = "nft_mint"
	MetaNFTName             = "nft_name"
	MetaNFTSymbol           = "nft_symbol"
	MetaNFTURI              = "nft_uri"
	MetaNFTCollection       = "nft_collection"
	MetaNFTSellerFeeBasisPt = "nft_seller_fee_basis_points"
)

// MemberIdentity is one verified wallet's membership record.
type MemberIdentity struct {
	ID MemberID
	// LinkedAccountID optionally references an external user account; nil means unlinked.
	LinkedAccountID *string
	Wallet          WalletAddress
	Status          MemberStatus

	// VerifiedAt is set by the first successful verification and never overwritten.
	VerifiedAt     *time.Time
	LastVerifiedAt *time.Time
	// NFTTokenAccount is the token account (or mint) currently backing verification.
	NFTTokenAccount string

	Metadata Metadata

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (m MemberIdentity) IsPending() bool   { return m.Status == StatusPending }
func (m MemberIdentity) IsVerified() bool  { return m.Status == StatusVerified }
func (m MemberIdentity) IsSuspended() bool { return m.Status == StatusSuspended }
func (m MemberIdentity) IsRevoked() bool   { return m.Status == StatusRevoked }
func (m MemberIdentity) IsDeleted() bool   { return m.DeletedAt != nil }

// AnonymousDisplayName is shown when a profile has no usable display name.
const AnonymousDisplayName = "Anonymous Member"

// MemberProfile is the 1:1 public profile attached to a member identity.
type MemberProfile struct {
	ID         ProfileID
	IdentityID MemberID

	DisplayName string
	AvatarURL   *string
	Bio         *string

	Metadata Metadata

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Name returns the display name, falling back to the anonymous placeholder.
func (p MemberProfile) Name() string {
	if p.DisplayName == "" {
		return AnonymousDisplayName
	}
	return p.DisplayName
}
