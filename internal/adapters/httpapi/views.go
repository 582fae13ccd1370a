package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"

	"github.com/Huaoe/ElurcFleet/internal/app/members"
	"github.com/Huaoe/ElurcFleet/internal/domain"
)

type ChallengeResponse struct {
	Nonce     string    `json:"nonce"`
	Timestamp int64     `json:"timestamp"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type VerifyRequest struct {
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"`
	Message       string `json:"message"`
}

type TokenView struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type VerifyResponse struct {
	Success       bool         `json:"success"`
	CorrelationID string       `json:"correlationId"`
	IsNewMember   bool         `json:"isNewMember"`
	Mint          string       `json:"mint,omitempty"`
	Member        MemberView   `json:"member"`
	Profile       *ProfileView `json:"profile,omitempty"`
	Token         TokenView    `json:"token"`
}

type MemberView struct {
	ID              string            `json:"id"`
	WalletAddress   string            `json:"walletAddress"`
	Status          string            `json:"status"`
	VerifiedAt      *time.Time        `json:"verifiedAt,omitempty"`
	LastVerifiedAt  *time.Time        `json:"lastVerifiedAt,omitempty"`
	NFTTokenAccount string            `json:"nftTokenAccount,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

type ProfileView struct {
	ID          string    `json:"id"`
	MemberID    string    `json:"memberId"`
	DisplayName string    `json:"displayName"`
	AvatarURL   *string   `json:"avatarUrl,omitempty"`
	Bio         *string   `json:"bio,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UpdateProfileRequest distinguishes absent fields from explicit nulls.
type UpdateProfileRequest struct {
	DisplayName nullable.Nullable[string] `json:"displayName,omitempty"`
	AvatarURL   nullable.Nullable[string] `json:"avatarUrl,omitempty"`
	Bio         nullable.Nullable[string] `json:"bio,omitempty"`
}

type StatsResponse struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"byStatus"`
	Collection string         `json:"collection,omitempty"`
}

type MembersResponse struct {
	Members []MemberView `json:"members"`
}

func memberView(m domain.MemberIdentity) MemberView {
	return MemberView{
		ID:              string(m.ID),
		WalletAddress:   string(m.Wallet),
		Status:          string(m.Status),
		VerifiedAt:      m.VerifiedAt,
		LastVerifiedAt:  m.LastVerifiedAt,
		NFTTokenAccount: m.NFTTokenAccount,
		Metadata:        m.Metadata.Flatten(),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func profileView(p domain.MemberProfile) ProfileView {
	return ProfileView{
		ID:          string(p.ID),
		MemberID:    string(p.IdentityID),
		DisplayName: p.Name(),
		AvatarURL:   p.AvatarURL,
		Bio:         p.Bio,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func optional(n nullable.Nullable[string]) members.Optional[string] {
	if !n.IsSpecified() {
		return members.Unspecified[string]()
	}
	if n.IsNull() {
		return members.Null[string]()
	}
	v, err := n.Get()
	if err != nil {
		return members.Unspecified[string]()
	}
	return members.Some(v)
}

func (req UpdateProfileRequest) patch() members.ProfilePatch {
	return members.ProfilePatch{
		DisplayName: optional(req.DisplayName),
		AvatarURL:   optional(req.AvatarURL),
		Bio:         optional(req.Bio),
	}
}
