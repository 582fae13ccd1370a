package main

import (
	"time"

	"github.com/Huaoe/ElurcFleet/internal/domain"
)

type identityView struct {
	ID              string            `json:"id"`
	Wallet          string            `json:"wallet"`
	Status          string            `json:"status"`
	VerifiedAt      *time.Time        `json:"verifiedAt,omitempty"`
	LastVerifiedAt  *time.Time        `json:"lastVerifiedAt,omitempty"`
	NFTTokenAccount string            `json:"nftTokenAccount,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	DeletedAt       *time.Time        `json:"deletedAt,omitempty"`
}

type profileView struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
	Bio         *string `json:"bio,omitempty"`
}

func identityOutput(m domain.MemberIdentity) identityView {
	return identityView{
		ID:              string(m.ID),
		Wallet:          string(m.Wallet),
		Status:          string(m.Status),
		VerifiedAt:      m.VerifiedAt,
		LastVerifiedAt:  m.LastVerifiedAt,
		NFTTokenAccount: m.NFTTokenAccount,
		Metadata:        m.Metadata.Flatten(),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		DeletedAt:       m.DeletedAt,
	}
}

func profileOutput(p domain.MemberProfile) profileView {
	return profileView{
		ID:          string(p.ID),
		DisplayName: p.Name(),
		AvatarURL:   p.AvatarURL,
		Bio:         p.Bio,
	}
}
