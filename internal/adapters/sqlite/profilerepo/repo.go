package profilerepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Huaoe/ElurcFleet/internal/adapters/sqlite"
	"github.com/Huaoe/ElurcFleet/internal/domain"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/profilerepo"
)

// Repo is a SQLite implementation of profilerepo.Repository.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, p domain.MemberProfile) error {
	meta, err := sqlite.EncodeMetadata(p.Metadata)
	if err != nil {
		return err
	}
	row := sqlite.ProfileRow{
		ID:          string(p.ID),
		IdentityID:  string(p.IdentityID),
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Bio:         p.Bio,
		Metadata:    meta,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
	err = r.db.WithContext(ctx).Create(&row).Error
	switch {
	case err == nil:
		return nil
	case sqlite.IsUniqueViolation(err, "member_profiles", "identity_id"),
		sqlite.IsUniqueViolation(err, "member_profiles", "id"):
		return profilerepo.ErrProfileExists
	case sqlite.IsUniqueViolation(err, "member_profiles", "display_name"):
		return profilerepo.ErrDisplayNameTaken
	}
	return err
}

func (r *Repo) Update(ctx context.Context, p domain.MemberProfile) error {
	meta, err := sqlite.EncodeMetadata(p.Metadata)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&sqlite.ProfileRow{}).
		Where("id = ? AND deleted_at IS NULL", string(p.ID)).
		UpdateColumns(map[string]any{
			"display_name": p.DisplayName,
			"avatar_url":   p.AvatarURL,
			"bio":          p.Bio,
			"metadata":     meta,
			"updated_at":   p.UpdatedAt.UTC(),
		})
	if res.Error != nil {
		if sqlite.IsUniqueViolation(res.Error, "member_profiles", "display_name") {
			return profilerepo.ErrDisplayNameTaken
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return profilerepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByIdentity(ctx context.Context, id domain.MemberID) (domain.MemberProfile, error) {
	var row sqlite.ProfileRow
	err := r.db.WithContext(ctx).
		Where("identity_id = ? AND deleted_at IS NULL", string(id)).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.MemberProfile{}, profilerepo.ErrNotFound
		}
		return domain.MemberProfile{}, err
	}
	meta, err := sqlite.DecodeMetadata(row.Metadata)
	if err != nil {
		return domain.MemberProfile{}, err
	}
	return domain.MemberProfile{
		ID:          domain.ProfileID(row.ID),
		IdentityID:  domain.MemberID(row.IdentityID),
		DisplayName: row.DisplayName,
		AvatarURL:   row.AvatarURL,
		Bio:         row.Bio,
		Metadata:    meta,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
		DeletedAt:   sqlite.UTC(row.DeletedAt),
	}, nil
}

func (r *Repo) SoftDeleteByIdentity(ctx context.Context, id domain.MemberID, at time.Time) error {
	at = at.UTC()
	res := r.db.WithContext(ctx).Model(&sqlite.ProfileRow{}).
		Where("identity_id = ? AND deleted_at IS NULL", string(id)).
		UpdateColumns(map[string]any{"deleted_at": at, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return profilerepo.ErrNotFound
	}
	return nil
}
