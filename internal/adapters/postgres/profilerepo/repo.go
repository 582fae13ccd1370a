package profilerepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/Huaoe/ElurcFleet/internal/adapters/postgres"
	"github.com/Huaoe/ElurcFleet/internal/domain"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/profilerepo"
)

// Repo is a Postgres implementation of profilerepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, p domain.MemberProfile) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(p.ID))
	if err != nil {
		return fmt.Errorf("invalid profile id: %w", err)
	}
	identityID, err := uuid.Parse(string(p.IdentityID))
	if err != nil {
		return fmt.Errorf("invalid identity id: %w", err)
	}
	meta, err := postgres.EncodeMetadata(p.Metadata)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO member_profiles (
			id,
			identity_id,
			display_name,
			avatar_url,
			bio,
			metadata,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		id,
		identityID,
		p.DisplayName,
		p.AvatarURL,
		p.Bio,
		meta,
		p.CreatedAt.UTC(),
		p.UpdatedAt.UTC(),
	)
	if err != nil {
		switch {
		case postgres.IsUniqueViolation(err, "member_profiles_identity_active"),
			postgres.IsUniqueViolation(err, "member_profiles_pkey"):
			return profilerepo.ErrProfileExists
		case postgres.IsUniqueViolation(err, "member_profiles_display_name_unique"):
			return profilerepo.ErrDisplayNameTaken
		}
		return err
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, p domain.MemberProfile) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(p.ID))
	if err != nil {
		return profilerepo.ErrNotFound
	}
	meta, err := postgres.EncodeMetadata(p.Metadata)
	if err != nil {
		return err
	}

	ct, err := r.pool.Exec(ctx, `
		UPDATE member_profiles
		SET display_name = $2,
		    avatar_url = $3,
		    bio = $4,
		    metadata = $5,
		    updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL
	`,
		id,
		p.DisplayName,
		p.AvatarURL,
		p.Bio,
		meta,
		p.UpdatedAt.UTC(),
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "member_profiles_display_name_unique") {
			return profilerepo.ErrDisplayNameTaken
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return profilerepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByIdentity(ctx context.Context, identityID domain.MemberID) (domain.MemberProfile, error) {
	if r.pool == nil {
		return domain.MemberProfile{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(identityID))
	if err != nil {
		return domain.MemberProfile{}, profilerepo.ErrNotFound
	}

	var (
		id, iid uuid.UUID
		p       domain.MemberProfile
		rawMeta []byte
	)
	err = r.pool.QueryRow(ctx, `
		SELECT id, identity_id, display_name, avatar_url, bio, metadata, created_at, updated_at, deleted_at
		FROM member_profiles
		WHERE identity_id = $1 AND deleted_at IS NULL
	`, uid).Scan(&id, &iid, &p.DisplayName, &p.AvatarURL, &p.Bio, &rawMeta, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MemberProfile{}, profilerepo.ErrNotFound
		}
		return domain.MemberProfile{}, err
	}
	p.ID = domain.ProfileID(id.String())
	p.IdentityID = domain.MemberID(iid.String())
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	p.DeletedAt = postgres.UTCPtr(p.DeletedAt)
	if p.Metadata, err = postgres.DecodeMetadata(rawMeta); err != nil {
		return domain.MemberProfile{}, err
	}
	return p, nil
}

func (r *Repo) SoftDeleteByIdentity(ctx context.Context, identityID domain.MemberID, at time.Time) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(identityID))
	if err != nil {
		return profilerepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE member_profiles
		SET deleted_at = $2, updated_at = $2
		WHERE identity_id = $1 AND deleted_at IS NULL
	`, uid, at.UTC())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return profilerepo.ErrNotFound
	}
	return nil
}
