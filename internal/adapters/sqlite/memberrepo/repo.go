package memberrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Huaoe/ElurcFleet/internal/adapters/sqlite"
	"github.com/Huaoe/ElurcFleet/internal/domain"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/memberrepo"
)

// Repo is a SQLite implementation of memberrepo.Repository.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, m domain.MemberIdentity) error {
	row, err := toRow(m)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Create(&row).Error
	switch {
	case err == nil:
		return nil
	case sqlite.IsUniqueViolation(err, "member_identities", "wallet_address"):
		return memberrepo.ErrWalletAlreadyBound
	case sqlite.IsUniqueViolation(err, "member_identities", "id"):
		return memberrepo.ErrAlreadyExists
	}
	return err
}

func (r *Repo) Update(ctx context.Context, m domain.MemberIdentity) error {
	row, err := toRow(m)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing sqlite.IdentityRow
		if err := tx.Select("wallet_address", "membership_status").Where("id = ?", row.ID).Take(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return memberrepo.ErrNotFound
			}
			return err
		}
		if existing.WalletAddress != row.WalletAddress {
			return memberrepo.ErrWalletImmutable
		}
		if existing.Status == string(domain.StatusRevoked) {
			return memberrepo.ErrRevoked
		}
		res := tx.Model(&sqlite.IdentityRow{}).
			Where("id = ? AND membership_status <> ?", row.ID, string(domain.StatusRevoked)).
			UpdateColumns(map[string]any{
				"linked_account_id": row.LinkedAccountID,
				"membership_status": row.Status,
				"verified_at":       row.VerifiedAt,
				"last_verified_at":  row.LastVerifiedAt,
				"nft_token_account": row.NFTTokenAccount,
				"metadata":          row.Metadata,
				"updated_at":        row.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return memberrepo.ErrRevoked
		}
		return nil
	})
}

func (r *Repo) GetByID(ctx context.Context, id domain.MemberID) (domain.MemberIdentity, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", string(id)))
}

func (r *Repo) GetByWallet(ctx context.Context, wallet domain.WalletAddress) (domain.MemberIdentity, error) {
	return r.first(r.db.WithContext(ctx).Where("wallet_address = ? AND deleted_at IS NULL", string(wallet)))
}

func (r *Repo) first(q *gorm.DB) (domain.MemberIdentity, error) {
	var row sqlite.IdentityRow
	if err := q.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.MemberIdentity{}, memberrepo.ErrNotFound
		}
		return domain.MemberIdentity{}, err
	}
	return fromRow(row)
}

func (r *Repo) List(ctx context.Context, f memberrepo.ListFilter) ([]domain.MemberIdentity, error) {
	q := r.db.WithContext(ctx).Where("deleted_at IS NULL").Order("created_at ASC, id ASC")
	if f.Status != nil {
		q = q.Where("membership_status = ?", string(*f.Status))
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var rows []sqlite.IdentityRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.MemberIdentity, 0, len(rows))
	for _, row := range rows {
		m, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *Repo) CountByStatus(ctx context.Context) (map[domain.MemberStatus]int, error) {
	var rows []struct {
		Status string
		N      int
	}
	err := r.db.WithContext(ctx).Model(&sqlite.IdentityRow{}).
		Select("membership_status AS status, count(*) AS n").
		Where("deleted_at IS NULL").
		Group("membership_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.MemberStatus]int, len(domain.AllStatuses))
	for _, r := range rows {
		out[domain.MemberStatus(r.Status)] = r.N
	}
	return out, nil
}

func (r *Repo) SoftDelete(ctx context.Context, id domain.MemberID, at time.Time) error {
	at = at.UTC()
	res := r.db.WithContext(ctx).Model(&sqlite.IdentityRow{}).
		Where("id = ? AND deleted_at IS NULL", string(id)).
		UpdateColumns(map[string]any{"deleted_at": at, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return memberrepo.ErrNotFound
	}
	return nil
}

func toRow(m domain.MemberIdentity) (sqlite.IdentityRow, error) {
	meta, err := sqlite.EncodeMetadata(m.Metadata)
	if err != nil {
		return sqlite.IdentityRow{}, err
	}
	return sqlite.IdentityRow{
		ID:              string(m.ID),
		LinkedAccountID: m.LinkedAccountID,
		WalletAddress:   string(m.Wallet),
		Status:          string(m.Status),
		VerifiedAt:      sqlite.UTC(m.VerifiedAt),
		LastVerifiedAt:  sqlite.UTC(m.LastVerifiedAt),
		NFTTokenAccount: m.NFTTokenAccount,
		Metadata:        meta,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
		DeletedAt:       sqlite.UTC(m.DeletedAt),
	}, nil
}

func fromRow(row sqlite.IdentityRow) (domain.MemberIdentity, error) {
	meta, err := sqlite.DecodeMetadata(row.Metadata)
	if err != nil {
		return domain.MemberIdentity{}, err
	}
	return domain.MemberIdentity{
		ID:              domain.MemberID(row.ID),
		LinkedAccountID: row.LinkedAccountID,
		Wallet:          domain.WalletAddress(row.WalletAddress),
		Status:          domain.MemberStatus(row.Status),
		VerifiedAt:      sqlite.UTC(row.VerifiedAt),
		LastVerifiedAt:  sqlite.UTC(row.LastVerifiedAt),
		NFTTokenAccount: row.NFTTokenAccount,
		Metadata:        meta,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
		DeletedAt:       sqlite.UTC(row.DeletedAt),
	}, nil
}
