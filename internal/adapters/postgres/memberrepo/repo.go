package memberrepo

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
	"github.com/Huaoe/ElurcFleet/internal/ports/out/memberrepo"
)

const identityColumns = `
	id,
	linked_account_id,
	wallet_address,
	membership_status,
	verified_at,
	last_verified_at,
	nft_token_account,
	metadata,
	created_at,
	updated_at,
	deleted_at`

// Repo is a Postgres implementation of memberrepo.Repository.
// Wallet uniqueness is enforced by the member_identities_wallet_active partial index.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, m domain.MemberIdentity) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(m.ID))
	if err != nil {
		return fmt.Errorf("invalid member id: %w", err)
	}
	meta, err := postgres.EncodeMetadata(m.Metadata)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO member_identities (
			id,
			linked_account_id,
			wallet_address,
			membership_status,
			verified_at,
			last_verified_at,
			nft_token_account,
			metadata,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		id,
		m.LinkedAccountID,
		string(m.Wallet),
		string(m.Status),
		postgres.UTCPtr(m.VerifiedAt),
		postgres.UTCPtr(m.LastVerifiedAt),
		m.NFTTokenAccount,
		meta,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
	if err != nil {
		switch {
		case postgres.IsUniqueViolation(err, "member_identities_wallet_active"):
			return memberrepo.ErrWalletAlreadyBound
		case postgres.IsUniqueViolation(err, "member_identities_pkey"):
			return memberrepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, m domain.MemberIdentity) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(m.ID))
	if err != nil {
		return memberrepo.ErrNotFound
	}
	meta, err := postgres.EncodeMetadata(m.Metadata)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var wallet, status string
		err := tx.QueryRow(ctx, `
			SELECT wallet_address, membership_status FROM member_identities WHERE id = $1 FOR UPDATE
		`, id).Scan(&wallet, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return memberrepo.ErrNotFound
			}
			return err
		}
		if wallet != string(m.Wallet) {
			return memberrepo.ErrWalletImmutable
		}
		if status == string(domain.StatusRevoked) {
			return memberrepo.ErrRevoked
		}

		tag, err := tx.Exec(ctx, `
			UPDATE member_identities
			SET linked_account_id = $2,
			    membership_status = $3,
			    verified_at = $4,
			    last_verified_at = $5,
			    nft_token_account = $6,
			    metadata = $7,
			    updated_at = $8
			WHERE id = $1 AND membership_status <> 'revoked'
		`,
			id,
			m.LinkedAccountID,
			string(m.Status),
			postgres.UTCPtr(m.VerifiedAt),
			postgres.UTCPtr(m.LastVerifiedAt),
			m.NFTTokenAccount,
			meta,
			m.UpdatedAt.UTC(),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return memberrepo.ErrRevoked
		}
		return nil
	})
}

func (r *Repo) GetByID(ctx context.Context, id domain.MemberID) (domain.MemberIdentity, error) {
	if r.pool == nil {
		return domain.MemberIdentity{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.MemberIdentity{}, memberrepo.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM member_identities WHERE id = $1`, uid)
	return scanOne(row)
}

func (r *Repo) GetByWallet(ctx context.Context, wallet domain.WalletAddress) (domain.MemberIdentity, error) {
	if r.pool == nil {
		return domain.MemberIdentity{}, errors.New("nil postgres pool")
	}
	row := r.pool.QueryRow(ctx, `
		SELECT `+identityColumns+`
		FROM member_identities
		WHERE wallet_address = $1 AND deleted_at IS NULL
	`, string(wallet))
	return scanOne(row)
}

func (r *Repo) List(ctx context.Context, f memberrepo.ListFilter) ([]domain.MemberIdentity, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}
	var limit *int
	if f.Limit > 0 {
		limit = &f.Limit
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+identityColumns+`
		FROM member_identities
		WHERE deleted_at IS NULL
		  AND ($1::text IS NULL OR membership_status = $1)
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MemberIdentity
	for rows.Next() {
		m, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repo) CountByStatus(ctx context.Context) (map[domain.MemberStatus]int, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT membership_status, count(*)
		FROM member_identities
		WHERE deleted_at IS NULL
		GROUP BY membership_status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.MemberStatus]int, len(domain.AllStatuses))
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[domain.MemberStatus(status)] = n
	}
	return out, rows.Err()
}

func (r *Repo) SoftDelete(ctx context.Context, id domain.MemberID, at time.Time) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return memberrepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE member_identities
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, uid, at.UTC())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return memberrepo.ErrNotFound
	}
	return nil
}

func scanOne(row pgx.Row) (domain.MemberIdentity, error) {
	m, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MemberIdentity{}, memberrepo.ErrNotFound
		}
		return domain.MemberIdentity{}, err
	}
	return m, nil
}

func scanIdentity(row pgx.Row) (domain.MemberIdentity, error) {
	var (
		id      uuid.UUID
		m       domain.MemberIdentity
		wallet  string
		status  string
		rawMeta []byte
	)
	if err := row.Scan(
		&id,
		&m.LinkedAccountID,
		&wallet,
		&status,
		&m.VerifiedAt,
		&m.LastVerifiedAt,
		&m.NFTTokenAccount,
		&rawMeta,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.DeletedAt,
	); err != nil {
		return domain.MemberIdentity{}, err
	}
	m.ID = domain.MemberID(id.String())
	m.Wallet = domain.WalletAddress(wallet)
	m.Status = domain.MemberStatus(status)
	m.VerifiedAt = postgres.UTCPtr(m.VerifiedAt)
	m.LastVerifiedAt = postgres.UTCPtr(m.LastVerifiedAt)
	m.DeletedAt = postgres.UTCPtr(m.DeletedAt)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	meta, err := postgres.DecodeMetadata(rawMeta)
	if err != nil {
		return domain.MemberIdentity{}, err
	}
	m.Metadata = meta
	return m, nil
}
