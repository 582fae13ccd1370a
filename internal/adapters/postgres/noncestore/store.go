package noncestore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a Postgres implementation of noncestore.Store. Expiry uses the
// database clock.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// MarkIfAbsent inserts the nonce, or takes over an expired row. Concurrent
// callers serialize on the primary key and only one sees a returned row.
func (s *Store) MarkIfAbsent(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	if s.pool == nil {
		return false, errors.New("nil postgres pool")
	}
	var got string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO membership_challenge_nonces (nonce, expires_at)
		VALUES ($1, now() + make_interval(secs => $2))
		ON CONFLICT (nonce) DO UPDATE
			SET expires_at = EXCLUDED.expires_at
			WHERE membership_challenge_nonces.expires_at <= now()
		RETURNING nonce
	`, nonce, ttl.Seconds()).Scan(&got)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) Seen(ctx context.Context, nonce string) (bool, error) {
	if s.pool == nil {
		return false, errors.New("nil postgres pool")
	}
	var seen bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM membership_challenge_nonces
			WHERE nonce = $1 AND expires_at > now()
		)
	`, nonce).Scan(&seen)
	return seen, err
}

// Purge deletes expired nonces and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	if s.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM membership_challenge_nonces WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
