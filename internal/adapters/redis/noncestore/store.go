package noncestore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Huaoe/ElurcFleet/internal/ports/out/noncestore"
)

// Store is a Redis implementation of noncestore.Store backed by SET NX with expiry.
type Store struct {
	rdb redis.Cmdable
}

func NewStore(rdb redis.Cmdable) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) MarkIfAbsent(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, noncestore.Key(nonce), 1, ttl).Result()
}

func (s *Store) Seen(ctx context.Context, nonce string) (bool, error) {
	n, err := s.rdb.Exists(ctx, noncestore.Key(nonce)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
