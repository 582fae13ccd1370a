package noncestore

import (
	"context"
	"sync"
	"time"

	clockport "github.com/Huaoe/ElurcFleet/internal/ports/out/clock"
)

// purgeEvery bounds how many writes may pass between sweeps of expired entries.
const purgeEvery = 256

// Store is an in-memory implementation of noncestore.Store with lazy expiry.
// It is safe for concurrent use. Entries do not survive a restart and are not
// shared across processes; use the redis or postgres store for that.
type Store struct {
	clk clockport.Clock

	mu     sync.Mutex
	expiry map[string]time.Time
	writes int
}

func NewStore(clk clockport.Clock) *Store {
	return &Store{
		clk:    clk,
		expiry: make(map[string]time.Time),
	}
}

func (s *Store) MarkIfAbsent(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	_ = ctx
	now := s.clk.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.expiry[nonce]; ok && now.Before(exp) {
		return false, nil
	}
	s.expiry[nonce] = now.Add(ttl)

	s.writes++
	if s.writes%purgeEvery == 0 {
		for k, exp := range s.expiry {
			if !now.Before(exp) {
				delete(s.expiry, k)
			}
		}
	}
	return true, nil
}

func (s *Store) Seen(ctx context.Context, nonce string) (bool, error) {
	_ = ctx
	now := s.clk.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expiry[nonce]
	return ok && now.Before(exp), nil
}

// Len reports the number of tracked entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiry)
}
