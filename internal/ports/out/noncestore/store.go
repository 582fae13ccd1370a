package noncestore

import (
	"context"
	"time"
)

// Store is the challenge nonce seen-set.
//
// MarkIfAbsent must be a single atomic operation: of two concurrent calls with the
// same nonce, exactly one reports true. Entries expire on their own after ttl.
type Store interface {
	MarkIfAbsent(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
	Seen(ctx context.Context, nonce string) (bool, error)
}

// Key namespaces a nonce in shared key-value stores.
func Key(nonce string) string {
	return "membership_challenge_nonce:" + nonce
}
