// Package collection finds a wallet's NFT belonging to a verified collection.
package collection

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Huaoe/ElurcFleet/internal/domain"
	"github.com/Huaoe/ElurcFleet/internal/platform/logging"
	"github.com/Huaoe/ElurcFleet/internal/platform/metaplex"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/chain"
)

// Match is the NFT that proved collection membership.
type Match struct {
	Mint string
	// TokenAccount is the holding account, or the mint when the account pubkey is unknown.
	TokenAccount string
	Metadata     metaplex.Metadata
}

type Options struct {
	// Concurrency bounds parallel metadata fetches. Values below 2 check candidates sequentially.
	Concurrency int
	Logger      *zap.Logger
}

type Matcher struct {
	chain       chain.Client
	concurrency int
	log         *zap.Logger
}

func NewMatcher(c chain.Client, opts Options) *Matcher {
	return &Matcher{
		chain:       c,
		concurrency: opts.Concurrency,
		log:         logging.OrNop(opts.Logger),
	}
}

// FindCollectionNFT returns the first single-unit NFT held by owner whose metadata
// carries a verified collection equal to collection. "First" is RPC enumeration
// order, also when candidates are fetched in parallel.
func (m *Matcher) FindCollectionNFT(ctx context.Context, owner domain.WalletAddress, collection string) (Match, bool) {
	var candidates []chain.TokenAccount
	for _, a := range m.chain.ListTokenAccounts(ctx, owner) {
		if a.IsSingleUnitNFT() {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		m.log.Debug("no nft candidates", zap.String("wallet", string(owner)))
		return Match{}, false
	}

	if m.concurrency < 2 || len(candidates) == 1 {
		for _, a := range candidates {
			if match, ok := m.check(ctx, a, collection); ok {
				return match, true
			}
		}
		return Match{}, false
	}
	return m.findParallel(ctx, candidates, collection)
}

func (m *Matcher) findParallel(ctx context.Context, candidates []chain.TokenAccount, collection string) (Match, bool) {
	results := make([]*Match, len(candidates))
	var best atomic.Int64
	best.Store(int64(len(candidates)))

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, a := range candidates {
		i, a := i, a
		g.Go(func() error {
			// A lower-index match already exists; this candidate cannot win.
			if int64(i) > best.Load() {
				return nil
			}
			match, ok := m.check(ctx, a, collection)
			if !ok {
				return nil
			}
			results[i] = &match
			for {
				cur := best.Load()
				if int64(i) >= cur || best.CompareAndSwap(cur, int64(i)) {
					break
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r != nil {
			return *r, true
		}
	}
	return Match{}, false
}

func (m *Matcher) check(ctx context.Context, a chain.TokenAccount, collection string) (Match, bool) {
	raw, ok := m.chain.GetAccountInfo(ctx, a.Mint)
	if !ok {
		return Match{}, false
	}
	md, ok := metaplex.Decode(raw)
	if !ok {
		m.log.Debug("undecodable metadata", zap.String("mint", a.Mint))
		return Match{}, false
	}
	if md.Collection == nil || !md.Collection.Verified || md.Collection.Address() != collection {
		return Match{}, false
	}
	acct := a.Pubkey
	if acct == "" {
		acct = a.Mint
	}
	return Match{Mint: a.Mint, TokenAccount: acct, Metadata: md}, true
}
