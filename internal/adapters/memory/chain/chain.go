package chain

import (
	"context"
	"sync"

	"github.com/Huaoe/ElurcFleet/internal/domain"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/chain"
)

// Ledger is an in-memory chain.Client for tests and local development.
// It is safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	owners   map[domain.WalletAddress][]chain.TokenAccount
	accounts map[string][]byte

	infoCalls map[string]int
}

var _ chain.Client = (*Ledger)(nil)

func NewLedger() *Ledger {
	return &Ledger{
		owners:    make(map[domain.WalletAddress][]chain.TokenAccount),
		accounts:  make(map[string][]byte),
		infoCalls: make(map[string]int),
	}
}

// SetTokenAccounts replaces the token accounts owned by owner, in enumeration order.
func (l *Ledger) SetTokenAccounts(owner domain.WalletAddress, accts ...chain.TokenAccount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.owners[owner] = append([]chain.TokenAccount(nil), accts...)
}

func (l *Ledger) SetAccountData(account string, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[account] = append([]byte(nil), data...)
}

func (l *Ledger) ListTokenAccounts(ctx context.Context, owner domain.WalletAddress) []chain.TokenAccount {
	if ctx.Err() != nil {
		return []chain.TokenAccount{}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]chain.TokenAccount{}, l.owners[owner]...)
}

func (l *Ledger) GetAccountInfo(ctx context.Context, account string) ([]byte, bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoCalls[account]++
	b, ok := l.accounts[account]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}

// InfoCalls reports how many times GetAccountInfo was called for account.
func (l *Ledger) InfoCalls(account string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.infoCalls[account]
}
