package chain

import (
	"context"

	"github.com/Huaoe/ElurcFleet/internal/domain"
)

// TokenProgramID is the SPL token program whose accounts are enumerated.
const TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

// TokenAccount is one token account owned by a wallet.
type TokenAccount struct {
	Pubkey string
	Mint   string
	// Amount is the raw integer amount as a decimal string.
	Amount   string
	Decimals int
}

// IsSingleUnitNFT reports whether the holding follows the one-unit, zero-decimal NFT convention.
func (a TokenAccount) IsSingleUnitNFT() bool {
	return a.Decimals == 0 && a.Amount == "1"
}

// Client reads chain state. Implementations never return errors: an unreachable or
// failing endpoint yields an empty list or an absent account.
type Client interface {
	ListTokenAccounts(ctx context.Context, owner domain.WalletAddress) []TokenAccount
	GetAccountInfo(ctx context.Context, account string) ([]byte, bool)
}
