// Package protocols defines the capability interface every lending
// protocol integration implements. The orchestrator iterates a registered
// list of adapters; nothing downstream switches on the protocol tag.
package protocols

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cubfinance/refi/types"
)

// Adapter normalizes one protocol's on-chain or indexer state into the
// common Market/DebtPosition model. Every call re-fetches live state;
// adapters hold no snapshot caches.
type Adapter interface {
	// Protocol returns the adapter's protocol tag.
	Protocol() types.Protocol

	// GetUserDebtDetails fetches the user's open positions and the markets
	// backing them. An account with no open positions yields an empty
	// DebtPositions slice, not an error.
	GetUserDebtDetails(ctx context.Context, user common.Address) (*types.UserDebtDetails, error)

	// GetMarkets fetches all borrowable markets in the common shape.
	GetMarkets(ctx context.Context) ([]*types.Market, error)

	// GetSupportedTokens lists tokens the protocol can lend or borrow.
	GetSupportedTokens(ctx context.Context) ([]*types.Token, error)
}
