// Package morpho normalizes Morpho Blue isolated-pair markets into the
// common Market/DebtPosition model. Market and position state comes from
// the Morpho GraphQL API, which already carries trailing monthly APYs, so
// no separate rate-history aggregation is needed.
package morpho

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cubfinance/refi/types"
)

// TokenNode is the decoded GraphQL asset shape.
type TokenNode struct {
	Address  string   `json:"address"`
	Symbol   string   `json:"symbol"`
	Name     string   `json:"name"`
	Decimals uint8    `json:"decimals"`
	PriceUSD *float64 `json:"priceUsd"`
}

// RewardNode is one active incentive program on a market.
type RewardNode struct {
	SupplyAPR *float64 `json:"supplyApr"`
	BorrowAPR *float64 `json:"borrowApr"`
}

// MarketStateNode is the decoded live-market state shape. Asset amounts
// arrive as decimal strings; the API serializes uint256 values that way.
type MarketStateNode struct {
	Utilization      float64      `json:"utilization"`
	MonthlyBorrowAPY float64      `json:"monthlyBorrowApy"`
	MonthlySupplyAPY float64      `json:"monthlySupplyApy"`
	LiquidityAssets  string       `json:"liquidityAssets"`
	Rewards          []RewardNode `json:"rewards"`
}

// MarketNode is one isolated market: exactly one loan asset, one
// collateral asset, one liquidation LTV.
type MarketNode struct {
	UniqueKey       string           `json:"uniqueKey"`
	LLTV            string           `json:"lltv"`
	LoanAsset       *TokenNode       `json:"loanAsset"`
	CollateralAsset *TokenNode       `json:"collateralAsset"`
	State           *MarketStateNode `json:"state"`
}

// PositionNode is one user position in one market.
type PositionNode struct {
	BorrowAssets    string      `json:"borrowAssets"`
	BorrowAssetsUSD *float64    `json:"borrowAssetsUsd"`
	Collateral      string      `json:"collateral"`
	CollateralUSD   *float64    `json:"collateralUsd"`
	Market          *MarketNode `json:"market"`
}

// DataSource is the decoded read surface the normalizer consumes. The
// GraphQL-backed Client implements it; tests inject fakes.
type DataSource interface {
	Markets(ctx context.Context) ([]MarketNode, error)
	UserPositions(ctx context.Context, user common.Address) ([]PositionNode, error)
}

// parseBig decodes a uint256 decimal string. The API never emits
// negative amounts.
func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, types.NewDataSourceError(types.ProtocolMorphoBlue, "graphql",
			fmt.Errorf("malformed integer %q", s))
	}
	return v, nil
}
