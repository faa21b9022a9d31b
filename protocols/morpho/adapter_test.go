package morpho

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cubfinance/refi/types"
)

var userAddr = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

type fakeSource struct {
	markets   []MarketNode
	positions []PositionNode
	err       error
}

func (f *fakeSource) Markets(context.Context) ([]MarketNode, error) {
	return f.markets, f.err
}

func (f *fakeSource) UserPositions(context.Context, common.Address) ([]PositionNode, error) {
	return f.positions, f.err
}

func fptr(f float64) *float64 { return &f }

func wstethUSDCMarket() MarketNode {
	return MarketNode{
		UniqueKey: "0xb323495f7e4148be5643a4ea4a8221eef163e4bccfdedc2a6f4696baacbc86cc",
		LLTV:      "860000000000000000", // 0.86 wad
		LoanAsset: &TokenNode{
			Address:  "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			Symbol:   "USDC",
			Name:     "USD Coin",
			Decimals: 6,
			PriceUSD: fptr(1.0),
		},
		CollateralAsset: &TokenNode{
			Address:  "0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0",
			Symbol:   "wstETH",
			Name:     "Wrapped liquid staked Ether 2.0",
			Decimals: 18,
			PriceUSD: fptr(2900.0),
		},
		State: &MarketStateNode{
			Utilization:      0.82,
			MonthlyBorrowAPY: 0.051,
			MonthlySupplyAPY: 0.043,
			LiquidityAssets:  "12000000000000", // 12M USDC
			Rewards: []RewardNode{
				{BorrowAPR: fptr(0.004), SupplyAPR: fptr(0.002)},
				{BorrowAPR: fptr(0.001)},
			},
		},
	}
}

func newAdapter(src DataSource) *Adapter {
	return New(src, zap.NewNop())
}

func TestGetMarketsBuildsIsolatedPair(t *testing.T) {
	src := &fakeSource{markets: []MarketNode{wstethUSDCMarket()}}

	markets, err := newAdapter(src).GetMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 1)

	m := markets[0]
	assert.Equal(t, types.ProtocolMorphoBlue, m.Protocol)
	assert.Equal(t, types.MarketIsolatedPair, m.Kind)
	assert.Equal(t, "USDC", m.DebtToken.Symbol)
	assert.InDelta(t, 0.051, m.Trailing30DaysBorrowingAPY, 1e-9)
	assert.InDelta(t, 0.005, m.Trailing30DaysBorrowingRewardAPY, 1e-9)
	assert.InDelta(t, 0.82, m.UtilizationRatio, 1e-9)
	assert.Equal(t, "12000000000000", m.AvailableLiquidity.String())

	require.Len(t, m.Collaterals, 1)
	assert.Equal(t, "wstETH", m.Collaterals[0].Token.Symbol)
	assert.InDelta(t, 0.86, m.Collaterals[0].MaxLTV, 1e-9)
}

func TestGetMarketsSkipsIdleMarkets(t *testing.T) {
	idle := wstethUSDCMarket()
	idle.CollateralAsset = nil
	src := &fakeSource{markets: []MarketNode{idle, wstethUSDCMarket()}}

	markets, err := newAdapter(src).GetMarkets(context.Background())
	require.NoError(t, err)
	assert.Len(t, markets, 1)
}

func TestGetMarketsRejectsMalformedAmounts(t *testing.T) {
	broken := wstethUSDCMarket()
	broken.State.LiquidityAssets = "not-a-number"
	src := &fakeSource{markets: []MarketNode{broken}}

	_, err := newAdapter(src).GetMarkets(context.Background())
	assert.ErrorIs(t, err, types.ErrDataSource)
}

func TestGetSupportedTokensDeduplicates(t *testing.T) {
	src := &fakeSource{markets: []MarketNode{wstethUSDCMarket(), wstethUSDCMarket()}}

	tokens, err := newAdapter(src).GetSupportedTokens(context.Background())
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}

func TestGetUserDebtDetailsFlatPositions(t *testing.T) {
	market := wstethUSDCMarket()
	src := &fakeSource{
		markets: []MarketNode{market},
		positions: []PositionNode{{
			BorrowAssets:    "2000000000", // 2000 USDC
			BorrowAssetsUSD: fptr(2000.0),
			Collateral:      "2000000000000000000", // 2 wstETH
			CollateralUSD:   fptr(5800.0),
			Market:          &market,
		}},
	}

	details, err := newAdapter(src).GetUserDebtDetails(context.Background(), userAddr)
	require.NoError(t, err)
	require.Len(t, details.DebtPositions, 1)

	pos := details.DebtPositions[0]
	assert.Equal(t, types.PositionSingle, pos.Kind)
	require.Len(t, pos.Debts, 1)
	require.Len(t, pos.Collaterals, 1)
	assert.InDelta(t, 2000.0/5800.0, pos.LTV, 1e-9)
	assert.InDelta(t, 0.86, pos.MaxLTV, 1e-9)
	// Collateral earns nothing; the cost is borrow APY net of borrow
	// rewards: -(0.051 - 0.005).
	assert.InDelta(t, -0.046, pos.Trailing30DaysNetBorrowingAPY, 1e-9)
}

func TestGetUserDebtDetailsSkipsZeroBorrow(t *testing.T) {
	market := wstethUSDCMarket()
	src := &fakeSource{
		markets: []MarketNode{market},
		positions: []PositionNode{{
			BorrowAssets: "0",
			Collateral:   "2000000000000000000",
			Market:       &market,
		}},
	}

	details, err := newAdapter(src).GetUserDebtDetails(context.Background(), userAddr)
	require.NoError(t, err)
	assert.Empty(t, details.DebtPositions)
}

func TestGetUserDebtDetailsSkipsCollateralFreePosition(t *testing.T) {
	market := wstethUSDCMarket()
	src := &fakeSource{
		markets: []MarketNode{market},
		positions: []PositionNode{{
			BorrowAssets:    "2000000000",
			BorrowAssetsUSD: fptr(2000.0),
			Collateral:      "0",
			CollateralUSD:   fptr(0.0),
			Market:          &market,
		}},
	}

	details, err := newAdapter(src).GetUserDebtDetails(context.Background(), userAddr)
	require.NoError(t, err)
	assert.Empty(t, details.DebtPositions)
}

func TestGetUserDebtDetailsPropagatesSourceError(t *testing.T) {
	src := &fakeSource{err: types.NewDataSourceError(types.ProtocolMorphoBlue, "graphql", assert.AnError)}
	_, err := newAdapter(src).GetUserDebtDetails(context.Background(), userAddr)
	assert.ErrorIs(t, err, types.ErrDataSource)
}
