package valuation

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubfinance/refi/types"
)

var (
	weth = &types.Token{
		Address:  common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		Symbol:   "WETH",
		Decimals: 18,
	}
	usdc = &types.Token{
		Address:  common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		Symbol:   "USDC",
		Decimals: 6,
	}
	wbtc = &types.Token{
		Address:  common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"),
		Symbol:   "WBTC",
		Decimals: 8,
	}
)

func usdcMarket(borrowAPY float64) *types.Market {
	return &types.Market{
		Protocol:                   types.ProtocolAaveV3,
		Kind:                       types.MarketPooled,
		PoolID:                     "aave-v3-mainnet",
		DebtToken:                  usdc,
		DebtPriceUSD:               1.0,
		Trailing30DaysBorrowingAPY: borrowAPY,
		UtilizationRatio:           0.7,
		Collaterals: []types.CollateralFact{
			{Token: weth, MaxLTV: 0.8, Trailing30DaysLendingAPY: 0.02, PriceUSD: 2500},
			{Token: wbtc, MaxLTV: 0.7, Trailing30DaysLendingAPY: 0.001, PriceUSD: 60000},
		},
	}
}

func amount(t *testing.T, s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return v
}

func TestLTVZeroCollateral(t *testing.T) {
	_, err := LTV(100, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValuation))
}

func TestWeightedMaxLTV(t *testing.T) {
	legs := []Leg{{AmountUSD: 1000}, {AmountUSD: 3000}}
	got, err := WeightedMaxLTV(legs, []float64{0.8, 0.6})
	require.NoError(t, err)
	assert.InDelta(t, 0.65, got, 1e-9)
}

func TestNetBorrowingAPYSign(t *testing.T) {
	collaterals := []Leg{{AmountUSD: 10000, APY: 0.03, RewardAPY: 0.01}}
	debts := []Leg{{AmountUSD: 5000, APY: 0.05}}

	// (10000*0.04 - 5000*0.05) / 5000 = (400-250)/5000 = +0.03
	net, err := NetBorrowingAPY(collaterals, debts)
	require.NoError(t, err)
	assert.InDelta(t, 0.03, net, 1e-9)

	// Flip: expensive debt, idle collateral.
	net, err = NetBorrowingAPY([]Leg{{AmountUSD: 10000}}, []Leg{{AmountUSD: 5000, APY: 0.08}})
	require.NoError(t, err)
	assert.InDelta(t, -0.08, net, 1e-9)
}

func TestNetBorrowingAPYZeroDebt(t *testing.T) {
	_, err := NetBorrowingAPY([]Leg{{AmountUSD: 100}}, nil)
	assert.True(t, errors.Is(err, types.ErrValuation))
}

func TestBorrowPositionFullCap(t *testing.T) {
	// 1.1 WETH at $2500 against 80% max LTV: fresh borrows size to the
	// cap exactly.
	collateral := []types.TokenAmount{{Token: weth, Amount: amount(t, "1100000000000000000")}}

	pos, err := BorrowPosition(usdcMarket(0.04), collateral)
	require.NoError(t, err)

	assert.InDelta(t, 0.8, pos.MaxLTV, 1e-9)
	assert.InDelta(t, pos.MaxLTV, pos.LTV, 1e-6)
	assert.True(t, pos.Debts[0].Amount.Sign() > 0)
	assert.InDelta(t, 2750.0*0.8, pos.Debts[0].AmountUSD, 0.01)
	assert.Equal(t, usdc, pos.Debts[0].Token)
	assert.True(t, pos.LTV <= pos.MaxLTV+1e-12)
}

func TestBorrowPositionRejectsForeignCollateral(t *testing.T) {
	dai := &types.Token{Address: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Symbol: "DAI", Decimals: 18}
	_, err := BorrowPosition(usdcMarket(0.04), []types.TokenAmount{{Token: dai, Amount: amount(t, "1000000000000000000")}})
	assert.True(t, errors.Is(err, types.ErrValuation))
}

func TestRefinancePositionCapsToCeiling(t *testing.T) {
	// $5000 of debt against 1.1 WETH ($2750): naive LTV 1.82 must cap to
	// the ceiling with the debt recomputed downward.
	collateral := []types.TokenAmount{{Token: weth, Amount: amount(t, "1100000000000000000")}}
	ceiling := 0.8 - DefaultSafetyBuffer

	pos, err := RefinancePosition(usdcMarket(0.03), collateral, 5000, ceiling)
	require.NoError(t, err)

	assert.InDelta(t, ceiling, pos.LTV, 1e-6)
	assert.True(t, pos.LTV <= pos.MaxLTV)
	assert.InDelta(t, 2750.0*ceiling, pos.Debts[0].AmountUSD, 0.01)
}

func TestRefinancePositionKeepsSmallDebt(t *testing.T) {
	// Debt well under the ceiling passes through unchanged.
	collateral := []types.TokenAmount{{Token: weth, Amount: amount(t, "1100000000000000000")}}

	pos, err := RefinancePosition(usdcMarket(0.03), collateral, 1000, 0.75)
	require.NoError(t, err)

	assert.InDelta(t, 1000, pos.Debts[0].AmountUSD, 0.01)
	assert.InDelta(t, 1000.0/2750.0, pos.LTV, 1e-6)
}

func TestRefinancePositionMixedCollateral(t *testing.T) {
	// 1 WETH + 0.1 WBTC: weighted max LTV blends 0.8 and 0.7 by USD value.
	collateral := []types.TokenAmount{
		{Token: weth, Amount: amount(t, "1000000000000000000")},
		{Token: wbtc, Amount: amount(t, "10000000")},
	}

	pos, err := RefinancePosition(usdcMarket(0.03), collateral, 100, 0.7)
	require.NoError(t, err)

	// 2500*0.8 + 6000*0.7 over 8500.
	want := (2500*0.8 + 6000*0.7) / 8500
	assert.InDelta(t, want, pos.MaxLTV, 1e-9)
	require.Len(t, pos.Collaterals, 2)
	assert.InDelta(t, 2500, pos.Collaterals[0].AmountUSD, 0.01)
	assert.InDelta(t, 6000, pos.Collaterals[1].AmountUSD, 0.01)
}

func TestBorrowPositionMissingPrice(t *testing.T) {
	m := usdcMarket(0.04)
	m.Collaterals[0].PriceUSD = 0
	_, err := BorrowPosition(m, []types.TokenAmount{{Token: weth, Amount: amount(t, "1000000000000000000")}})
	assert.True(t, errors.Is(err, types.ErrValuation))
}
