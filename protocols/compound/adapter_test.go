package compound

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cubfinance/refi/types"
)

var (
	cometUSDC = common.HexToAddress("0xc3d688B66703497DAA19211EEdff47f25384cdc3")
	cometWETH = common.HexToAddress("0xA17581A9E3356d9A858b789D68B4d866e593aE94")
	usdcAddr  = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	wethAddr  = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	wbtcAddr  = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
	userAddr  = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
)

type fakeSource struct {
	states []*CometState
	users  map[common.Address]*UserState
	err    error
}

func (f *fakeSource) CometStates(context.Context) ([]*CometState, error) {
	return f.states, f.err
}

func (f *fakeSource) UserState(_ context.Context, comet, _ common.Address, _ []common.Address) (*UserState, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[comet]; ok {
		return u, nil
	}
	return &UserState{BorrowBalance: big.NewInt(0)}, nil
}

type fakeResolver map[common.Address]*types.Token

func (f fakeResolver) Token(_ context.Context, addr common.Address) (*types.Token, error) {
	if t, ok := f[addr]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("unknown token %s", addr.Hex())
}

func testResolver() fakeResolver {
	return fakeResolver{
		usdcAddr: {Address: usdcAddr, Name: "USD Coin", Symbol: "USDC", Decimals: 6},
		wethAddr: {Address: wethAddr, Name: "Wrapped Ether", Symbol: "WETH", Decimals: 18},
		wbtcAddr: {Address: wbtcAddr, Name: "Wrapped BTC", Symbol: "WBTC", Decimals: 8},
	}
}

func wad(f float64) *big.Int {
	d := new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil)
	return new(big.Int).Mul(big.NewInt(int64(f*1000)), d)
}

func units(whole int64, decimals int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole),
		new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil))
}

func usdcCometState() *CometState {
	return &CometState{
		Comet:               cometUSDC,
		BaseToken:           usdcAddr,
		Utilization:         wad(0.5),
		SupplyRatePerSecond: 5e8,
		BorrowRatePerSecond: 1e9,
		TotalSupply:         units(1_000_000, 6),
		TotalBorrow:         units(400_000, 6),
		BasePrice:           big.NewInt(1e8),
		Assets: []CollateralAsset{
			{
				AssetInfo: AssetInfo{
					Asset:                  wethAddr,
					BorrowCollateralFactor: 825000000000000000, // 0.825 wad
					SupplyCap:              units(100_000, 18),
				},
				Price: big.NewInt(2500e8),
			},
			{
				AssetInfo: AssetInfo{
					Asset:                  wbtcAddr,
					BorrowCollateralFactor: 700000000000000000,
					SupplyCap:              units(10_000, 8),
				},
				Price: big.NewInt(60000e8),
			},
		},
	}
}

func newAdapter(src DataSource) *Adapter {
	return New(src, testResolver(), nil, nil, zap.NewNop())
}

func TestGetMarketsBuildsPooledMarket(t *testing.T) {
	src := &fakeSource{states: []*CometState{usdcCometState()}}

	markets, err := newAdapter(src).GetMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 1)

	m := markets[0]
	assert.Equal(t, types.ProtocolCompoundV3, m.Protocol)
	assert.Equal(t, types.MarketPooled, m.Kind)
	assert.Equal(t, "USDC", m.DebtToken.Symbol)
	assert.InDelta(t, 1.0, m.DebtPriceUSD, 1e-6)
	assert.InDelta(t, 0.5, m.UtilizationRatio, 1e-9)
	// 1e9/sec over 31536000 seconds on a 1e18 scale.
	assert.InDelta(t, 0.031536, m.Trailing30DaysBorrowingAPY, 1e-9)
	assert.Equal(t, 0, m.AvailableLiquidity.Cmp(units(600_000, 6)))
	assert.Nil(t, m.BorrowCap)

	require.Len(t, m.Collaterals, 2)
	weth, ok := m.Collateral(&types.Token{Address: wethAddr})
	require.True(t, ok)
	assert.InDelta(t, 0.825, weth.MaxLTV, 1e-9)
	assert.InDelta(t, 2500.0, weth.PriceUSD, 1e-4)
	// Comet collateral earns nothing.
	assert.Zero(t, weth.Trailing30DaysLendingAPY)
}

func TestGetSupportedTokensDeduplicates(t *testing.T) {
	wethComet := usdcCometState()
	wethComet.Comet = cometWETH
	wethComet.BaseToken = wethAddr
	wethComet.BasePrice = big.NewInt(2500e8)
	src := &fakeSource{states: []*CometState{usdcCometState(), wethComet}}

	tokens, err := newAdapter(src).GetSupportedTokens(context.Background())
	require.NoError(t, err)

	seen := map[string]int{}
	for _, tok := range tokens {
		seen[tok.Symbol]++
	}
	assert.Equal(t, 1, seen["WETH"])
	assert.Equal(t, 1, seen["USDC"])
	assert.Equal(t, 1, seen["WBTC"])
}

func TestGetUserDebtDetailsNoBorrow(t *testing.T) {
	src := &fakeSource{
		states: []*CometState{usdcCometState()},
		users: map[common.Address]*UserState{
			cometUSDC: {
				BorrowBalance: big.NewInt(0),
				Collateral:    []CollateralBalance{{Asset: wethAddr, Balance: units(2, 18)}},
			},
		},
	}

	details, err := newAdapter(src).GetUserDebtDetails(context.Background(), userAddr)
	require.NoError(t, err)
	assert.Empty(t, details.DebtPositions)
	assert.Len(t, details.Markets, 1)
}

func TestGetUserDebtDetailsSinglePosition(t *testing.T) {
	src := &fakeSource{
		states: []*CometState{usdcCometState()},
		users: map[common.Address]*UserState{
			cometUSDC: {
				BorrowBalance: units(2000, 6),
				Collateral: []CollateralBalance{
					{Asset: wethAddr, Balance: units(2, 18)},   // $5000 at 0.825
					{Asset: wbtcAddr, Balance: big.NewInt(0)},  // ignored
				},
			},
		},
	}

	details, err := newAdapter(src).GetUserDebtDetails(context.Background(), userAddr)
	require.NoError(t, err)
	require.Len(t, details.DebtPositions, 1)

	pos := details.DebtPositions[0]
	assert.Equal(t, types.PositionSingle, pos.Kind)
	require.Len(t, pos.Debts, 1)
	assert.Equal(t, "USDC", pos.Debts[0].Token.Symbol)
	assert.InDelta(t, 2000, pos.Debts[0].AmountUSD, 0.01)
	require.Len(t, pos.Collaterals, 1)
	assert.InDelta(t, 0.4, pos.LTV, 1e-6)
	assert.InDelta(t, 0.825, pos.MaxLTV, 1e-9)
	// Collateral earns nothing, so net cost is the full borrow rate.
	assert.InDelta(t, -0.031536, pos.Trailing30DaysNetBorrowingAPY, 1e-9)
}

func TestGetUserDebtDetailsWeightedMaxLTV(t *testing.T) {
	src := &fakeSource{
		states: []*CometState{usdcCometState()},
		users: map[common.Address]*UserState{
			cometUSDC: {
				BorrowBalance: units(10_000, 6),
				Collateral: []CollateralBalance{
					{Asset: wethAddr, Balance: units(4, 18)}, // $10000 at 0.825
					{Asset: wbtcAddr, Balance: units(1, 8)},  // $60000 at 0.700
				},
			},
		},
	}

	details, err := newAdapter(src).GetUserDebtDetails(context.Background(), userAddr)
	require.NoError(t, err)
	require.Len(t, details.DebtPositions, 1)

	want := (10000*0.825 + 60000*0.700) / 70000
	assert.InDelta(t, want, details.DebtPositions[0].MaxLTV, 1e-9)
}

func TestGetUserDebtDetailsSkipsCollateralFreeDebt(t *testing.T) {
	src := &fakeSource{
		states: []*CometState{usdcCometState()},
		users: map[common.Address]*UserState{
			cometUSDC: {BorrowBalance: units(500, 6)},
		},
	}

	details, err := newAdapter(src).GetUserDebtDetails(context.Background(), userAddr)
	require.NoError(t, err)
	assert.Empty(t, details.DebtPositions)
}

func TestGetUserDebtDetailsPropagatesSourceError(t *testing.T) {
	src := &fakeSource{err: types.NewDataSourceError(types.ProtocolCompoundV3, "getUtilization", assert.AnError)}
	_, err := newAdapter(src).GetUserDebtDetails(context.Background(), userAddr)
	assert.ErrorIs(t, err, types.ErrDataSource)
}
