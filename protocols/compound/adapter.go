package compound

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/cubfinance/refi/fixedpoint"
	"github.com/cubfinance/refi/types"
	"github.com/cubfinance/refi/valuation"
	"github.com/cubfinance/refi/yield"
)

// priceScale is the comet oracle price precision.
var priceScale = big.NewInt(1e8)

// TokenResolver resolves ERC20 reference data. Comet reports collateral
// assets by address only; *onchain.TokenStore satisfies this.
type TokenResolver interface {
	Token(ctx context.Context, addr common.Address) (*types.Token, error)
}

// Adapter implements protocols.Adapter over one or more comet
// deployments.
type Adapter struct {
	source DataSource
	tokens TokenResolver
	yields yield.Provider
	// poolIDs maps base token symbol to the historical rate series pool id.
	poolIDs map[string]string
	logger  *zap.Logger
}

// New builds the adapter. yields may be nil; markets then fall back to
// the current per-second rates as the trailing estimate.
func New(source DataSource, tokens TokenResolver, yields yield.Provider, poolIDs map[string]string, logger *zap.Logger) *Adapter {
	if poolIDs == nil {
		poolIDs = map[string]string{}
	}
	return &Adapter{
		source:  source,
		tokens:  tokens,
		yields:  yields,
		poolIDs: poolIDs,
		logger:  logger,
	}
}

func (a *Adapter) Protocol() types.Protocol { return types.ProtocolCompoundV3 }

func factorToFloat(v uint64) float64 {
	return fixedpoint.WadToFloat(new(big.Int).SetUint64(v))
}

func (a *Adapter) baseRates(ctx context.Context, state *CometState, baseSymbol string) yield.TrailingAPY {
	if a.yields != nil {
		if poolID, ok := a.poolIDs[baseSymbol]; ok {
			apy, err := a.yields.TrailingAPY(ctx, poolID)
			if err == nil {
				return *apy
			}
			a.logger.Warn("trailing APY lookup failed, using current rate",
				zap.String("protocol", string(types.ProtocolCompoundV3)),
				zap.String("symbol", baseSymbol),
				zap.Error(err))
		}
	}
	return yield.TrailingAPY{
		BorrowingAPY: fixedpoint.PerSecondToAPR(new(big.Int).SetUint64(state.BorrowRatePerSecond)),
		LendingAPY:   fixedpoint.PerSecondToAPR(new(big.Int).SetUint64(state.SupplyRatePerSecond)),
	}
}

// buildMarket turns one comet snapshot into a pooled market whose only
// debt token is the base asset. Comet collateral earns no interest, so
// collateral lending APYs stay zero.
func (a *Adapter) buildMarket(ctx context.Context, state *CometState) (*types.Market, error) {
	base, err := a.tokens.Token(ctx, state.BaseToken)
	if err != nil {
		return nil, err
	}

	collaterals := make([]types.CollateralFact, 0, len(state.Assets))
	for i := range state.Assets {
		asset := &state.Assets[i]
		token, err := a.tokens.Token(ctx, asset.Asset)
		if err != nil {
			return nil, err
		}
		collaterals = append(collaterals, types.CollateralFact{
			Token:    token,
			MaxLTV:   factorToFloat(asset.BorrowCollateralFactor),
			PriceUSD: fixedpoint.PriceFromBase(asset.Price, priceScale),
		})
	}

	available := new(big.Int).Sub(state.TotalSupply, state.TotalBorrow)
	if available.Sign() < 0 {
		available.SetInt64(0)
	}

	rate := a.baseRates(ctx, state, base.Symbol)
	return &types.Market{
		Protocol:                         types.ProtocolCompoundV3,
		Kind:                             types.MarketPooled,
		PoolID:                           fmt.Sprintf("%s:%s", types.ProtocolCompoundV3, base.Symbol),
		DebtToken:                        base,
		DebtPriceUSD:                     fixedpoint.PriceFromBase(state.BasePrice, priceScale),
		Trailing30DaysBorrowingAPY:       rate.BorrowingAPY,
		Trailing30DaysBorrowingRewardAPY: rate.BorrowingRewardAPY,
		UtilizationRatio:                 fixedpoint.WadToFloat(state.Utilization),
		AvailableLiquidity:               available,
		Collaterals:                      collaterals,
	}, nil
}

func (a *Adapter) GetMarkets(ctx context.Context) ([]*types.Market, error) {
	states, err := a.source.CometStates(ctx)
	if err != nil {
		return nil, err
	}
	markets := make([]*types.Market, 0, len(states))
	for _, state := range states {
		market, err := a.buildMarket(ctx, state)
		if err != nil {
			return nil, err
		}
		markets = append(markets, market)
	}
	return markets, nil
}

// GetSupportedTokens lists the base and collateral tokens across all
// comets, deduplicated by address.
func (a *Adapter) GetSupportedTokens(ctx context.Context) ([]*types.Token, error) {
	states, err := a.source.CometStates(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var tokens []*types.Token
	add := func(addr common.Address) error {
		key := types.NormalizeAddress(addr)
		if seen[key] {
			return nil
		}
		token, err := a.tokens.Token(ctx, addr)
		if err != nil {
			return err
		}
		seen[key] = true
		tokens = append(tokens, token)
		return nil
	}
	for _, state := range states {
		if err := add(state.BaseToken); err != nil {
			return nil, err
		}
		for i := range state.Assets {
			if err := add(state.Assets[i].Asset); err != nil {
				return nil, err
			}
		}
	}
	return tokens, nil
}

// GetUserDebtDetails builds at most one position per comet: the base
// asset is the only debt, secured by the user's collateral balances in
// that comet.
func (a *Adapter) GetUserDebtDetails(ctx context.Context, user common.Address) (*types.UserDebtDetails, error) {
	states, err := a.source.CometStates(ctx)
	if err != nil {
		return nil, err
	}

	details := &types.UserDebtDetails{Protocol: types.ProtocolCompoundV3}
	for _, state := range states {
		market, err := a.buildMarket(ctx, state)
		if err != nil {
			return nil, err
		}
		details.Markets = append(details.Markets, market)

		assets := make([]common.Address, len(state.Assets))
		for i := range state.Assets {
			assets[i] = state.Assets[i].Asset
		}
		userState, err := a.source.UserState(ctx, state.Comet, user, assets)
		if err != nil {
			return nil, err
		}
		if userState.BorrowBalance == nil || userState.BorrowBalance.Sign() == 0 {
			continue
		}

		position, err := a.buildPosition(state, market, userState)
		if err != nil {
			a.logger.Warn("excluding unsound comet position",
				zap.String("comet", state.Comet.Hex()),
				zap.String("user", user.Hex()),
				zap.Error(err))
			continue
		}
		details.DebtPositions = append(details.DebtPositions, position)
	}
	return details, nil
}

func (a *Adapter) buildPosition(state *CometState, market *types.Market, userState *UserState) (*types.DebtPosition, error) {
	byAddr := make(map[string]*CollateralAsset, len(state.Assets))
	for i := range state.Assets {
		byAddr[types.NormalizeAddress(state.Assets[i].Asset)] = &state.Assets[i]
	}

	var collaterals []types.TokenAmount
	var legs []valuation.Leg
	var factors []float64
	for _, bal := range userState.Collateral {
		if bal.Balance == nil || bal.Balance.Sign() == 0 {
			continue
		}
		asset, ok := byAddr[types.NormalizeAddress(bal.Asset)]
		if !ok {
			return nil, types.NewDataSourceError(types.ProtocolCompoundV3, "collateralBalanceOf",
				fmt.Errorf("balance for unknown asset %s", bal.Asset.Hex()))
		}
		fact, ok := market.Collateral(&types.Token{Address: bal.Asset})
		if !ok {
			continue
		}
		usd := fixedpoint.TokenToUSD(bal.Balance, fact.Token.Decimals, fact.PriceUSD)
		collaterals = append(collaterals, types.TokenAmount{
			Token:     fact.Token,
			Amount:    bal.Balance,
			AmountUSD: usd,
		})
		legs = append(legs, valuation.Leg{AmountUSD: usd})
		factors = append(factors, factorToFloat(asset.BorrowCollateralFactor))
	}

	debtUSD := fixedpoint.TokenToUSD(userState.BorrowBalance, market.DebtToken.Decimals, market.DebtPriceUSD)
	debt := types.TokenAmount{
		Token:     market.DebtToken,
		Amount:    userState.BorrowBalance,
		AmountUSD: debtUSD,
	}

	var collateralUSD float64
	for _, c := range collaterals {
		collateralUSD += c.AmountUSD
	}
	ltv, err := valuation.LTV(debtUSD, collateralUSD)
	if err != nil {
		return nil, err
	}
	maxLTV, err := valuation.WeightedMaxLTV(legs, factors)
	if err != nil {
		return nil, err
	}

	debtLegs := []valuation.Leg{{
		AmountUSD: debtUSD,
		APY:       market.Trailing30DaysBorrowingAPY,
		RewardAPY: market.Trailing30DaysBorrowingRewardAPY,
	}}
	netAPY, err := valuation.NetBorrowingAPY(legs, debtLegs)
	if err != nil {
		return nil, err
	}

	return &types.DebtPosition{
		Kind:                          types.PositionSingle,
		Debts:                         []types.TokenAmount{debt},
		Collaterals:                   collaterals,
		LTV:                           ltv,
		MaxLTV:                        maxLTV,
		Trailing30DaysNetBorrowingAPY: netAPY,
	}, nil
}
