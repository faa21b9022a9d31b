// Package aavev3 normalizes Aave-V3-family pooled markets (Aave V3 and
// Spark share the same data-provider surface at different addresses) into
// the common Market/DebtPosition model.
package aavev3

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

// bpsUnit scales Aave's basis-point LTV/threshold encodings.
const bpsUnit = 10000.0

// Adapter implements protocols.Adapter for one Aave-V3-family deployment.
type Adapter struct {
	protocol types.Protocol
	source   DataSource
	yields   yield.Provider
	// poolIDs maps reserve symbol to the historical rate series pool id.
	poolIDs map[string]string
	logger  *zap.Logger
}

// New builds the adapter. yields may be nil; markets then fall back to the
// current on-chain rate as the trailing estimate.
func New(protocol types.Protocol, source DataSource, yields yield.Provider, poolIDs map[string]string, logger *zap.Logger) *Adapter {
	if poolIDs == nil {
		poolIDs = map[string]string{}
	}
	return &Adapter{
		protocol: protocol,
		source:   source,
		yields:   yields,
		poolIDs:  poolIDs,
		logger:   logger,
	}
}

func (a *Adapter) Protocol() types.Protocol { return a.protocol }

// reserveToken lifts the reserve's embedded token reference data.
func reserveToken(r *ReserveData) *types.Token {
	return &types.Token{
		Address:  r.UnderlyingAsset,
		Name:     r.Name,
		Symbol:   r.Symbol,
		Decimals: uint8(r.Decimals.Uint64()),
	}
}

func (r *ReserveData) borrowable() bool {
	return r.IsActive && !r.IsPaused && !r.IsFrozen && r.BorrowingEnabled
}

func (r *ReserveData) collateralizable() bool {
	return r.IsActive && !r.IsPaused && r.UsageAsCollateralEnabled && r.BaseLTVasCollateral.Sign() > 0
}

// utilization is borrowed/(borrowed+available) for the reserve.
func (r *ReserveData) utilization() float64 {
	debt := fixedpoint.ScaledToActual(r.TotalScaledVariableDebt, r.VariableBorrowIndex)
	debt.Add(debt, r.TotalPrincipalStableDebt)
	supplied := new(big.Int).Add(debt, r.AvailableLiquidity)
	if supplied.Sign() <= 0 {
		return 0
	}
	out, _ := new(big.Float).Quo(new(big.Float).SetInt(debt), new(big.Float).SetInt(supplied)).Float64()
	return out
}

// reserveRates resolves trailing rates for a reserve: the historical
// series when a pool id is mapped, the current on-chain ray rates
// otherwise.
func (a *Adapter) reserveRates(ctx context.Context, r *ReserveData) yield.TrailingAPY {
	if a.yields != nil {
		if poolID, ok := a.poolIDs[r.Symbol]; ok {
			apy, err := a.yields.TrailingAPY(ctx, poolID)
			if err == nil {
				return *apy
			}
			a.logger.Warn("trailing APY lookup failed, using current rate",
				zap.String("protocol", string(a.protocol)),
				zap.String("symbol", r.Symbol),
				zap.Error(err))
		}
	}
	return yield.TrailingAPY{
		BorrowingAPY: fixedpoint.RayToFloat(r.VariableBorrowRate),
		LendingAPY:   fixedpoint.RayToFloat(r.LiquidityRate),
	}
}

// GetMarkets surfaces one pooled market per borrowable reserve, each
// serving every collateral-enabled reserve.
func (a *Adapter) GetMarkets(ctx context.Context) ([]*types.Market, error) {
	reserves, base, err := a.source.ReservesData(ctx)
	if err != nil {
		return nil, err
	}
	return a.buildMarkets(ctx, reserves, base), nil
}

func (a *Adapter) buildMarkets(ctx context.Context, reserves []ReserveData, base *BaseCurrencyInfo) []*types.Market {
	rates := make(map[string]yield.TrailingAPY, len(reserves))
	for i := range reserves {
		r := &reserves[i]
		rates[types.NormalizeAddress(r.UnderlyingAsset)] = a.reserveRates(ctx, r)
	}

	var collaterals []types.CollateralFact
	for i := range reserves {
		r := &reserves[i]
		if !r.collateralizable() {
			continue
		}
		rate := rates[types.NormalizeAddress(r.UnderlyingAsset)]
		collaterals = append(collaterals, types.CollateralFact{
			Token:                          reserveToken(r),
			MaxLTV:                         float64(r.BaseLTVasCollateral.Uint64()) / bpsUnit,
			Trailing30DaysLendingAPY:       rate.LendingAPY,
			Trailing30DaysLendingRewardAPY: rate.LendingRewardAPY,
			PriceUSD:                       fixedpoint.PriceFromBase(r.PriceInMarketReferenceCurrency, base.MarketReferenceCurrencyUnit),
		})
	}

	var markets []*types.Market
	for i := range reserves {
		r := &reserves[i]
		if !r.borrowable() {
			continue
		}
		token := reserveToken(r)
		rate := rates[token.Key()]

		// Aave reports caps in whole tokens; markets carry token units.
		var borrowCap *big.Int
		if r.BorrowCap != nil && r.BorrowCap.Sign() > 0 {
			borrowCap = new(big.Int).Mul(r.BorrowCap,
				new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(token.Decimals)), nil))
		}

		markets = append(markets, &types.Market{
			Protocol:                         a.protocol,
			Kind:                             types.MarketPooled,
			PoolID:                           fmt.Sprintf("%s:%s", a.protocol, token.Symbol),
			DebtToken:                        token,
			DebtPriceUSD:                     fixedpoint.PriceFromBase(r.PriceInMarketReferenceCurrency, base.MarketReferenceCurrencyUnit),
			Trailing30DaysBorrowingAPY:       rate.BorrowingAPY,
			Trailing30DaysBorrowingRewardAPY: rate.BorrowingRewardAPY,
			UtilizationRatio:                 r.utilization(),
			BorrowCap:                        borrowCap,
			AvailableLiquidity:               r.AvailableLiquidity,
			Collaterals:                      collaterals,
		})
	}
	return markets
}

// GetSupportedTokens lists the pool's active reserve tokens.
func (a *Adapter) GetSupportedTokens(ctx context.Context) ([]*types.Token, error) {
	reserves, _, err := a.source.ReservesData(ctx)
	if err != nil {
		return nil, err
	}
	var tokens []*types.Token
	for i := range reserves {
		r := &reserves[i]
		if r.IsActive && !r.IsPaused {
			tokens = append(tokens, reserveToken(r))
		}
	}
	return tokens, nil
}

// GetUserDebtDetails builds the pooled-protocol position set: one
// aggregate position covering the whole account, plus one per-debt-token
// sub-position when the user borrows more than one asset. All collateral
// secures all debts jointly, so every sub-position carries the full
// collateral set with only its token's share of debt.
func (a *Adapter) GetUserDebtDetails(ctx context.Context, user common.Address) (*types.UserDebtDetails, error) {
	reserves, base, err := a.source.ReservesData(ctx)
	if err != nil {
		return nil, err
	}
	userReserves, err := a.source.UserReservesData(ctx, user)
	if err != nil {
		return nil, err
	}

	details := &types.UserDebtDetails{
		Protocol: a.protocol,
		Markets:  a.buildMarkets(ctx, reserves, base),
	}

	byAddr := make(map[string]*ReserveData, len(reserves))
	for i := range reserves {
		byAddr[types.NormalizeAddress(reserves[i].UnderlyingAsset)] = &reserves[i]
	}

	var debts, collaterals []types.TokenAmount
	var debtLegs, collateralLegs []valuation.Leg
	for i := range userReserves {
		ur := &userReserves[i]
		r, ok := byAddr[types.NormalizeAddress(ur.UnderlyingAsset)]
		if !ok {
			return nil, types.NewDataSourceError(a.protocol, "getUserReservesData",
				fmt.Errorf("user reserve %s has no matching reserve", ur.UnderlyingAsset.Hex()))
		}
		token := reserveToken(r)
		price := fixedpoint.PriceFromBase(r.PriceInMarketReferenceCurrency, base.MarketReferenceCurrencyUnit)
		rate := a.reserveRates(ctx, r)

		debt := fixedpoint.ScaledToActual(ur.ScaledVariableDebt, r.VariableBorrowIndex)
		if ur.PrincipalStableDebt != nil {
			debt.Add(debt, ur.PrincipalStableDebt)
		}
		if debt.Sign() > 0 {
			usd := fixedpoint.TokenToUSD(debt, token.Decimals, price)
			debts = append(debts, types.TokenAmount{Token: token, Amount: debt, AmountUSD: usd})
			debtLegs = append(debtLegs, valuation.Leg{
				AmountUSD: usd,
				APY:       rate.BorrowingAPY,
				RewardAPY: rate.BorrowingRewardAPY,
			})
		}

		if ur.UsageAsCollateralEnabledOnUser && ur.ScaledATokenBalance != nil && ur.ScaledATokenBalance.Sign() > 0 {
			supplied := fixedpoint.ScaledToActual(ur.ScaledATokenBalance, r.LiquidityIndex)
			usd := fixedpoint.TokenToUSD(supplied, token.Decimals, price)
			collaterals = append(collaterals, types.TokenAmount{Token: token, Amount: supplied, AmountUSD: usd})
			collateralLegs = append(collateralLegs, valuation.Leg{
				AmountUSD: usd,
				APY:       rate.LendingAPY,
				RewardAPY: rate.LendingRewardAPY,
			})
		}
	}

	if len(debts) == 0 {
		// No open borrows in this protocol: valid, empty result.
		return details, nil
	}

	account, err := a.source.UserAccountData(ctx, user)
	if err != nil {
		return nil, err
	}

	collateralUSD := fixedpoint.BaseToUSD(account.TotalCollateralBase, base.MarketReferenceCurrencyUnit)
	debtUSD := fixedpoint.BaseToUSD(account.TotalDebtBase, base.MarketReferenceCurrencyUnit)
	ltv, err := valuation.LTV(debtUSD, collateralUSD)
	if err != nil {
		a.logger.Warn("excluding unsound account position",
			zap.String("protocol", string(a.protocol)),
			zap.String("user", user.Hex()),
			zap.Error(err))
		return details, nil
	}
	maxLTV := float64(account.LTV.Uint64()) / bpsUnit

	netAPY, err := valuation.NetBorrowingAPY(collateralLegs, debtLegs)
	if err != nil {
		return nil, err
	}
	lendAPY, lendReward := valuation.WeightedAPY(collateralLegs)

	aggregate := &types.DebtPosition{
		Kind:                          types.PositionAggregate,
		Debts:                         debts,
		Collaterals:                   collaterals,
		LTV:                           ltv,
		MaxLTV:                        maxLTV,
		Trailing30DaysNetBorrowingAPY: netAPY,
		WeightedAvgLendingAPY:         lendAPY,
		WeightedAvgLendingRewardAPY:   lendReward,
	}
	details.DebtPositions = append(details.DebtPositions, aggregate)

	// With more than one distinct debt token, break out one sub-position
	// per token so refinancing can be evaluated per debt.
	if len(debts) > 1 {
		totalCollateralUSD := aggregate.TotalCollateralUSD()
		for i, d := range debts {
			perLTV, err := valuation.LTV(d.AmountUSD, totalCollateralUSD)
			if err != nil {
				continue
			}
			perNet, err := valuation.NetBorrowingAPY(collateralLegs, []valuation.Leg{debtLegs[i]})
			if err != nil {
				continue
			}
			details.DebtPositions = append(details.DebtPositions, &types.DebtPosition{
				Kind:                          types.PositionPerToken,
				Debts:                         []types.TokenAmount{d},
				Collaterals:                   collaterals,
				LTV:                           perLTV,
				MaxLTV:                        maxLTV,
				Trailing30DaysNetBorrowingAPY: perNet,
				WeightedAvgLendingAPY:         lendAPY,
				WeightedAvgLendingRewardAPY:   lendReward,
			})
		}
	}

	return details, nil
}
