// Package valuation computes position health and yield metrics: LTV,
// USD-weighted max LTV, signed net borrowing APY, and hypothetical
// positions for recommendation candidates.
package valuation

import (
	"math/big"

	"github.com/cubfinance/refi/fixedpoint"
	"github.com/cubfinance/refi/types"
)

// DefaultSafetyBuffer is subtracted from a candidate market's max LTV when
// sizing a refinanced position. Treated as configurable; the 0.05 default
// has no documented derivation beyond the original product decision.
const DefaultSafetyBuffer = 0.05

// Leg is one USD-weighted APY contribution (a collateral or a debt).
type Leg struct {
	AmountUSD float64
	APY       float64
	RewardAPY float64
}

// LTV computes debt/collateral. Zero collateral is a valuation error, not
// an infinity.
func LTV(debtUSD, collateralUSD float64) (float64, error) {
	if collateralUSD <= 0 {
		return 0, types.NewValuationError("total collateral USD is zero")
	}
	return debtUSD / collateralUSD, nil
}

// WeightedMaxLTV is the USD-value-weighted average of each collateral's
// max LTV factor.
func WeightedMaxLTV(legs []Leg, factors []float64) (float64, error) {
	if len(legs) != len(factors) {
		return 0, types.NewValuationError("collateral/factor length mismatch")
	}
	var num, den float64
	for i, l := range legs {
		num += l.AmountUSD * factors[i]
		den += l.AmountUSD
	}
	if den <= 0 {
		return 0, types.NewValuationError("total collateral USD is zero")
	}
	return num / den, nil
}

// NetBorrowingAPY combines lending interest and rewards earned on
// collateral with borrowing rewards, minus borrowing interest paid,
// normalized by total debt USD. Positive means the position nets income.
func NetBorrowingAPY(collaterals, debts []Leg) (float64, error) {
	var debtUSD float64
	for _, d := range debts {
		debtUSD += d.AmountUSD
	}
	if debtUSD <= 0 {
		return 0, types.NewValuationError("total debt USD is zero")
	}

	var net float64
	for _, c := range collaterals {
		net += c.AmountUSD * (c.APY + c.RewardAPY)
	}
	for _, d := range debts {
		net += d.AmountUSD * d.RewardAPY
		net -= d.AmountUSD * d.APY
	}
	return net / debtUSD, nil
}

// WeightedAPY returns the USD-weighted average base and reward APY of the
// given legs.
func WeightedAPY(legs []Leg) (float64, float64) {
	var den, base, reward float64
	for _, l := range legs {
		den += l.AmountUSD
		base += l.AmountUSD * l.APY
		reward += l.AmountUSD * l.RewardAPY
	}
	if den <= 0 {
		return 0, 0
	}
	return base / den, reward / den
}

// valuedCollateral prices the supplied collaterals against the market's
// facts, dropping tokens the market does not accept.
func valuedCollateral(market *types.Market, collaterals []types.TokenAmount) ([]types.TokenAmount, []types.CollateralFact, error) {
	var amounts []types.TokenAmount
	var facts []types.CollateralFact
	for _, c := range collaterals {
		fact, ok := market.Collateral(c.Token)
		if !ok {
			continue
		}
		if fact.PriceUSD <= 0 {
			return nil, nil, types.NewValuationError("missing price for %s", c.Token.Symbol)
		}
		amounts = append(amounts, types.TokenAmount{
			Token:     c.Token,
			Amount:    new(big.Int).Set(c.Amount),
			AmountUSD: fixedpoint.TokenToUSD(c.Amount, c.Token.Decimals, fact.PriceUSD),
		})
		facts = append(facts, fact)
	}
	if len(amounts) == 0 {
		return nil, nil, types.NewValuationError("market accepts none of the offered collateral")
	}
	return amounts, facts, nil
}

// BorrowPosition sizes a fresh borrow against the given collateral: with
// no existing debt constraining it, the debt is sized to the weighted max
// LTV exactly.
func BorrowPosition(market *types.Market, collaterals []types.TokenAmount) (*types.DebtPosition, error) {
	amounts, facts, err := valuedCollateral(market, collaterals)
	if err != nil {
		return nil, err
	}
	maxLTV, err := weightedFromFacts(amounts, facts)
	if err != nil {
		return nil, err
	}
	var collateralUSD float64
	for _, a := range amounts {
		collateralUSD += a.AmountUSD
	}
	return buildPosition(market, amounts, facts, maxLTV*collateralUSD, maxLTV)
}

// RefinancePosition moves an existing debt (in USD) onto the given
// collateral in a new market. If the naive LTV would exceed ltvCeiling,
// the position is capped at the ceiling and the debt recomputed downward,
// converting the USD cap back to token units via the market price.
func RefinancePosition(market *types.Market, collaterals []types.TokenAmount, debtUSD, ltvCeiling float64) (*types.DebtPosition, error) {
	amounts, facts, err := valuedCollateral(market, collaterals)
	if err != nil {
		return nil, err
	}
	maxLTV, err := weightedFromFacts(amounts, facts)
	if err != nil {
		return nil, err
	}

	var collateralUSD float64
	for _, a := range amounts {
		collateralUSD += a.AmountUSD
	}
	naive, err := LTV(debtUSD, collateralUSD)
	if err != nil {
		return nil, err
	}
	if naive > ltvCeiling {
		debtUSD = ltvCeiling * collateralUSD
	}
	return buildPosition(market, amounts, facts, debtUSD, maxLTV)
}

func weightedFromFacts(amounts []types.TokenAmount, facts []types.CollateralFact) (float64, error) {
	legs := make([]Leg, len(amounts))
	factors := make([]float64, len(facts))
	for i := range amounts {
		legs[i] = Leg{AmountUSD: amounts[i].AmountUSD}
		factors[i] = facts[i].MaxLTV
	}
	return WeightedMaxLTV(legs, factors)
}

func buildPosition(market *types.Market, amounts []types.TokenAmount, facts []types.CollateralFact, debtUSD, maxLTV float64) (*types.DebtPosition, error) {
	if market.DebtPriceUSD <= 0 {
		return nil, types.NewValuationError("missing price for %s", market.DebtToken.Symbol)
	}

	debtAmount := fixedpoint.USDToToken(debtUSD, market.DebtToken.Decimals, market.DebtPriceUSD)
	// Re-derive the USD figure from the truncated token amount so the
	// stored value matches what would actually be borrowed.
	debtUSD = fixedpoint.TokenToUSD(debtAmount, market.DebtToken.Decimals, market.DebtPriceUSD)

	var collateralUSD float64
	collateralLegs := make([]Leg, len(amounts))
	for i, a := range amounts {
		collateralUSD += a.AmountUSD
		collateralLegs[i] = Leg{
			AmountUSD: a.AmountUSD,
			APY:       facts[i].Trailing30DaysLendingAPY,
			RewardAPY: facts[i].Trailing30DaysLendingRewardAPY,
		}
	}

	ltv, err := LTV(debtUSD, collateralUSD)
	if err != nil {
		return nil, err
	}

	debtLegs := []Leg{{
		AmountUSD: debtUSD,
		APY:       market.Trailing30DaysBorrowingAPY,
		RewardAPY: market.Trailing30DaysBorrowingRewardAPY,
	}}
	netAPY, err := NetBorrowingAPY(collateralLegs, debtLegs)
	if err != nil {
		return nil, err
	}
	lendAPY, lendReward := WeightedAPY(collateralLegs)

	return &types.DebtPosition{
		Kind: types.PositionSingle,
		Debts: []types.TokenAmount{{
			Token:     market.DebtToken,
			Amount:    debtAmount,
			AmountUSD: debtUSD,
		}},
		Collaterals:                   amounts,
		LTV:                           ltv,
		MaxLTV:                        maxLTV,
		Trailing30DaysNetBorrowingAPY: netAPY,
		WeightedAvgLendingAPY:         lendAPY,
		WeightedAvgLendingRewardAPY:   lendReward,
	}, nil
}
