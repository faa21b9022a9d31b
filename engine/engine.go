// Package engine scans normalized markets across protocols for borrowing
// and refinancing opportunities. It consumes the common Market shape only;
// protocol specifics end at the adapter boundary.
package engine

import (
	"errors"
	"math/big"

	"go.uber.org/zap"

	"github.com/cubfinance/refi/types"
	"github.com/cubfinance/refi/valuation"
)

const (
	// DefaultMaxLTVTolerance bounds how much additional leverage a
	// refinance recommendation may carry over the existing position.
	DefaultMaxLTVTolerance = 0.10

	// DefaultBorrowingAPYTolerance is the minimum rate improvement a
	// candidate must offer over the existing net borrowing cost.
	DefaultBorrowingAPYTolerance = 0.01

	// maxRecommendableUtilization excludes near-exhausted markets; a
	// utilization at or above this is too risky to borrow into.
	maxRecommendableUtilization = 0.98
)

// Options tunes the recommendation filters. Zero values fall back to the
// defaults above.
type Options struct {
	MaxLTVTolerance       float64
	BorrowingAPYTolerance float64
	SafetyBuffer          float64
}

func (o Options) withDefaults() Options {
	if o.MaxLTVTolerance == 0 {
		o.MaxLTVTolerance = DefaultMaxLTVTolerance
	}
	if o.BorrowingAPYTolerance == 0 {
		o.BorrowingAPYTolerance = DefaultBorrowingAPYTolerance
	}
	if o.SafetyBuffer == 0 {
		o.SafetyBuffer = valuation.DefaultSafetyBuffer
	}
	return o
}

// Engine produces recommendation candidates. Ordering is left to the
// caller: the engine returns the qualifying superset, protocol-tagged,
// with the full valued hypothetical position attached.
type Engine struct {
	opts   Options
	logger *zap.Logger
}

// New builds an engine with the given options.
func New(opts Options, logger *zap.Logger) *Engine {
	return &Engine{opts: opts.withDefaults(), logger: logger}
}

// marketEligible applies the utilization filter: strictly between zero and
// the recommendable ceiling. Zero or negative utilization means stale or
// empty data and is excluded too.
func marketEligible(m *types.Market) bool {
	return m.UtilizationRatio > 0 && m.UtilizationRatio < maxRecommendableUtilization
}

// availableToBorrow returns the market's effective borrowable amount in
// debt-token units: min(borrowCap, availableLiquidity) when a cap is
// configured, otherwise the available liquidity. Nil when unknown.
func availableToBorrow(m *types.Market) *big.Int {
	avail := m.AvailableLiquidity
	if m.BorrowCap != nil && m.BorrowCap.Sign() > 0 {
		if avail == nil || m.BorrowCap.Cmp(avail) < 0 {
			avail = m.BorrowCap
		}
	}
	return avail
}

// hasCapacity checks the proposed debt amount against availableToBorrow.
func hasCapacity(m *types.Market, debt *big.Int) bool {
	avail := availableToBorrow(m)
	if avail == nil {
		return true
	}
	return avail.Cmp(debt) > 0
}

// BorrowRecommendations builds one candidate per (market × requested debt
// token) combination that survives the utilization and capacity filters.
// Fresh borrows are sized to the collateral's weighted max LTV.
func (e *Engine) BorrowRecommendations(markets []*types.Market, debtTokens []*types.Token, collaterals []types.TokenAmount) []*types.RecommendedDebtDetail {
	wanted := make(map[string]bool, len(debtTokens))
	for _, t := range debtTokens {
		wanted[t.Key()] = true
	}

	var out []*types.RecommendedDebtDetail
	for _, m := range markets {
		if !wanted[m.DebtToken.Key()] || !marketEligible(m) {
			continue
		}

		pos, err := valuation.BorrowPosition(m, collaterals)
		if err != nil {
			if errors.Is(err, types.ErrValuation) {
				e.logger.Debug("skipping market",
					zap.String("protocol", string(m.Protocol)),
					zap.String("debt", m.DebtToken.Symbol),
					zap.Error(err))
				continue
			}
			e.logger.Warn("failed to value borrow candidate",
				zap.String("protocol", string(m.Protocol)),
				zap.Error(err))
			continue
		}
		if !hasCapacity(m, pos.Debts[0].Amount) {
			continue
		}

		out = append(out, &types.RecommendedDebtDetail{
			Protocol: m.Protocol,
			Market:   m,
			Debt:     pos,
		})
	}
	return out
}

// RefinanceRecommendations proposes cheaper markets for an existing
// position. A position already earning net positive yield has no
// refinancing incentive and yields no candidates. Candidates must lend
// the same debt token as the existing position and beat its net
// borrowing cost by at least the APY tolerance.
func (e *Engine) RefinanceRecommendations(existing *types.DebtPosition, markets []*types.Market) []*types.RecommendedDebtDetail {
	if existing == nil || len(existing.Debts) == 0 || existing.Trailing30DaysNetBorrowingAPY >= 0 {
		return nil
	}
	currentCost := -existing.Trailing30DaysNetBorrowingAPY
	debtUSD := existing.TotalDebtUSD()
	debtKey := existing.Debts[0].Token.Key()

	var out []*types.RecommendedDebtDetail
	for _, m := range markets {
		// A refinance keeps the debt currency; markets for a different
		// token are a new borrow, not a replacement.
		if m.DebtToken.Key() != debtKey || !marketEligible(m) {
			continue
		}
		if m.Trailing30DaysBorrowingAPY > currentCost-e.opts.BorrowingAPYTolerance {
			continue
		}

		pos, err := e.sizeRefinance(m, existing, debtUSD)
		if err != nil {
			if errors.Is(err, types.ErrValuation) {
				e.logger.Debug("skipping refinance candidate",
					zap.String("protocol", string(m.Protocol)),
					zap.String("debt", m.DebtToken.Symbol),
					zap.Error(err))
				continue
			}
			e.logger.Warn("failed to value refinance candidate",
				zap.String("protocol", string(m.Protocol)),
				zap.Error(err))
			continue
		}
		if !hasCapacity(m, pos.Debts[0].Amount) {
			continue
		}

		out = append(out, &types.RecommendedDebtDetail{
			Protocol: m.Protocol,
			Market:   m,
			Debt:     pos,
		})
	}
	return out
}

// sizeRefinance moves the existing debt onto the candidate market's
// collateral terms. The LTV ceiling is the tighter of the candidate
// market's weighted max LTV minus the safety buffer and the existing max
// LTV plus the leverage tolerance, so the recommendation never carries
// materially more risk than the position it replaces.
func (e *Engine) sizeRefinance(m *types.Market, existing *types.DebtPosition, debtUSD float64) (*types.DebtPosition, error) {
	ceiling := existing.MaxLTV + e.opts.MaxLTVTolerance
	pos, err := valuation.RefinancePosition(m, existing.Collaterals, debtUSD, ceiling)
	if err != nil {
		return nil, err
	}

	buffered := pos.MaxLTV - e.opts.SafetyBuffer
	if buffered <= 0 {
		return nil, types.NewValuationError("market max LTV %.4f below safety buffer", pos.MaxLTV)
	}
	if pos.LTV > buffered {
		pos, err = valuation.RefinancePosition(m, existing.Collaterals, debtUSD, buffered)
		if err != nil {
			return nil, err
		}
	}
	return pos, nil
}
