package morpho

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/cubfinance/refi/fixedpoint"
	"github.com/cubfinance/refi/types"
	"github.com/cubfinance/refi/valuation"
)

// Adapter implements protocols.Adapter for Morpho Blue.
type Adapter struct {
	source DataSource
	logger *zap.Logger
}

func New(source DataSource, logger *zap.Logger) *Adapter {
	return &Adapter{source: source, logger: logger}
}

func (a *Adapter) Protocol() types.Protocol { return types.ProtocolMorphoBlue }

func nodeToken(n *TokenNode) *types.Token {
	return &types.Token{
		Address:  common.HexToAddress(n.Address),
		Name:     n.Name,
		Symbol:   n.Symbol,
		Decimals: n.Decimals,
	}
}

func nodePrice(n *TokenNode) float64 {
	if n.PriceUSD == nil {
		return 0
	}
	return *n.PriceUSD
}

// rewardAPRs sums the active incentive programs per side.
func rewardAPRs(rewards []RewardNode) (supply, borrow float64) {
	for _, r := range rewards {
		if r.SupplyAPR != nil {
			supply += *r.SupplyAPR
		}
		if r.BorrowAPR != nil {
			borrow += *r.BorrowAPR
		}
	}
	return supply, borrow
}

// buildMarket turns one GraphQL market node into an isolated-pair market.
// Idle markets (no collateral asset) and nodes missing live state are
// skipped with a nil return.
func (a *Adapter) buildMarket(node *MarketNode) (*types.Market, error) {
	if node == nil || node.LoanAsset == nil || node.CollateralAsset == nil || node.State == nil {
		return nil, nil
	}

	lltv, err := parseBig(node.LLTV)
	if err != nil {
		return nil, err
	}
	liquidity, err := parseBig(node.State.LiquidityAssets)
	if err != nil {
		return nil, err
	}
	_, borrowReward := rewardAPRs(node.State.Rewards)

	return &types.Market{
		Protocol:                         types.ProtocolMorphoBlue,
		Kind:                             types.MarketIsolatedPair,
		PoolID:                           node.UniqueKey,
		DebtToken:                        nodeToken(node.LoanAsset),
		DebtPriceUSD:                     nodePrice(node.LoanAsset),
		Trailing30DaysBorrowingAPY:       node.State.MonthlyBorrowAPY,
		Trailing30DaysBorrowingRewardAPY: borrowReward,
		UtilizationRatio:                 node.State.Utilization,
		AvailableLiquidity:               liquidity,
		Collaterals: []types.CollateralFact{{
			Token:    nodeToken(node.CollateralAsset),
			MaxLTV:   fixedpoint.WadToFloat(lltv),
			PriceUSD: nodePrice(node.CollateralAsset),
		}},
	}, nil
}

func (a *Adapter) GetMarkets(ctx context.Context) ([]*types.Market, error) {
	nodes, err := a.source.Markets(ctx)
	if err != nil {
		return nil, err
	}
	var markets []*types.Market
	for i := range nodes {
		market, err := a.buildMarket(&nodes[i])
		if err != nil {
			return nil, err
		}
		if market != nil {
			markets = append(markets, market)
		}
	}
	return markets, nil
}

// GetSupportedTokens lists loan and collateral tokens across all
// markets, deduplicated by address.
func (a *Adapter) GetSupportedTokens(ctx context.Context) ([]*types.Token, error) {
	nodes, err := a.source.Markets(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var tokens []*types.Token
	add := func(n *TokenNode) {
		if n == nil {
			return
		}
		token := nodeToken(n)
		if seen[token.Key()] {
			return
		}
		seen[token.Key()] = true
		tokens = append(tokens, token)
	}
	for i := range nodes {
		add(nodes[i].LoanAsset)
		add(nodes[i].CollateralAsset)
	}
	return tokens, nil
}

// GetUserDebtDetails returns a flat list of independent positions, one
// per (debt token, collateral token) market the user has borrowed in.
// Isolated markets need no aggregation step.
func (a *Adapter) GetUserDebtDetails(ctx context.Context, user common.Address) (*types.UserDebtDetails, error) {
	markets, err := a.GetMarkets(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := a.source.UserPositions(ctx, user)
	if err != nil {
		return nil, err
	}

	details := &types.UserDebtDetails{
		Protocol: types.ProtocolMorphoBlue,
		Markets:  markets,
	}
	for i := range positions {
		position, err := a.buildPosition(&positions[i])
		if err != nil {
			a.logger.Warn("excluding unsound morpho position",
				zap.String("user", user.Hex()),
				zap.Error(err))
			continue
		}
		if position != nil {
			details.DebtPositions = append(details.DebtPositions, position)
		}
	}
	return details, nil
}

func (a *Adapter) buildPosition(node *PositionNode) (*types.DebtPosition, error) {
	market, err := a.buildMarket(node.Market)
	if err != nil || market == nil {
		return nil, err
	}
	borrowed, err := parseBig(node.BorrowAssets)
	if err != nil {
		return nil, err
	}
	if borrowed.Sign() == 0 {
		return nil, nil
	}
	supplied, err := parseBig(node.Collateral)
	if err != nil {
		return nil, err
	}

	debtUSD := fixedpoint.TokenToUSD(borrowed, market.DebtToken.Decimals, market.DebtPriceUSD)
	if node.BorrowAssetsUSD != nil {
		debtUSD = *node.BorrowAssetsUSD
	}
	fact := market.Collaterals[0]
	collateralUSD := fixedpoint.TokenToUSD(supplied, fact.Token.Decimals, fact.PriceUSD)
	if node.CollateralUSD != nil {
		collateralUSD = *node.CollateralUSD
	}

	ltv, err := valuation.LTV(debtUSD, collateralUSD)
	if err != nil {
		return nil, err
	}
	netAPY, err := valuation.NetBorrowingAPY(
		[]valuation.Leg{{AmountUSD: collateralUSD}},
		[]valuation.Leg{{
			AmountUSD: debtUSD,
			APY:       market.Trailing30DaysBorrowingAPY,
			RewardAPY: market.Trailing30DaysBorrowingRewardAPY,
		}})
	if err != nil {
		return nil, err
	}

	return &types.DebtPosition{
		Kind: types.PositionSingle,
		Debts: []types.TokenAmount{{
			Token:     market.DebtToken,
			Amount:    borrowed,
			AmountUSD: debtUSD,
		}},
		Collaterals: []types.TokenAmount{{
			Token:     fact.Token,
			Amount:    supplied,
			AmountUSD: collateralUSD,
		}},
		LTV:                           ltv,
		MaxLTV:                        fact.MaxLTV,
		Trailing30DaysNetBorrowingAPY: netAPY,
	}, nil
}
