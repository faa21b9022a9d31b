package types

import (
	"math/big"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
)

// Protocol identifies a supported lending protocol.
type Protocol string

const (
	ProtocolAaveV3     Protocol = "AaveV3"
	ProtocolSpark      Protocol = "Spark"
	ProtocolCompoundV3 Protocol = "CompoundV3"
	ProtocolMorphoBlue Protocol = "MorphoBlue"
)

// MarketKind distinguishes pooled multi-asset markets from isolated pairs.
type MarketKind int

const (
	MarketPooled MarketKind = iota
	MarketIsolatedPair
)

// PositionKind tags how a DebtPosition was derived. Pooled protocols emit
// one aggregate position for the whole account plus per-debt-token
// sub-positions; consumers must key on this tag, not on slice order.
type PositionKind int

const (
	PositionAggregate PositionKind = iota
	PositionPerToken
	PositionSingle
)

// Token is immutable reference data for an ERC20 asset.
type Token struct {
	Address  common.Address
	Name     string
	Symbol   string
	Decimals uint8
}

// Key returns the normalized lower-case address used for all token
// comparisons and map keys.
func (t *Token) Key() string {
	return strings.ToLower(t.Address.Hex())
}

// TokenAmount is an integer amount scaled by 10^decimals. AmountUSD is a
// derived floating approximation used for ranking and display only.
type TokenAmount struct {
	Token     *Token
	Amount    *big.Int
	AmountUSD float64
}

// CollateralFact describes one collateral asset accepted by a market.
type CollateralFact struct {
	Token                          *Token
	MaxLTV                         float64
	Trailing30DaysLendingAPY       float64
	Trailing30DaysLendingRewardAPY float64
	PriceUSD                       float64
}

// Market is a normalized lending market: exactly one debt token served
// against one or more collateral tokens. Pooled protocols surface one
// Market per borrowable reserve; isolated protocols one per pair.
type Market struct {
	Protocol Protocol
	Kind     MarketKind
	// PoolID identifies the underlying pool/comet/pair within the protocol.
	PoolID string

	DebtToken    *Token
	DebtPriceUSD float64

	Trailing30DaysBorrowingAPY       float64
	Trailing30DaysBorrowingRewardAPY float64

	// UtilizationRatio is borrowed/supplied in [0,1]. Markets at or above
	// 0.98 are too risky to recommend into; at or below 0 the data is
	// stale or the market is empty.
	UtilizationRatio float64

	// BorrowCap is in debt-token units; nil or zero means uncapped.
	BorrowCap          *big.Int
	AvailableLiquidity *big.Int

	Collaterals []CollateralFact
}

// Key returns a stable 64-bit identifier for the market, usable as a map
// key and in logs.
func (m *Market) Key() uint64 {
	return MarketKey(m.Protocol, m.PoolID, m.DebtToken.Key())
}

// MarketKey hashes (protocol, pool, debt token) into a stable identifier.
func MarketKey(protocol Protocol, poolID, debtKey string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(string(protocol))
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(poolID)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(debtKey)
	return d.Sum64()
}

// Collateral returns the market's fact for the given token, if accepted.
func (m *Market) Collateral(t *Token) (CollateralFact, bool) {
	key := t.Key()
	for _, c := range m.Collaterals {
		if c.Token.Key() == key {
			return c, true
		}
	}
	return CollateralFact{}, false
}

// DebtPosition is a user's borrow, normalized across protocol shapes.
type DebtPosition struct {
	Kind        PositionKind
	Debts       []TokenAmount
	Collaterals []TokenAmount

	// LTV = totalDebtUSD / totalCollateralUSD.
	LTV    float64
	MaxLTV float64

	// Trailing30DaysNetBorrowingAPY is signed: positive means the position
	// nets interest income, negative means the user pays net interest.
	Trailing30DaysNetBorrowingAPY float64

	WeightedAvgLendingAPY       float64
	WeightedAvgLendingRewardAPY float64
}

// TotalDebtUSD sums the USD value of all debts.
func (p *DebtPosition) TotalDebtUSD() float64 {
	var sum float64
	for _, d := range p.Debts {
		sum += d.AmountUSD
	}
	return sum
}

// TotalCollateralUSD sums the USD value of all collaterals.
func (p *DebtPosition) TotalCollateralUSD() float64 {
	var sum float64
	for _, c := range p.Collaterals {
		sum += c.AmountUSD
	}
	return sum
}

// UserDebtDetails is one protocol's normalized snapshot for one account.
// It is produced fresh on every request; nothing here is cached.
type UserDebtDetails struct {
	Protocol      Protocol
	Markets       []*Market
	DebtPositions []*DebtPosition
}

// RecommendedDebtDetail pairs a candidate market with the hypothetical
// position borrowing or refinancing into it would create.
type RecommendedDebtDetail struct {
	Protocol Protocol
	Market   *Market
	Debt     *DebtPosition
}

// DebtPositionTableRow is one merged row handed to presentation code.
type DebtPositionTableRow struct {
	Protocol Protocol
	Position *DebtPosition
}

// NormalizeAddress lower-cases a hex address for comparison.
func NormalizeAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
