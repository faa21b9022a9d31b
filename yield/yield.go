// Package yield supplies trailing APY figures for markets whose protocol
// does not report a monthly rate itself.
package yield

import "context"

// TrailingAPY holds trailing-30-day rates for one market, as fractions
// (0.05 = 5%).
type TrailingAPY struct {
	BorrowingAPY       float64
	LendingAPY         float64
	BorrowingRewardAPY float64
	LendingRewardAPY   float64
}

// Provider produces trailing APYs for a pool id. Implementations must
// average whatever history exists; a short series is not an error.
type Provider interface {
	TrailingAPY(ctx context.Context, poolID string) (*TrailingAPY, error)
}
