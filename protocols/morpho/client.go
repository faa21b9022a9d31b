package morpho

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cubfinance/refi/config"
	"github.com/cubfinance/refi/types"
)

// pageSize is the maximum item count the API returns per request; a full
// page means another must be fetched.
const pageSize = 500

const marketsQuery = `query Markets($chainId: Int!, $skip: Int!) {
  markets(first: 500, skip: $skip, where: { chainId_in: [$chainId] }) {
    items {
      uniqueKey
      lltv
      loanAsset { address symbol name decimals priceUsd }
      collateralAsset { address symbol name decimals priceUsd }
      state {
        utilization
        monthlyBorrowApy
        monthlySupplyApy
        liquidityAssets
        rewards { supplyApr borrowApr }
      }
    }
  }
}`

const positionsQuery = `query Positions($chainId: Int!, $user: String!, $skip: Int!) {
  marketPositions(first: 500, skip: $skip, where: { chainId_in: [$chainId], userAddress_in: [$user] }) {
    items {
      borrowAssets
      borrowAssetsUsd
      collateral
      collateralUsd
      market {
        uniqueKey
        lltv
        loanAsset { address symbol name decimals priceUsd }
        collateralAsset { address symbol name decimals priceUsd }
        state {
          utilization
          monthlyBorrowApy
          monthlySupplyApy
          liquidityAssets
          rewards { supplyApr borrowApr }
        }
      }
    }
  }
}`

// Client implements DataSource against the Morpho GraphQL API.
type Client struct {
	endpoint string
	chainID  uint64
	http     *resty.Client
	logger   *zap.Logger
}

// NewClient builds the GraphQL-backed DataSource honoring the given
// request rate limit.
func NewClient(cfg config.MorphoConfig, limit config.RateLimitConfig, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	http := resty.New().SetRetryCount(3)
	if limit.RequestsPerSecond > 0 {
		http.SetRateLimiter(rate.NewLimiter(rate.Limit(limit.RequestsPerSecond), limit.BurstSize))
	}
	return &Client{
		endpoint: cfg.GraphQLEndpoint,
		chainID:  cfg.ChainID,
		http:     http,
		logger:   logger,
	}, nil
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

type itemsPage[T any] struct {
	Items []T `json:"items"`
}

// query posts one GraphQL operation and decodes the data payload into
// out.
func (c *Client) query(ctx context.Context, operation string, variables map[string]interface{}, out interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"query":     operation,
			"variables": variables,
		}).
		Post(c.endpoint)
	if err != nil {
		return types.NewDataSourceError(types.ProtocolMorphoBlue, "graphql", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.NewDataSourceError(types.ProtocolMorphoBlue, "graphql",
			fmt.Errorf("endpoint returned status %d", resp.StatusCode()))
	}

	var envelope gqlEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return types.NewDataSourceError(types.ProtocolMorphoBlue, "graphql",
			fmt.Errorf("failed to decode response: %w", err))
	}
	if len(envelope.Errors) > 0 {
		return types.NewDataSourceError(types.ProtocolMorphoBlue, "graphql",
			fmt.Errorf("query rejected: %s", envelope.Errors[0].Message))
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return types.NewDataSourceError(types.ProtocolMorphoBlue, "graphql",
			fmt.Errorf("failed to decode data payload: %w", err))
	}
	return nil
}

// queryPaged walks pages of one list field until a short page signals the
// end of the result set.
func queryPaged[T any](ctx context.Context, c *Client, operation, field string, variables map[string]interface{}) ([]T, error) {
	var items []T
	for skip := 0; ; skip += pageSize {
		variables["skip"] = skip
		var data map[string]itemsPage[T]
		if err := c.query(ctx, operation, variables, &data); err != nil {
			return nil, err
		}
		page := data[field].Items
		items = append(items, page...)
		if len(page) < pageSize {
			return items, nil
		}
	}
}

func (c *Client) Markets(ctx context.Context) ([]MarketNode, error) {
	items, err := queryPaged[MarketNode](ctx, c, marketsQuery, "markets", map[string]interface{}{
		"chainId": c.chainID,
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("fetched morpho markets", zap.Int("count", len(items)))
	return items, nil
}

func (c *Client) UserPositions(ctx context.Context, user common.Address) ([]PositionNode, error) {
	return queryPaged[PositionNode](ctx, c, positionsQuery, "marketPositions", map[string]interface{}{
		"chainId": c.chainID,
		"user":    user.Hex(),
	})
}
