package morpho

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cubfinance/refi/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(config.MorphoConfig{
		ChainID:         1,
		GraphQLEndpoint: srv.URL,
	}, config.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000}, zap.NewNop())
	require.NoError(t, err)
	client.http.SetRetryCount(0)
	return client, srv
}

func TestClientMarkets(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Contains(t, req["query"], "markets(")
		assert.EqualValues(t, 1, req["variables"].(map[string]interface{})["chainId"])

		_, _ = w.Write([]byte(`{"data":{"markets":{"items":[
			{"uniqueKey":"0xabc","lltv":"860000000000000000",
			 "loanAsset":{"address":"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48","symbol":"USDC","name":"USD Coin","decimals":6,"priceUsd":1.0},
			 "collateralAsset":{"address":"0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0","symbol":"wstETH","name":"wstETH","decimals":18,"priceUsd":2900.0},
			 "state":{"utilization":0.82,"monthlyBorrowApy":0.051,"monthlySupplyApy":0.043,"liquidityAssets":"12000000000000","rewards":[]}}
		]}}}`))
	})

	nodes, err := client.Markets(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "0xabc", nodes[0].UniqueKey)
	assert.Equal(t, "USDC", nodes[0].LoanAsset.Symbol)
	assert.InDelta(t, 0.051, nodes[0].State.MonthlyBorrowAPY, 1e-9)
}

func TestClientMarketsPaginates(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &req))
		skip := int(req["variables"].(map[string]interface{})["skip"].(float64))

		// First page comes back full; the follow-up page is short.
		count := 2
		if skip == 0 {
			count = pageSize
		}
		items := make([]string, count)
		for i := range items {
			items[i] = fmt.Sprintf(`{"uniqueKey":"0x%d-%d"}`, skip, i)
		}
		_, _ = w.Write([]byte(`{"data":{"markets":{"items":[` + strings.Join(items, ",") + `]}}}`))
	})

	nodes, err := client.Markets(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, pageSize+2)
	assert.Equal(t, "0x0-0", nodes[0].UniqueKey)
	assert.Equal(t, fmt.Sprintf("0x%d-1", pageSize), nodes[pageSize+1].UniqueKey)
}

func TestClientUserPositionsSendsUserVariable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.True(t, strings.Contains(string(body), "marketPositions"))
		assert.True(t, strings.Contains(string(body), userAddr.Hex()))
		_, _ = w.Write([]byte(`{"data":{"marketPositions":{"items":[]}}}`))
	})

	positions, err := client.UserPositions(context.Background(), userAddr)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestClientSurfacesGraphQLErrors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"unknown field"}]}`))
	})

	_, err := client.Markets(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestClientSurfacesHTTPErrors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Markets(context.Background())
	assert.Error(t, err)
}

func TestNewClientRejectsBadConfig(t *testing.T) {
	_, err := NewClient(config.MorphoConfig{ChainID: 5, GraphQLEndpoint: "https://example.org"}, config.RateLimitConfig{}, zap.NewNop())
	assert.Error(t, err)
}
