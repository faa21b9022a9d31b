package defillama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cubfinance/refi/config"
)

var testLimit = config.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000}

func serveChart(t *testing.T, samples []map[string]interface{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/chartLendBorrow/")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"data":   samples,
		})
	}))
}

func TestTrailingAPYAveragesLast30(t *testing.T) {
	// 40 samples: only the last 30 must be averaged. First 10 carry wild
	// rates that would skew the mean if included.
	var samples []map[string]interface{}
	for i := 0; i < 10; i++ {
		samples = append(samples, map[string]interface{}{
			"timestamp": fmt.Sprintf("2024-01-%02dT00:00:00.000Z", i+1),
			"apyBase":   100.0, "apyBaseBorrow": 100.0,
		})
	}
	for i := 0; i < 30; i++ {
		samples = append(samples, map[string]interface{}{
			"timestamp": fmt.Sprintf("2024-02-%02dT00:00:00.000Z", i+1),
			"apyBase":   2.0, "apyBaseBorrow": 4.0,
		})
	}
	srv := serveChart(t, samples)
	defer srv.Close()

	apy, err := NewClient(srv.URL, testLimit, zap.NewNop()).TrailingAPY(context.Background(), "pool-1")
	require.NoError(t, err)

	assert.InDelta(t, 0.02, apy.LendingAPY, 1e-9)
	assert.InDelta(t, 0.04, apy.BorrowingAPY, 1e-9)
}

func TestTrailingAPYShortSeries(t *testing.T) {
	// A new market with 3 samples averages over what exists.
	samples := []map[string]interface{}{
		{"timestamp": "2024-03-01T00:00:00.000Z", "apyBase": 1.0, "apyBaseBorrow": 3.0},
		{"timestamp": "2024-03-02T00:00:00.000Z", "apyBase": 2.0, "apyBaseBorrow": 4.0},
		{"timestamp": "2024-03-03T00:00:00.000Z", "apyBase": 3.0, "apyBaseBorrow": 5.0},
	}
	srv := serveChart(t, samples)
	defer srv.Close()

	apy, err := NewClient(srv.URL, testLimit, zap.NewNop()).TrailingAPY(context.Background(), "pool-2")
	require.NoError(t, err)

	assert.InDelta(t, 0.02, apy.LendingAPY, 1e-9)
	assert.InDelta(t, 0.04, apy.BorrowingAPY, 1e-9)
}

func TestTrailingAPYRewardsSumNonzeroEntries(t *testing.T) {
	samples := []map[string]interface{}{
		{"timestamp": "2024-03-01T00:00:00.000Z", "apyBase": 2.0, "apyBaseBorrow": 4.0, "apyReward": 1.5, "apyRewardBorrow": 0.5},
		{"timestamp": "2024-03-02T00:00:00.000Z", "apyBase": 2.0, "apyBaseBorrow": 4.0, "apyReward": 2.5, "apyRewardBorrow": nil},
		{"timestamp": "2024-03-03T00:00:00.000Z", "apyBase": 2.0, "apyBaseBorrow": 4.0, "apyReward": nil, "apyRewardBorrow": 0.0},
	}
	srv := serveChart(t, samples)
	defer srv.Close()

	apy, err := NewClient(srv.URL, testLimit, zap.NewNop()).TrailingAPY(context.Background(), "pool-3")
	require.NoError(t, err)

	// Null and zero entries contribute nothing; nonzero entries add up.
	assert.InDelta(t, 0.04, apy.LendingRewardAPY, 1e-9)
	assert.InDelta(t, 0.005, apy.BorrowingRewardAPY, 1e-9)
}

func TestTrailingAPYEmptySeries(t *testing.T) {
	srv := serveChart(t, nil)
	defer srv.Close()

	_, err := NewClient(srv.URL, testLimit, zap.NewNop()).TrailingAPY(context.Background(), "pool-4")
	assert.Error(t, err)
}

func TestTrailingAPYUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLimit, zap.NewNop())
	client.http.SetRetryCount(0)
	_, err := client.TrailingAPY(context.Background(), "pool-5")
	assert.Error(t, err)
}
