// Package onchain wraps the raw contract-read capability the protocol
// normalizers share: a rate-limited eth_call surface plus ERC20 metadata
// lookups. Position and market snapshots are never cached here; only the
// immutable token reference data is.
package onchain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/cubfinance/refi/config"
)

// ContractReader is the read-only subset of ethclient the engine needs.
// *ethclient.Client satisfies it; tests inject fakes.
type ContractReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Caller issues ABI-encoded view calls through a rate limiter.
type Caller struct {
	reader      ContractReader
	limiter     *rate.Limiter
	waitTimeout time.Duration
}

// NewCaller wraps a reader with the configured rate limit. A positive
// WaitTimeout bounds how long a call may queue behind the limiter before
// failing instead of blocking.
func NewCaller(reader ContractReader, cfg config.RateLimitConfig) *Caller {
	return &Caller{
		reader:      reader,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		waitTimeout: cfg.WaitTimeout,
	}
}

// Call packs method+args against the ABI, executes the view call at the
// latest block, and unpacks the result values.
func (c *Caller) Call(ctx context.Context, contractABI abi.ABI, contract common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	waitCtx := ctx
	if c.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.waitTimeout)
		defer cancel()
	}
	if err := c.limiter.Wait(waitCtx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	out, err := c.reader.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, contract.Hex(), err)
	}

	values, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return values, nil
}
