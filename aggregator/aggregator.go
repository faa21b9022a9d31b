// Package aggregator fans requests out across the registered protocol
// adapters and merges the results, isolating each protocol's failures
// from the rest. A protocol that errors is reported as degraded rather
// than silently omitted, so an empty answer is never mistaken for an
// unknown one.
package aggregator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/cubfinance/refi/config"
	"github.com/cubfinance/refi/engine"
	"github.com/cubfinance/refi/protocols"
	"github.com/cubfinance/refi/types"
)

// NameResolver turns a human-readable identifier into an account
// address. A name that does not resolve reports found=false, not an
// error; errors are reserved for resolver transport failures.
type NameResolver interface {
	Resolve(ctx context.Context, name string) (addr common.Address, found bool, err error)
}

// Aggregator drives the cross-protocol pipeline.
type Aggregator struct {
	adapters []protocols.Adapter
	registry *config.TokenRegistry
	engine   *engine.Engine
	resolver NameResolver
	metrics  *Metrics
	timeout  time.Duration
	logger   *zap.Logger
}

// Options wires the aggregator's collaborators. Resolver and Metrics may
// be nil; Timeout zero disables the per-request deadline.
type Options struct {
	Registry *config.TokenRegistry
	Engine   *engine.Engine
	Resolver NameResolver
	Metrics  *Metrics
	Timeout  time.Duration
}

// New builds an aggregator over the given adapters.
func New(adapters []protocols.Adapter, opts Options, logger *zap.Logger) *Aggregator {
	registry := opts.Registry
	if registry == nil {
		registry = config.NewTokenRegistry()
	}
	eng := opts.Engine
	if eng == nil {
		eng = engine.New(engine.Options{}, logger)
	}
	return &Aggregator{
		adapters: adapters,
		registry: registry,
		engine:   eng,
		resolver: opts.Resolver,
		metrics:  opts.Metrics,
		timeout:  opts.Timeout,
		logger:   logger,
	}
}

// Snapshot is the merged per-user view. Degraded lists the protocols
// whose fetch failed; their absence from Details means unknown, not
// empty.
type Snapshot struct {
	Details  map[types.Protocol]*types.UserDebtDetails
	Rows     []types.DebtPositionTableRow
	Degraded map[types.Protocol]error
}

// Markets returns every normalized market across all protocols.
type Markets struct {
	Markets  []*types.Market
	Degraded map[types.Protocol]error
}

// Recommendations is the merged recommendation superset. Ordering is
// left to the caller.
type Recommendations struct {
	Recommendations []*types.RecommendedDebtDetail
	Degraded        map[types.Protocol]error
}

type outcome[T any] struct {
	protocol types.Protocol
	value    T
	err      error
}

// fanOut issues fetch against every adapter concurrently and waits for
// all of them. Each goroutine writes only its own slot.
func fanOut[T any](ctx context.Context, a *Aggregator, operation string, fetch func(context.Context, protocols.Adapter) (T, error)) []outcome[T] {
	results := make([]outcome[T], len(a.adapters))
	var wg sync.WaitGroup
	for i, adapter := range a.adapters {
		wg.Add(1)
		go func(i int, adapter protocols.Adapter) {
			defer wg.Done()
			start := time.Now()
			value, err := fetch(ctx, adapter)
			a.metrics.observe(adapter.Protocol(), operation, time.Since(start), err)
			if err != nil {
				a.logger.Error("protocol fetch failed",
					zap.String("protocol", string(adapter.Protocol())),
					zap.String("operation", operation),
					zap.Error(err))
			}
			results[i] = outcome[T]{protocol: adapter.Protocol(), value: value, err: err}
		}(i, adapter)
	}
	wg.Wait()
	return results
}

func (a *Aggregator) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout > 0 {
		return context.WithTimeout(ctx, a.timeout)
	}
	return context.WithCancel(ctx)
}

// ResolveAccount accepts a hex address or a resolvable name. An empty or
// unresolvable identifier is a caller error, the only condition that
// fails a whole aggregate request.
func (a *Aggregator) ResolveAccount(ctx context.Context, input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, fmt.Errorf("account identifier is empty")
	}
	if common.IsHexAddress(input) {
		return common.HexToAddress(input), nil
	}
	if a.resolver != nil {
		addr, found, err := a.resolver.Resolve(ctx, input)
		if err != nil {
			return common.Address{}, fmt.Errorf("failed to resolve %q: %w", input, err)
		}
		if found {
			return addr, nil
		}
	}
	return common.Address{}, fmt.Errorf("account %q is not an address and could not be resolved", input)
}

// Aggregate fetches the user's positions from every protocol and merges
// them into table rows, one per position, in adapter registration order.
func (a *Aggregator) Aggregate(ctx context.Context, account string) (*Snapshot, error) {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	user, err := a.ResolveAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	results := fanOut(ctx, a, "user_debt_details", func(ctx context.Context, adapter protocols.Adapter) (*types.UserDebtDetails, error) {
		return adapter.GetUserDebtDetails(ctx, user)
	})

	snapshot := &Snapshot{
		Details:  make(map[types.Protocol]*types.UserDebtDetails),
		Degraded: make(map[types.Protocol]error),
	}
	for _, r := range results {
		if r.err != nil {
			snapshot.Degraded[r.protocol] = r.err
			continue
		}
		snapshot.Details[r.protocol] = r.value
		a.metrics.recordPositions(r.protocol, len(r.value.DebtPositions))
		for _, position := range r.value.DebtPositions {
			snapshot.Rows = append(snapshot.Rows, types.DebtPositionTableRow{
				Protocol: r.protocol,
				Position: position,
			})
		}
	}
	return snapshot, nil
}

// AllMarkets fetches every protocol's market list.
func (a *Aggregator) AllMarkets(ctx context.Context) *Markets {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	results := fanOut(ctx, a, "markets", func(ctx context.Context, adapter protocols.Adapter) ([]*types.Market, error) {
		return adapter.GetMarkets(ctx)
	})

	out := &Markets{Degraded: make(map[types.Protocol]error)}
	for _, r := range results {
		if r.err != nil {
			out.Degraded[r.protocol] = r.err
			continue
		}
		out.Markets = append(out.Markets, r.value...)
	}
	return out
}

// SupportedTokens merges every protocol's token list, deduplicated and
// with denylisted addresses removed.
func (a *Aggregator) SupportedTokens(ctx context.Context) ([]*types.Token, map[types.Protocol]error) {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	results := fanOut(ctx, a, "supported_tokens", func(ctx context.Context, adapter protocols.Adapter) ([]*types.Token, error) {
		return adapter.GetSupportedTokens(ctx)
	})

	degraded := make(map[types.Protocol]error)
	var merged []*types.Token
	for _, r := range results {
		if r.err != nil {
			degraded[r.protocol] = r.err
			continue
		}
		merged = append(merged, r.value...)
	}
	return a.registry.Filter(merged), degraded
}

// BorrowRecommendations scans every protocol's markets for places to
// borrow the requested debt tokens against the offered collateral.
func (a *Aggregator) BorrowRecommendations(ctx context.Context, debtTokens []*types.Token, collaterals []types.TokenAmount) *Recommendations {
	markets := a.AllMarkets(ctx)
	return &Recommendations{
		Recommendations: a.engine.BorrowRecommendations(markets.Markets, debtTokens, collaterals),
		Degraded:        markets.Degraded,
	}
}

// RefinanceRecommendations scans every protocol's markets for cheaper
// homes for an existing position.
func (a *Aggregator) RefinanceRecommendations(ctx context.Context, existing *types.DebtPosition) *Recommendations {
	markets := a.AllMarkets(ctx)
	return &Recommendations{
		Recommendations: a.engine.RefinanceRecommendations(existing, markets.Markets),
		Degraded:        markets.Degraded,
	}
}
