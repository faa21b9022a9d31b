package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cubfinance/refi/aggregator"
	"github.com/cubfinance/refi/config"
	"github.com/cubfinance/refi/engine"
	"github.com/cubfinance/refi/onchain"
	"github.com/cubfinance/refi/protocols"
	"github.com/cubfinance/refi/protocols/aavev3"
	"github.com/cubfinance/refi/protocols/compound"
	"github.com/cubfinance/refi/protocols/morpho"
	"github.com/cubfinance/refi/types"
	"github.com/cubfinance/refi/utils"
	"github.com/cubfinance/refi/yield/defillama"
)

// tokenCacheSize bounds the ERC20 metadata cache.
const tokenCacheSize = 256

// app wires the full pipeline for one CLI invocation.
type app struct {
	cfg      *config.Config
	agg      *aggregator.Aggregator
	registry *config.TokenRegistry
	client   *ethclient.Client
	log      *zap.Logger
}

func newApp(ctx context.Context) (*app, error) {
	log := utils.GetLogger()
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	caller := onchain.NewCaller(client, cfg.RPCRateLimit)
	tokenStore, err := onchain.NewTokenStore(caller, tokenCacheSize, log)
	if err != nil {
		client.Close()
		return nil, err
	}
	yields := defillama.NewClient(cfg.Yield.BaseURL, cfg.RESTRateLimit, log)

	aaveSource, err := aavev3.NewChainSource(types.ProtocolAaveV3, caller, cfg.AaveV3)
	if err != nil {
		client.Close()
		return nil, err
	}
	sparkSource, err := aavev3.NewChainSource(types.ProtocolSpark, caller, cfg.Spark)
	if err != nil {
		client.Close()
		return nil, err
	}
	cometSource, err := compound.NewChainSource(caller, cfg.CompoundV3)
	if err != nil {
		client.Close()
		return nil, err
	}
	morphoClient, err := morpho.NewClient(cfg.MorphoBlue, cfg.RESTRateLimit, log)
	if err != nil {
		client.Close()
		return nil, err
	}

	adapters := []protocols.Adapter{
		aavev3.New(types.ProtocolAaveV3, aaveSource, yields, cfg.Yield.ProtocolPoolIDs(types.ProtocolAaveV3), log),
		aavev3.New(types.ProtocolSpark, sparkSource, yields, cfg.Yield.ProtocolPoolIDs(types.ProtocolSpark), log),
		compound.New(cometSource, tokenStore, yields, cfg.Yield.ProtocolPoolIDs(types.ProtocolCompoundV3), log),
		morpho.New(morphoClient, log),
	}

	registry := config.NewTokenRegistry()
	if cfg.TokenRegistryPath != "" {
		registry, err = config.LoadTokenRegistry(cfg.TokenRegistryPath)
		if err != nil {
			client.Close()
			return nil, err
		}
	}

	agg := aggregator.New(adapters, aggregator.Options{
		Registry: registry,
		Engine:   engine.New(engine.Options{}, log),
		Metrics:  aggregator.NewMetrics(prometheus.DefaultRegisterer),
		Timeout:  cfg.RequestTimeout,
	}, log)

	return &app{
		cfg:      cfg,
		agg:      agg,
		registry: registry,
		client:   client,
		log:      log,
	}, nil
}

func (a *app) Close() {
	a.client.Close()
}

// printJSON writes the command result to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// warnDegraded logs every protocol whose data could not be fetched, so an
// empty result is never mistaken for a clean one.
func (a *app) warnDegraded(degraded map[types.Protocol]error) {
	for protocol, err := range degraded {
		a.log.Warn("protocol data unavailable, results are partial",
			zap.String("protocol", string(protocol)),
			zap.Error(err))
	}
}
