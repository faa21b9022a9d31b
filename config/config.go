package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cubfinance/refi/types"
)

// SupportedChainID is the only chain the engine currently reads from.
const SupportedChainID uint64 = 1

type Config struct {
	// Chain and network settings
	ChainID     uint64 `json:"chain_id"`
	RPCEndpoint string `json:"rpc_endpoint"`

	// Per-protocol endpoints and contract addresses
	AaveV3     PooledProtocolConfig `json:"aave_v3"`
	Spark      PooledProtocolConfig `json:"spark"`
	CompoundV3 CompoundConfig       `json:"compound_v3"`
	MorphoBlue MorphoConfig         `json:"morpho_blue"`

	// Historical yield series settings
	Yield YieldConfig `json:"yield"`

	// Network settings
	RequestTimeout time.Duration   `json:"request_timeout"`
	RPCRateLimit   RateLimitConfig `json:"rpc_rate_limit"`
	RESTRateLimit  RateLimitConfig `json:"rest_rate_limit"`

	// Token registry overrides (optional YAML file, see tokens.go)
	TokenRegistryPath string `json:"token_registry_path,omitempty"`
}

// PooledProtocolConfig covers the Aave V3 family (Aave, Spark): the same
// UiPoolDataProvider/Pool surface at different addresses.
type PooledProtocolConfig struct {
	ChainID               uint64         `json:"chain_id"`
	UIPoolDataProvider    common.Address `json:"ui_pool_data_provider"`
	PoolAddressesProvider common.Address `json:"pool_addresses_provider"`
	Pool                  common.Address `json:"pool"`
}

type CompoundConfig struct {
	ChainID uint64 `json:"chain_id"`
	// Comets lists the deployed comet contracts, one per base asset.
	Comets []common.Address `json:"comets"`
}

type MorphoConfig struct {
	ChainID         uint64 `json:"chain_id"`
	GraphQLEndpoint string `json:"graphql_endpoint"`
}

type YieldConfig struct {
	BaseURL string `json:"base_url"`
	// PoolIDs maps "<protocol>/<token symbol>" to the yield series pool id.
	PoolIDs map[string]string `json:"pool_ids"`
}

// ProtocolPoolIDs extracts the "<protocol>/<symbol>" entries for one
// protocol, keyed by bare symbol.
func (y *YieldConfig) ProtocolPoolIDs(protocol types.Protocol) map[string]string {
	prefix := string(protocol) + "/"
	out := make(map[string]string)
	for key, id := range y.PoolIDs {
		if strings.HasPrefix(key, prefix) {
			out[strings.TrimPrefix(key, prefix)] = id
		}
	}
	return out
}

type RateLimitConfig struct {
	RequestsPerSecond float64       `json:"requests_per_second"`
	BurstSize         int           `json:"burst_size"`
	WaitTimeout       time.Duration `json:"wait_timeout"`
}

func (p *PooledProtocolConfig) Validate(protocol types.Protocol) error {
	if p.ChainID != SupportedChainID {
		return types.NewConfigurationError(protocol, fmt.Sprintf("unsupported chain %d", p.ChainID))
	}
	if (p.UIPoolDataProvider == common.Address{}) {
		return types.NewConfigurationError(protocol, "ui_pool_data_provider not set")
	}
	if (p.PoolAddressesProvider == common.Address{}) {
		return types.NewConfigurationError(protocol, "pool_addresses_provider not set")
	}
	if (p.Pool == common.Address{}) {
		return types.NewConfigurationError(protocol, "pool not set")
	}
	return nil
}

func (c *CompoundConfig) Validate() error {
	if c.ChainID != SupportedChainID {
		return types.NewConfigurationError(types.ProtocolCompoundV3, fmt.Sprintf("unsupported chain %d", c.ChainID))
	}
	if len(c.Comets) == 0 {
		return types.NewConfigurationError(types.ProtocolCompoundV3, "no comet addresses configured")
	}
	return nil
}

func (m *MorphoConfig) Validate() error {
	if m.ChainID != SupportedChainID {
		return types.NewConfigurationError(types.ProtocolMorphoBlue, fmt.Sprintf("unsupported chain %d", m.ChainID))
	}
	if m.GraphQLEndpoint == "" {
		return types.NewConfigurationError(types.ProtocolMorphoBlue, "graphql_endpoint not set")
	}
	return nil
}

func (r *RateLimitConfig) Validate() error {
	if r.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if r.BurstSize <= 0 {
		return fmt.Errorf("burst size must be positive")
	}
	if r.WaitTimeout < 0 {
		return fmt.Errorf("wait timeout must not be negative")
	}
	return nil
}

func (c *Config) ValidateConfig() error {
	var errs []string

	if c.ChainID != SupportedChainID {
		errs = append(errs, fmt.Sprintf("unsupported chain_id %d", c.ChainID))
	}
	if c.RPCEndpoint == "" {
		errs = append(errs, "rpc_endpoint must be specified")
	}
	if err := c.AaveV3.Validate(types.ProtocolAaveV3); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.Spark.Validate(types.ProtocolSpark); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.CompoundV3.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.MorphoBlue.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.RPCRateLimit.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("rpc rate limit: %v", err))
	}
	if err := c.RESTRateLimit.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("rest rate limit: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".refi.json")
	}

	file, err := os.Open(cfgFile)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	config := DefaultConfig()
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if err := config.ValidateConfig(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns mainnet defaults for all four protocols.
func DefaultConfig() *Config {
	return &Config{
		ChainID:     1,
		RPCEndpoint: GetEnvWithDefault(EnvRPCEndpoint, "http://localhost:8545"),
		AaveV3: PooledProtocolConfig{
			ChainID:               1,
			UIPoolDataProvider:    common.HexToAddress("0x91c0eA31b49B69Ea18607702c5d9aC360bf3dE7d"),
			PoolAddressesProvider: common.HexToAddress("0x2f39d218133AFaB8F2B819B1066c7E434Ad94E9e"),
			Pool:                  common.HexToAddress("0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2"),
		},
		Spark: PooledProtocolConfig{
			ChainID:               1,
			UIPoolDataProvider:    common.HexToAddress("0xF028c2F4b19898718fD0F77b9b881CbfdAa5e8Bb"),
			PoolAddressesProvider: common.HexToAddress("0x02C3eA4e34C0cBd694D2adFa2c690EECbC1793eE"),
			Pool:                  common.HexToAddress("0xC13e21B648A5Ee794902342038FF3aDAB66BE987"),
		},
		CompoundV3: CompoundConfig{
			ChainID: 1,
			Comets: []common.Address{
				common.HexToAddress("0xc3d688B66703497DAA19211EEdff47f25384cdc3"), // cUSDCv3
				common.HexToAddress("0xA17581A9E3356d9A858b789D68B4d866e593aE94"), // cWETHv3
			},
		},
		MorphoBlue: MorphoConfig{
			ChainID:         1,
			GraphQLEndpoint: "https://blue-api.morpho.org/graphql",
		},
		Yield: YieldConfig{
			BaseURL: "https://yields.llama.fi",
			PoolIDs: map[string]string{},
		},
		RequestTimeout: 60 * time.Second,
		RPCRateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			BurstSize:         50,
			WaitTimeout:       time.Second,
		},
		RESTRateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			BurstSize:         10,
			WaitTimeout:       time.Second,
		},
	}
}
