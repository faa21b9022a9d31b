package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"

	"github.com/cubfinance/refi/types"
)

// Denylisted token addresses (lower-case). Scam tokens reuse well-known
// symbols; comparing by symbol alone would let them through.
var defaultDenylist = map[string]bool{
	"0xcbfb9b444d9735c345df3a0f66cd89bd741692e9": true, // fake USDC
}

// TokenRegistry holds reference token data plus the denylist. Registry
// lookups are keyed by lower-case address.
type TokenRegistry struct {
	tokens   map[string]*types.Token
	denylist map[string]bool
}

// tokenFile is the YAML shape of an optional registry override file.
type tokenFile struct {
	Tokens []struct {
		Address  string `yaml:"address"`
		Name     string `yaml:"name"`
		Symbol   string `yaml:"symbol"`
		Decimals uint8  `yaml:"decimals"`
	} `yaml:"tokens"`
	Denylist []string `yaml:"denylist"`
}

// NewTokenRegistry returns a registry seeded with mainnet majors and the
// built-in denylist.
func NewTokenRegistry() *TokenRegistry {
	r := &TokenRegistry{
		tokens:   make(map[string]*types.Token),
		denylist: make(map[string]bool),
	}
	for addr := range defaultDenylist {
		r.denylist[addr] = true
	}
	for _, t := range defaultTokens {
		tok := t
		r.tokens[tok.Key()] = &tok
	}
	return r
}

// LoadTokenRegistry reads an optional YAML file of tokens and denylist
// entries on top of the defaults.
func LoadTokenRegistry(path string) (*TokenRegistry, error) {
	r := NewTokenRegistry()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token registry: %w", err)
	}

	var file tokenFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse token registry: %w", err)
	}

	for _, t := range file.Tokens {
		tok := &types.Token{
			Address:  common.HexToAddress(t.Address),
			Name:     t.Name,
			Symbol:   t.Symbol,
			Decimals: t.Decimals,
		}
		r.tokens[tok.Key()] = tok
	}
	for _, addr := range file.Denylist {
		r.denylist[strings.ToLower(common.HexToAddress(addr).Hex())] = true
	}
	return r, nil
}

// Lookup returns the registered token for an address, if known.
func (r *TokenRegistry) Lookup(addr common.Address) (*types.Token, bool) {
	t, ok := r.tokens[types.NormalizeAddress(addr)]
	return t, ok
}

// BySymbol returns the first registered, non-denylisted token with the
// given symbol.
func (r *TokenRegistry) BySymbol(symbol string) (*types.Token, bool) {
	for _, t := range r.tokens {
		if strings.EqualFold(t.Symbol, symbol) && !r.Denied(t.Address) {
			return t, true
		}
	}
	return nil, false
}

// Denied reports whether the address is on the denylist.
func (r *TokenRegistry) Denied(addr common.Address) bool {
	return r.denylist[types.NormalizeAddress(addr)]
}

// Filter removes denylisted entries and duplicates (by normalized
// address) from a token list, preserving order.
func (r *TokenRegistry) Filter(tokens []*types.Token) []*types.Token {
	seen := make(map[string]bool, len(tokens))
	out := make([]*types.Token, 0, len(tokens))
	for _, t := range tokens {
		key := t.Key()
		if seen[key] || r.denylist[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

var defaultTokens = []types.Token{
	{
		Address:  common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		Name:     "Wrapped Ether",
		Symbol:   "WETH",
		Decimals: 18,
	},
	{
		Address:  common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		Name:     "USD Coin",
		Symbol:   "USDC",
		Decimals: 6,
	},
	{
		Address:  common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"),
		Name:     "Tether USD",
		Symbol:   "USDT",
		Decimals: 6,
	},
	{
		Address:  common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
		Name:     "Dai Stablecoin",
		Symbol:   "DAI",
		Decimals: 18,
	},
	{
		Address:  common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"),
		Name:     "Wrapped BTC",
		Symbol:   "WBTC",
		Decimals: 8,
	},
	{
		Address:  common.HexToAddress("0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0"),
		Name:     "Wrapped liquid staked Ether 2.0",
		Symbol:   "wstETH",
		Decimals: 18,
	},
}
