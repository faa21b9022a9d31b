package onchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/cubfinance/refi/types"
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

// TokenStore resolves ERC20 reference data on-chain. Name, symbol and
// decimals are immutable, so results sit behind an LRU cache.
type TokenStore struct {
	caller *Caller
	abi    abi.ABI
	cache  *lru.Cache
	logger *zap.Logger
}

// NewTokenStore builds a token store with the given cache capacity.
func NewTokenStore(caller *Caller, cacheSize int, logger *zap.Logger) (*TokenStore, error) {
	parsedABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cache: %w", err)
	}
	return &TokenStore{
		caller: caller,
		abi:    parsedABI,
		cache:  cache,
		logger: logger,
	}, nil
}

// Token resolves reference data for an ERC20 address.
func (s *TokenStore) Token(ctx context.Context, addr common.Address) (*types.Token, error) {
	key := types.NormalizeAddress(addr)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*types.Token), nil
	}

	name, err := s.callString(ctx, addr, "name")
	if err != nil {
		return nil, err
	}
	symbol, err := s.callString(ctx, addr, "symbol")
	if err != nil {
		return nil, err
	}
	decimalsOut, err := s.caller.Call(ctx, s.abi, addr, "decimals")
	if err != nil {
		return nil, err
	}
	decimals, ok := decimalsOut[0].(uint8)
	if !ok {
		return nil, fmt.Errorf("unexpected decimals type %T for %s", decimalsOut[0], addr.Hex())
	}

	token := &types.Token{
		Address:  addr,
		Name:     name,
		Symbol:   symbol,
		Decimals: decimals,
	}
	s.cache.Add(key, token)
	s.logger.Debug("resolved token metadata",
		zap.String("address", addr.Hex()),
		zap.String("symbol", symbol),
		zap.Uint8("decimals", decimals))
	return token, nil
}

func (s *TokenStore) callString(ctx context.Context, addr common.Address, method string) (string, error) {
	out, err := s.caller.Call(ctx, s.abi, addr, method)
	if err != nil {
		return "", err
	}
	v, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected %s type %T for %s", method, out[0], addr.Hex())
	}
	return v, nil
}
