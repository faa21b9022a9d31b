package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubfinance/refi/types"
)

func TestRegistryDeniesScamUSDC(t *testing.T) {
	r := NewTokenRegistry()

	scam := common.HexToAddress("0xcbfb9B444d9735C345Df3A0F66cd89bD741692E9")
	assert.True(t, r.Denied(scam))

	real, ok := r.BySymbol("USDC")
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), real.Address)
}

func TestFilterRemovesDenylistedAndDuplicates(t *testing.T) {
	r := NewTokenRegistry()

	usdc, _ := r.BySymbol("USDC")
	scam := &types.Token{
		Address:  common.HexToAddress("0xcbfb9B444d9735C345Df3A0F66cd89bD741692E9"),
		Symbol:   "USDC",
		Decimals: 6,
	}
	weth, _ := r.BySymbol("WETH")

	out := r.Filter([]*types.Token{usdc, scam, usdc, weth})

	require.Len(t, out, 2)
	assert.Equal(t, usdc.Address, out[0].Address)
	assert.Equal(t, weth.Address, out[1].Address)
}

func TestLoadTokenRegistryYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.yaml")
	body := `
tokens:
  - address: "0x514910771AF9Ca656af840dff83E8264EcF986CA"
    name: "ChainLink Token"
    symbol: "LINK"
    decimals: 18
denylist:
  - "0x00000000000000000000000000000000DeaDBeef"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	r, err := LoadTokenRegistry(path)
	require.NoError(t, err)

	link, ok := r.BySymbol("LINK")
	require.True(t, ok)
	assert.Equal(t, uint8(18), link.Decimals)
	assert.True(t, r.Denied(common.HexToAddress("0x00000000000000000000000000000000DeaDBeef")))
	// Built-in denylist survives the overlay.
	assert.True(t, r.Denied(common.HexToAddress("0xcbfb9B444d9735C345Df3A0F66cd89bD741692E9")))
}

func TestLoadTokenRegistryMissingPath(t *testing.T) {
	r, err := LoadTokenRegistry("")
	require.NoError(t, err)
	_, ok := r.BySymbol("WETH")
	assert.True(t, ok)
}
