// Package compound normalizes Compound V3 comet deployments into the
// common Market/DebtPosition model. Each comet is a pooled market with a
// single borrowable base asset served by several collateral assets.
package compound

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/cubfinance/refi/config"
	"github.com/cubfinance/refi/onchain"
	"github.com/cubfinance/refi/types"
)

// AssetInfo is the decoded comet collateral-asset configuration tuple.
// Field order must match the ABI component order.
type AssetInfo struct {
	Offset                    uint8
	Asset                     common.Address
	PriceFeed                 common.Address
	Scale                     uint64
	BorrowCollateralFactor    uint64
	LiquidateCollateralFactor uint64
	LiquidationFactor         uint64
	SupplyCap                 *big.Int
}

// CollateralAsset pairs the asset configuration with its current oracle
// price in the comet's 1e8 price scale.
type CollateralAsset struct {
	AssetInfo
	Price *big.Int
}

// CometState is one comet's market snapshot.
type CometState struct {
	Comet               common.Address
	BaseToken           common.Address
	Utilization         *big.Int
	SupplyRatePerSecond uint64
	BorrowRatePerSecond uint64
	TotalSupply         *big.Int
	TotalBorrow         *big.Int
	BasePrice           *big.Int
	Assets              []CollateralAsset
}

// CollateralBalance is a user's holding of one collateral asset.
type CollateralBalance struct {
	Asset   common.Address
	Balance *big.Int
}

// UserState is a user's balances in one comet. BorrowBalance is a
// present-value amount in base token units.
type UserState struct {
	BorrowBalance *big.Int
	Collateral    []CollateralBalance
}

// DataSource is the decoded read surface the normalizer consumes. The
// chain-backed implementation lives below; tests inject fakes.
type DataSource interface {
	CometStates(ctx context.Context) ([]*CometState, error)
	UserState(ctx context.Context, comet, user common.Address, assets []common.Address) (*UserState, error)
}

type chainSource struct {
	caller *onchain.Caller
	comets []common.Address
	abi    abi.ABI
}

// NewChainSource builds the on-chain DataSource over the configured comet
// deployments.
func NewChainSource(caller *onchain.Caller, cfg config.CompoundConfig) (DataSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	parsed, err := abi.JSON(strings.NewReader(cometABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Comet ABI: %w", err)
	}
	return &chainSource{
		caller: caller,
		comets: cfg.Comets,
		abi:    parsed,
	}, nil
}

func (s *chainSource) CometStates(ctx context.Context) ([]*CometState, error) {
	states := make([]*CometState, 0, len(s.comets))
	for _, comet := range s.comets {
		state, err := s.cometState(ctx, comet)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

func (s *chainSource) cometState(ctx context.Context, comet common.Address) (*CometState, error) {
	state := &CometState{Comet: comet}
	var err error

	if state.BaseToken, err = s.callAddress(ctx, comet, "baseToken"); err != nil {
		return nil, err
	}
	baseFeed, err := s.callAddress(ctx, comet, "baseTokenPriceFeed")
	if err != nil {
		return nil, err
	}
	if state.BasePrice, err = s.callBig(ctx, comet, "getPrice", baseFeed); err != nil {
		return nil, err
	}
	if state.Utilization, err = s.callBig(ctx, comet, "getUtilization"); err != nil {
		return nil, err
	}
	if state.SupplyRatePerSecond, err = s.callUint64(ctx, comet, "getSupplyRate", state.Utilization); err != nil {
		return nil, err
	}
	if state.BorrowRatePerSecond, err = s.callUint64(ctx, comet, "getBorrowRate", state.Utilization); err != nil {
		return nil, err
	}
	if state.TotalSupply, err = s.callBig(ctx, comet, "totalSupply"); err != nil {
		return nil, err
	}
	if state.TotalBorrow, err = s.callBig(ctx, comet, "totalBorrow"); err != nil {
		return nil, err
	}

	out, err := s.call(ctx, comet, "numAssets")
	if err != nil {
		return nil, err
	}
	numAssets, ok := out[0].(uint8)
	if !ok {
		return nil, s.badShape(comet, "numAssets", out[0])
	}

	for i := uint8(0); i < numAssets; i++ {
		out, err := s.call(ctx, comet, "getAssetInfo", i)
		if err != nil {
			return nil, err
		}
		info := abi.ConvertType(out[0], new(AssetInfo)).(*AssetInfo)
		price, err := s.callBig(ctx, comet, "getPrice", info.PriceFeed)
		if err != nil {
			return nil, err
		}
		state.Assets = append(state.Assets, CollateralAsset{AssetInfo: *info, Price: price})
	}
	return state, nil
}

func (s *chainSource) UserState(ctx context.Context, comet, user common.Address, assets []common.Address) (*UserState, error) {
	borrow, err := s.callBig(ctx, comet, "borrowBalanceOf", user)
	if err != nil {
		return nil, err
	}
	state := &UserState{BorrowBalance: borrow}
	for _, asset := range assets {
		balance, err := s.callBig(ctx, comet, "collateralBalanceOf", user, asset)
		if err != nil {
			return nil, err
		}
		state.Collateral = append(state.Collateral, CollateralBalance{Asset: asset, Balance: balance})
	}
	return state, nil
}

func (s *chainSource) call(ctx context.Context, comet common.Address, method string, args ...interface{}) ([]interface{}, error) {
	out, err := s.caller.Call(ctx, s.abi, comet, method, args...)
	if err != nil {
		return nil, types.NewDataSourceError(types.ProtocolCompoundV3, method, err)
	}
	return out, nil
}

func (s *chainSource) callAddress(ctx context.Context, comet common.Address, method string) (common.Address, error) {
	out, err := s.call(ctx, comet, method)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, s.badShape(comet, method, out[0])
	}
	return addr, nil
}

func (s *chainSource) callBig(ctx context.Context, comet common.Address, method string, args ...interface{}) (*big.Int, error) {
	out, err := s.call(ctx, comet, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, s.badShape(comet, method, out[0])
	}
	return v, nil
}

func (s *chainSource) callUint64(ctx context.Context, comet common.Address, method string, args ...interface{}) (uint64, error) {
	out, err := s.call(ctx, comet, method, args...)
	if err != nil {
		return 0, err
	}
	v, ok := out[0].(uint64)
	if !ok {
		return 0, s.badShape(comet, method, out[0])
	}
	return v, nil
}

func (s *chainSource) badShape(comet common.Address, method string, got interface{}) error {
	return types.NewDataSourceError(types.ProtocolCompoundV3, method,
		fmt.Errorf("unexpected %s result type %T from comet %s", method, got, comet.Hex()))
}
