package aavev3

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

// ReserveData is the decoded UiPoolDataProvider aggregated reserve tuple.
// Field order must match the ABI component order.
type ReserveData struct {
	UnderlyingAsset                common.Address
	Name                           string
	Symbol                         string
	Decimals                       *big.Int
	BaseLTVasCollateral            *big.Int
	ReserveLiquidationThreshold    *big.Int
	ReserveLiquidationBonus        *big.Int
	ReserveFactor                  *big.Int
	UsageAsCollateralEnabled       bool
	BorrowingEnabled               bool
	StableBorrowRateEnabled        bool
	IsActive                       bool
	IsFrozen                       bool
	LiquidityIndex                 *big.Int
	VariableBorrowIndex            *big.Int
	LiquidityRate                  *big.Int
	VariableBorrowRate             *big.Int
	StableBorrowRate               *big.Int
	LastUpdateTimestamp            *big.Int
	ATokenAddress                  common.Address
	StableDebtTokenAddress         common.Address
	VariableDebtTokenAddress       common.Address
	InterestRateStrategyAddress    common.Address
	AvailableLiquidity             *big.Int
	TotalPrincipalStableDebt       *big.Int
	AverageStableRate              *big.Int
	StableDebtLastUpdateTimestamp  *big.Int
	TotalScaledVariableDebt        *big.Int
	PriceInMarketReferenceCurrency *big.Int
	PriceOracle                    common.Address
	VariableRateSlope1             *big.Int
	VariableRateSlope2             *big.Int
	StableRateSlope1               *big.Int
	StableRateSlope2               *big.Int
	BaseStableBorrowRate           *big.Int
	BaseVariableBorrowRate         *big.Int
	OptimalUsageRatio              *big.Int
	IsPaused                       bool
	IsSiloedBorrowing              bool
	AccruedToTreasury              *big.Int
	Unbacked                       *big.Int
	IsolationModeTotalDebt         *big.Int
	FlashLoanEnabled               bool
	DebtCeiling                    *big.Int
	DebtCeilingDecimals            *big.Int
	EModeCategoryId                uint8
	BorrowCap                      *big.Int
	SupplyCap                      *big.Int
	EModeLtv                       uint16
	EModeLiquidationThreshold      uint16
	EModeLiquidationBonus          uint16
	EModePriceSource               common.Address
	EModeLabel                     string
	BorrowableInIsolation          bool
}

// BaseCurrencyInfo carries the oracle base-currency scaling for the pool.
type BaseCurrencyInfo struct {
	MarketReferenceCurrencyUnit       *big.Int
	MarketReferenceCurrencyPriceInUsd *big.Int
	NetworkBaseTokenPriceInUsd        *big.Int
	NetworkBaseTokenPriceDecimals     uint8
}

// UserReserveData is the decoded per-user reserve tuple.
type UserReserveData struct {
	UnderlyingAsset                 common.Address
	ScaledATokenBalance             *big.Int
	UsageAsCollateralEnabledOnUser  bool
	StableBorrowRate                *big.Int
	ScaledVariableDebt              *big.Int
	PrincipalStableDebt             *big.Int
	StableBorrowLastUpdateTimestamp *big.Int
}

// AccountData is the pool's blended account view in base currency.
type AccountData struct {
	TotalCollateralBase         *big.Int
	TotalDebtBase               *big.Int
	AvailableBorrowsBase        *big.Int
	CurrentLiquidationThreshold *big.Int
	LTV                         *big.Int
	HealthFactor                *big.Int
}

// DataSource is the decoded read surface the normalizer consumes. The
// chain-backed implementation lives below; tests inject fakes.
type DataSource interface {
	ReservesData(ctx context.Context) ([]ReserveData, *BaseCurrencyInfo, error)
	UserReservesData(ctx context.Context, user common.Address) ([]UserReserveData, error)
	UserAccountData(ctx context.Context, user common.Address) (*AccountData, error)
}

// chainSource reads through UiPoolDataProvider and Pool contracts.
type chainSource struct {
	protocol types.Protocol
	caller   *onchain.Caller
	cfg      config.PooledProtocolConfig
	uiABI    abi.ABI
	poolABI  abi.ABI
}

// NewChainSource builds the on-chain DataSource for an Aave-V3-family
// deployment.
func NewChainSource(protocol types.Protocol, caller *onchain.Caller, cfg config.PooledProtocolConfig) (DataSource, error) {
	if err := cfg.Validate(protocol); err != nil {
		return nil, err
	}
	parsedUI, err := abi.JSON(strings.NewReader(uiPoolDataProviderABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse UiPoolDataProvider ABI: %w", err)
	}
	parsedPool, err := abi.JSON(strings.NewReader(poolABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Pool ABI: %w", err)
	}
	return &chainSource{
		protocol: protocol,
		caller:   caller,
		cfg:      cfg,
		uiABI:    parsedUI,
		poolABI:  parsedPool,
	}, nil
}

func (s *chainSource) ReservesData(ctx context.Context) ([]ReserveData, *BaseCurrencyInfo, error) {
	out, err := s.caller.Call(ctx, s.uiABI, s.cfg.UIPoolDataProvider, "getReservesData", s.cfg.PoolAddressesProvider)
	if err != nil {
		return nil, nil, types.NewDataSourceError(s.protocol, "getReservesData", err)
	}
	if len(out) != 2 {
		return nil, nil, types.NewDataSourceError(s.protocol, "getReservesData",
			fmt.Errorf("expected 2 outputs, got %d", len(out)))
	}
	reserves := *abi.ConvertType(out[0], new([]ReserveData)).(*[]ReserveData)
	base := *abi.ConvertType(out[1], new(BaseCurrencyInfo)).(*BaseCurrencyInfo)
	return reserves, &base, nil
}

func (s *chainSource) UserReservesData(ctx context.Context, user common.Address) ([]UserReserveData, error) {
	out, err := s.caller.Call(ctx, s.uiABI, s.cfg.UIPoolDataProvider, "getUserReservesData", s.cfg.PoolAddressesProvider, user)
	if err != nil {
		return nil, types.NewDataSourceError(s.protocol, "getUserReservesData", err)
	}
	if len(out) != 2 {
		return nil, types.NewDataSourceError(s.protocol, "getUserReservesData",
			fmt.Errorf("expected 2 outputs, got %d", len(out)))
	}
	userReserves := *abi.ConvertType(out[0], new([]UserReserveData)).(*[]UserReserveData)
	return userReserves, nil
}

func (s *chainSource) UserAccountData(ctx context.Context, user common.Address) (*AccountData, error) {
	out, err := s.caller.Call(ctx, s.poolABI, s.cfg.Pool, "getUserAccountData", user)
	if err != nil {
		return nil, types.NewDataSourceError(s.protocol, "getUserAccountData", err)
	}
	return decodeAccountData(s.protocol, out)
}

// decodeAccountData checks the getUserAccountData output shape; a slot
// that is not a *big.Int would otherwise surface much later as a nil
// dereference.
func decodeAccountData(protocol types.Protocol, out []interface{}) (*AccountData, error) {
	if len(out) != 6 {
		return nil, types.NewDataSourceError(protocol, "getUserAccountData",
			fmt.Errorf("expected 6 outputs, got %d", len(out)))
	}
	fields := make([]*big.Int, len(out))
	for i, v := range out {
		b, ok := v.(*big.Int)
		if !ok || b == nil {
			return nil, types.NewDataSourceError(protocol, "getUserAccountData",
				fmt.Errorf("output %d is %T, want *big.Int", i, v))
		}
		fields[i] = b
	}
	return &AccountData{
		TotalCollateralBase:         fields[0],
		TotalDebtBase:               fields[1],
		AvailableBorrowsBase:        fields[2],
		CurrentLiquidationThreshold: fields[3],
		LTV:                         fields[4],
		HealthFactor:                fields[5],
	}, nil
}
