package types

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for the engine's failure taxonomy. Callers classify
// with errors.Is; the concrete wrappers below carry context.
var (
	// ErrDataSource: an upstream RPC/GraphQL/REST endpoint is unreachable,
	// timed out, or returned a shape the normalizer cannot parse.
	ErrDataSource = errors.New("data source error")

	// ErrConfiguration: unsupported chain or missing contract address for a
	// protocol/chain combination.
	ErrConfiguration = errors.New("configuration error")

	// ErrValuation: LTV or APY math cannot be computed soundly (zero total
	// collateral, missing price). The affected position/market is excluded
	// rather than propagating NaN/Inf.
	ErrValuation = errors.New("valuation error")
)

// DataSourceError wraps an upstream failure with the protocol it hit.
type DataSourceError struct {
	Protocol Protocol
	Source   string
	Err      error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Protocol, e.Source, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

func (e *DataSourceError) Is(target error) bool { return target == ErrDataSource }

// NewDataSourceError wraps err as a DataSourceError for the given source.
func NewDataSourceError(protocol Protocol, source string, err error) error {
	return &DataSourceError{Protocol: protocol, Source: source, Err: err}
}

// ConfigurationError reports an unusable protocol/chain configuration.
type ConfigurationError struct {
	Protocol Protocol
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Protocol, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// NewConfigurationError reports an unusable configuration for a protocol.
func NewConfigurationError(protocol Protocol, reason string) error {
	return &ConfigurationError{Protocol: protocol, Reason: reason}
}

// ValuationError reports unsound position math.
type ValuationError struct {
	Reason string
}

func (e *ValuationError) Error() string { return e.Reason }

func (e *ValuationError) Is(target error) bool { return target == ErrValuation }

// NewValuationError reports unsound position math.
func NewValuationError(format string, args ...any) error {
	return &ValuationError{Reason: fmt.Sprintf(format, args...)}
}
