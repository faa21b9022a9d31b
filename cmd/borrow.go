package cmd

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cubfinance/refi/types"
)

var (
	borrowDebtSymbols []string
	borrowCollaterals []string
)

var borrowCmd = &cobra.Command{
	Use:   "borrow",
	Short: "Recommend markets to borrow the given tokens against your collateral",
	Long: `Scans every protocol's markets for places to borrow the requested debt
tokens against the offered collateral, sized to each market's max LTV.

Collateral is given as SYMBOL=AMOUNT in whole tokens, e.g. WETH=1.1.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(borrowDebtSymbols) == 0 || len(borrowCollaterals) == 0 {
			return fmt.Errorf("at least one --debt and one --collateral are required")
		}

		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		debtTokens := make([]*types.Token, 0, len(borrowDebtSymbols))
		for _, symbol := range borrowDebtSymbols {
			token, ok := app.registry.BySymbol(symbol)
			if !ok {
				return fmt.Errorf("unknown debt token symbol %q", symbol)
			}
			debtTokens = append(debtTokens, token)
		}

		collaterals := make([]types.TokenAmount, 0, len(borrowCollaterals))
		for _, spec := range borrowCollaterals {
			amount, err := app.parseCollateral(spec)
			if err != nil {
				return err
			}
			collaterals = append(collaterals, amount)
		}

		recs := app.agg.BorrowRecommendations(cmd.Context(), debtTokens, collaterals)
		app.warnDegraded(recs.Degraded)
		return printJSON(recs.Recommendations)
	},
}

// parseCollateral decodes a SYMBOL=AMOUNT flag into integer token units.
func (a *app) parseCollateral(spec string) (types.TokenAmount, error) {
	symbol, raw, ok := strings.Cut(spec, "=")
	if !ok {
		return types.TokenAmount{}, fmt.Errorf("collateral %q is not SYMBOL=AMOUNT", spec)
	}
	token, found := a.registry.BySymbol(symbol)
	if !found {
		return types.TokenAmount{}, fmt.Errorf("unknown collateral token symbol %q", symbol)
	}
	whole, err := decimal.NewFromString(raw)
	if err != nil {
		return types.TokenAmount{}, fmt.Errorf("malformed amount %q: %w", raw, err)
	}
	if whole.Sign() <= 0 {
		return types.TokenAmount{}, fmt.Errorf("collateral amount %q must be positive", raw)
	}
	units := whole.Shift(int32(token.Decimals)).Truncate(0)
	return types.TokenAmount{Token: token, Amount: units.BigInt()}, nil
}

func init() {
	borrowCmd.Flags().StringSliceVar(&borrowDebtSymbols, "debt", nil, "debt token symbol (repeatable)")
	borrowCmd.Flags().StringSliceVar(&borrowCollaterals, "collateral", nil, "collateral as SYMBOL=AMOUNT (repeatable)")
	rootCmd.AddCommand(borrowCmd)
}
