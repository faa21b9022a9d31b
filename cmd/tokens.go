package cmd

import (
	"github.com/spf13/cobra"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "List tokens supported across all protocols",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		tokens, degraded := app.agg.SupportedTokens(cmd.Context())
		app.warnDegraded(degraded)
		return printJSON(tokens)
	},
}

var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "List normalized lending markets across all protocols",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		markets := app.agg.AllMarkets(cmd.Context())
		app.warnDegraded(markets.Degraded)
		return printJSON(markets.Markets)
	},
}

func init() {
	rootCmd.AddCommand(tokensCmd)
	rootCmd.AddCommand(marketsCmd)
}
