package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cubfinance/refi/config"
	"github.com/cubfinance/refi/utils"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "refi",
	Short: "Cross-protocol debt aggregation and refinance recommendations",
	Long: `refi discovers a user's collateralized-debt positions across Aave V3,
Spark, Compound V3 and Morpho Blue, and scans all protocols for cheaper
places to borrow or refinance. It is read-only: no transaction is ever
sent.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.refi.json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initConfig() {
	_ = config.LoadEnv()
	utils.InitLogger(debug)
}
