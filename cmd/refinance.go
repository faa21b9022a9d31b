package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cubfinance/refi/types"
)

// refinanceResult pairs one existing position with the candidate markets
// that would serve the same debt more cheaply.
type refinanceResult struct {
	Protocol        types.Protocol
	Position        *types.DebtPosition
	Recommendations []*types.RecommendedDebtDetail
}

var refinanceCmd = &cobra.Command{
	Use:   "refinance <account>",
	Short: "Recommend cheaper markets for a user's existing debt",
	Long: `Fetches the user's open positions and, for each one paying net
interest, scans all protocols for markets that beat its current cost.
Positions already earning net yield produce no candidates.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		snapshot, err := app.agg.Aggregate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		app.warnDegraded(snapshot.Degraded)

		var results []refinanceResult
		for _, row := range snapshot.Rows {
			// Aggregate rows with several debts are summaries; their
			// per-token sub-rows carry the refinanceable single debts.
			if len(row.Position.Debts) != 1 {
				continue
			}
			recs := app.agg.RefinanceRecommendations(cmd.Context(), row.Position)
			app.warnDegraded(recs.Degraded)
			results = append(results, refinanceResult{
				Protocol:        row.Protocol,
				Position:        row.Position,
				Recommendations: recs.Recommendations,
			})
		}
		return printJSON(results)
	},
}

func init() {
	rootCmd.AddCommand(refinanceCmd)
}
