package cmd

import (
	"github.com/spf13/cobra"
)

var positionsCmd = &cobra.Command{
	Use:   "positions <account>",
	Short: "List a user's debt positions across all protocols",
	Long: `Fetches the user's open borrows from every supported protocol and
prints the merged position list. The account may be a hex address.`,
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
		return printJSON(snapshot.Rows)
	},
}

func init() {
	rootCmd.AddCommand(positionsCmd)
}
