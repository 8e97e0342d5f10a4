package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fundscore/internal/app"
)

var (
	showCategory string
	showLimit    int
	showRuns     bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display a category ranking or the recent run log",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Category: showCategory,
			Limit:    showLimit,
			Runs:     showRuns,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showCategory, "category", "", "Category whose ranking to display")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().BoolVar(&showRuns, "runs", false, "Show recent scoring runs instead of rankings")
}
