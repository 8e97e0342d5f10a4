package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fundscore/internal/app"
)

var (
	scoreCategories []string
	scoreAsOf       string
	scoreDryRun     bool
	scoreWorkers    int
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one or more categories once and persist the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ScoreOptions{
			Categories: scoreCategories,
			DryRun:     scoreDryRun,
			Workers:    scoreWorkers,
		}

		if scoreAsOf != "" {
			asOf, err := parseDate(scoreAsOf)
			if err != nil {
				return fmt.Errorf("invalid --as-of value: %w", err)
			}
			opts.AsOf = asOf
		}

		return getApp().Score(cmd.Context(), opts)
	},
}

func init() {
	scoreCmd.Flags().StringSliceVar(&scoreCategories, "category", nil, "Category to score (repeatable; defaults to scheduler.categories, then every policy)")
	scoreCmd.Flags().StringVar(&scoreAsOf, "as-of", "", "Scoring date (YYYY-MM-DD); defaults to today in the scheduler timezone")
	scoreCmd.Flags().BoolVar(&scoreDryRun, "dry-run", false, "Compute scores without writing to the database")
	scoreCmd.Flags().IntVar(&scoreWorkers, "workers", 0, "Concurrent fund evaluations (defaults to config)")
}

func parseDate(v string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", v, time.UTC)
}
