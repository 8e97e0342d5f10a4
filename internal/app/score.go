package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"fundscore/internal/pipeline"
)

// Score runs the pipeline once for the requested categories.
func (a *App) Score(ctx context.Context, opts ScoreOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}
	provider, err := a.newProvider(store)
	if err != nil {
		return err
	}

	if opts.DryRun {
		a.Logger.Warn().Msg("score dry-run：不会写入数据库")
	}

	svc, err := a.newService(provider, store, nil, opts.Workers, opts.DryRun)
	if err != nil {
		return err
	}

	categories := opts.Categories
	if len(categories) == 0 {
		categories = a.Config.Scheduler.Categories
	}

	outcomes := svc.RunCategories(ctx, categories, opts.AsOf)
	writeOutcomes(os.Stdout, outcomes)

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	a.Logger.Info().Int("categories", len(outcomes)).Int("failed", failed).Msg("评分完成")
	if failed > 0 {
		return fmt.Errorf("%d of %d categories failed: %w", failed, len(outcomes), outcomesError(outcomes))
	}
	return nil
}

func writeOutcomes(w io.Writer, outcomes []pipeline.Outcome) {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Category\tAs Of\tUniverse\tEligible\tExcluded\tRanked\tSuppressed\tStatus")
	for _, o := range outcomes {
		s := o.Summary
		status := "ok"
		if s.DryRun {
			status = "dry-run"
		}
		if o.Err != nil {
			status = sanitizeInline(o.Err.Error())
		}
		asOf := ""
		if !s.AsOf.IsZero() {
			asOf = s.AsOf.Format("2006-01-02")
		}
		fmt.Fprintf(writer, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			o.Category,
			asOf,
			s.UniverseSize,
			s.EligibleCount,
			s.ExcludedCount,
			s.RankedCount,
			strings.Join(s.Suppressed, ","),
			status,
		)
	}
	writer.Flush()
}
