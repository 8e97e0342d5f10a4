package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"fundscore/internal/domain"
	"fundscore/internal/storage"
)

// Show prints a category's ranking table or the recent run log.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show rankings")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Runs {
		runs, err := store.ListRecentRuns(ctx, opts.Limit)
		if err != nil {
			return err
		}
		return writeRuns(os.Stdout, runs)
	}

	if opts.Category == "" {
		return errors.New("--category is required unless --runs is set")
	}
	rows, err := store.ListRankings(ctx, opts.Category, opts.Limit)
	if err != nil {
		return err
	}
	return writeRankings(os.Stdout, rows)
}

func writeRankings(w io.Writer, rows []storage.RankingRow) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "no rankings found")
		return nil
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Rank\tFund\tQuant\tConsistency\tRisk-Adj\tVolatility\tPerformance\tAs Of")
	for _, row := range rows {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			formatRank(row.Rank),
			sanitizeInline(fundLabel(row)),
			formatDecimal(row.QuantScore, 2),
			formatDecimal(row.Consistency, 2),
			formatDecimal(row.RiskAdjusted, 2),
			formatDecimal(row.Volatility, 2),
			formatDecimal(row.Performance, 2),
			row.AsOf.Format("2006-01-02"),
		)
	}
	return writer.Flush()
}

func writeRuns(w io.Writer, runs []storage.ScoringRun) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs found")
		return nil
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tCategory\tAs Of\tRanked\tStatus\tRun\tError")
	for _, run := range runs {
		var summary domain.RunSummary
		ranked := "-"
		if len(run.Summary) > 0 && json.Unmarshal(run.Summary, &summary) == nil {
			ranked = strconv.Itoa(summary.RankedCount)
		}
		errMsg := ""
		if run.Error != nil {
			errMsg = sanitizeInline(*run.Error)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			run.CreatedAt.UTC().Format(time.RFC3339),
			run.Category,
			run.AsOf.Format("2006-01-02"),
			ranked,
			run.Status,
			run.RunID,
			errMsg,
		)
	}
	return writer.Flush()
}

func fundLabel(row storage.RankingRow) string {
	if row.FundName != "" {
		return row.FundName
	}
	return row.FundID
}

func formatRank(rank *int) string {
	if rank == nil {
		return "-"
	}
	return strconv.Itoa(*rank)
}

func formatDecimal(d *decimal.Decimal, places int32) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(places)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}
