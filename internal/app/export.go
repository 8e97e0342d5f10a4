package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/xuri/excelize/v2"

	"fundscore/internal/storage"
)

const rankingSheet = "Rankings"

var rankingHeader = []string{
	"rank", "fund_id", "fund_name", "category", "as_of", "quant_score",
	"consistency", "risk_adjusted", "volatility", "performance", "universe_size",
}

// Export renders a category's stored ranking as CSV, PNG and/or XLSX.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" && opts.XLSXPath == "" {
		return errors.New("at least one of --csv, --png or --xlsx must be provided")
	}
	if opts.Category == "" {
		return errors.New("--category is required")
	}

	opts.MaxRows = a.Config.ResolveMaxRows(opts.MaxRows)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	rows, err := store.ListRankings(ctx, opts.Category, opts.MaxRows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		a.Logger.Info().Str("category", opts.Category).Msg("no rankings found for export")
		return nil
	}
	a.Logger.Info().Str("category", opts.Category).Int("rows", len(rows)).Msg("exporting rankings")

	if opts.CSVPath != "" {
		if err := writeRankingsCSV(opts.CSVPath, rows); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeRankingsPNG(opts.PNGPath, opts.Category, rows); err != nil {
			return err
		}
	}
	if opts.XLSXPath != "" {
		if err := writeRankingsXLSX(opts.XLSXPath, rows); err != nil {
			return err
		}
	}
	return nil
}

func rankingRecord(row storage.RankingRow) []string {
	rank := ""
	if row.Rank != nil {
		rank = strconv.Itoa(*row.Rank)
	}
	return []string{
		rank,
		row.FundID,
		row.FundName,
		row.Category,
		row.AsOf.Format("2006-01-02"),
		fixed2(row.QuantScore),
		fixed2(row.Consistency),
		fixed2(row.RiskAdjusted),
		fixed2(row.Volatility),
		fixed2(row.Performance),
		strconv.Itoa(row.UniverseSize),
	}
}

func writeRankingsCSV(path string, rows []storage.RankingRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(rankingHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(rankingRecord(row)); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeRankingsPNG(path, category string, rows []storage.RankingRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	bars := make([]chart.Value, 0, len(rows))
	for _, row := range rows {
		if row.QuantScore == nil {
			continue
		}
		bars = append(bars, chart.Value{
			Label: shortLabel(fundLabel(row), 18),
			Value: row.QuantScore.InexactFloat64(),
		})
	}
	if len(bars) == 0 {
		return errors.New("no scored funds to chart")
	}

	width := 1280
	if w := 60 * len(bars); w > width {
		width = w
	}
	graph := chart.BarChart{
		Title:    fmt.Sprintf("%s quant score", category),
		Width:    width,
		Height:   720,
		BarWidth: 40,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Bars: bars,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func writeRankingsXLSX(path string, rows []storage.RankingRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), rankingSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(rankingSheet, "A1", &rankingHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := xlsxValues(row)
		if err := f.SetSheetRow(rankingSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	return f.SaveAs(path)
}

// xlsxValues keeps numeric cells numeric so the workbook sorts correctly.
func xlsxValues(row storage.RankingRow) []interface{} {
	var rank interface{}
	if row.Rank != nil {
		rank = *row.Rank
	}
	return []interface{}{
		rank,
		row.FundID,
		row.FundName,
		row.Category,
		row.AsOf.Format("2006-01-02"),
		floatCell(row.QuantScore),
		floatCell(row.Consistency),
		floatCell(row.RiskAdjusted),
		floatCell(row.Volatility),
		floatCell(row.Performance),
		row.UniverseSize,
	}
}

func fixed2(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(2)
}

func floatCell(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.InexactFloat64()
}

func shortLabel(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
