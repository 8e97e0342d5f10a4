package app

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fundscore/internal/config"
	"fundscore/internal/domain"
	"fundscore/internal/pipeline"
	"fundscore/internal/storage"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intPtr(v int) *int { return &v }

func sampleRows() []storage.RankingRow {
	asOf := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	return []storage.RankingRow{
		{FundID: "F1", FundName: "Alpha Large Cap Direct Growth", Category: "Large Cap", AsOf: asOf,
			QuantScore: dec("81.25"), Consistency: dec("70"), RiskAdjusted: dec("90"), Volatility: dec("75"), Performance: dec("88.5"),
			Rank: intPtr(1), UniverseSize: 2},
		{FundID: "F2", FundName: "Beta Bluechip Direct Growth", Category: "Large Cap", AsOf: asOf,
			QuantScore: dec("60"), Consistency: dec("55"), RiskAdjusted: dec("50"), Volatility: dec("70"), Performance: dec("62"),
			Rank: intPtr(2), UniverseSize: 2},
		{FundID: "F3", Category: "Large Cap", AsOf: asOf},
	}
}

func TestWriteRankingsTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRankings(&buf, sampleRows()))
	out := buf.String()
	assert.Contains(t, out, "Alpha Large Cap Direct Growth")
	assert.Contains(t, out, "81.25")
	assert.Contains(t, out, "F3")

	buf.Reset()
	require.NoError(t, writeRankings(&buf, nil))
	assert.Equal(t, "no rankings found\n", buf.String())
}

func TestWriteRunsTable(t *testing.T) {
	msg := "universe\nempty"
	runs := []storage.ScoringRun{
		{RunID: "r1", Category: "Large Cap", Summary: []byte(`{"RankedCount":4}`), Status: domain.RunStatusCompleted, CreatedAt: time.Now()},
		{RunID: "r2", Category: "Mid Cap", Status: "failed", Error: &msg, CreatedAt: time.Now()},
	}
	var buf bytes.Buffer
	require.NoError(t, writeRuns(&buf, runs))
	assert.Contains(t, buf.String(), "universe empty")
	assert.Contains(t, buf.String(), "completed")
}

func TestWriteRankingsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "rankings.csv")
	require.NoError(t, writeRankingsCSV(path, sampleRows()))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, rankingHeader, records[0])
	assert.Equal(t, []string{"1", "F1", "Alpha Large Cap Direct Growth", "Large Cap", "2025-03-31", "81.25", "70.00", "90.00", "75.00", "88.50", "2"}, records[1])
	assert.Equal(t, "", records[3][0], "unranked fund has an empty rank")
}

func TestWriteRankingsXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rankings.xlsx")
	require.NoError(t, writeRankingsXLSX(path, sampleRows()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(rankingSheet)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 3)
	assert.Equal(t, "quant_score", rows[0][5])
	assert.Equal(t, "F1", rows[1][1])
	assert.Equal(t, "81.25", rows[1][5])
}

func TestWriteRankingsPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rankings.png")
	require.NoError(t, writeRankingsPNG(path, "Large Cap", sampleRows()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	err = writeRankingsPNG(filepath.Join(t.TempDir(), "empty.png"), "Large Cap", sampleRows()[2:])
	assert.Error(t, err)
}

func TestWriteOutcomes(t *testing.T) {
	var buf bytes.Buffer
	writeOutcomes(&buf, []pipeline.Outcome{
		{Category: "Large Cap", Summary: domain.RunSummary{AsOf: time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), UniverseSize: 5, RankedCount: 4}},
		{Category: "Mid Cap", Err: pipeline.ErrEmptyUniverse},
	})
	assert.Contains(t, buf.String(), "2025-03-31")
	assert.Contains(t, buf.String(), "empty universe")
}

func TestOutcomesError(t *testing.T) {
	assert.NoError(t, outcomesError([]pipeline.Outcome{{Category: "Large Cap"}}))

	err := outcomesError([]pipeline.Outcome{
		{Category: "Large Cap"},
		{Category: "Mid Cap", Err: pipeline.ErrEmptyUniverse},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeline.ErrEmptyUniverse))
	assert.Contains(t, err.Error(), "Mid Cap")
}

func TestPoliciesAndBenchmarkKey(t *testing.T) {
	a := NewApp(&config.Config{}, zerolog.Nop())

	var buf bytes.Buffer
	require.NoError(t, a.Policies(&buf))
	assert.Contains(t, buf.String(), "NIFTY 100 TRI")
	assert.Contains(t, buf.String(), "Large & Mid Cap")

	buf.Reset()
	a.BenchmarkKey(&buf, []string{"HDFC Top 100 Fund - Direct Plan - Growth"})
	assert.Equal(t, "hdfc top 100\tHDFC Top 100 Fund - Direct Plan - Growth\n", buf.String())
}

func TestCommandsRequireDatabase(t *testing.T) {
	a := NewApp(&config.Config{}, zerolog.Nop())
	assert.Error(t, a.Show(t.Context(), ShowOptions{Category: "Large Cap", Limit: 5}))
	assert.Error(t, a.Export(t.Context(), ExportOptions{Category: "Large Cap", CSVPath: "x.csv"}))
	assert.Error(t, a.Export(t.Context(), ExportOptions{Category: "Large Cap"}))
	assert.Error(t, a.Score(t.Context(), ScoreOptions{}))
}
