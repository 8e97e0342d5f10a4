package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundscore/internal/domain"
)

func TestNumericHelpers(t *testing.T) {
	assert.Nil(t, numericArg(nil, 2))
	v := 71.236
	assert.Equal(t, "71.24", numericArg(&v, 2))

	s := "123.4500"
	parsed, err := parseNumeric(&s)
	require.NoError(t, err)
	assert.InDelta(t, 123.45, *parsed, 1e-12)

	bad := "abc"
	_, err = parseNumeric(&bad)
	assert.Error(t, err)

	none, err := parseDecimal(nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestNilStoreNotConfigured(t *testing.T) {
	var s *Store
	_, err := s.NavSeries(context.Background(), "F1")
	assert.ErrorIs(t, err, ErrNotConfigured)

	err = s.ReplaceCategory(context.Background(), domain.CategoryResult{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestMemoryReplaceAndRead(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.AddFund(domain.Fund{ID: "F1", Name: "Alpha Direct Growth", Category: "Large Cap"})
	m.AddFund(domain.Fund{ID: "F2", Name: "Beta Direct Growth", Category: "Mid Cap"})

	universe, err := m.CategoryUniverse(ctx, "large cap")
	require.NoError(t, err)
	require.Len(t, universe, 1)

	score := 80.0
	rank := 1
	asOf := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	result := domain.CategoryResult{
		Summary: domain.RunSummary{RunID: "run-1", Category: "Large Cap", AsOf: asOf},
		Composite: []domain.CompositeScoreRecord{
			{FundID: "F1", Category: "Large Cap", AsOf: asOf, QuantScore: &score, Rank: &rank, UniverseSize: 1},
		},
	}
	require.NoError(t, m.ReplaceCategory(ctx, result))

	rows, err := m.ListRankings(ctx, "Large Cap", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alpha Direct Growth", rows[0].FundName)
	assert.Equal(t, "80", rows[0].QuantScore.String())

	require.NoError(t, m.RecordRunFailure(ctx, domain.RunSummary{RunID: "run-2", Category: "Mid Cap"}, errors.New("universe empty")))
	runs, err := m.ListRecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, domain.RunStatusFailed, runs[0].Status)
	assert.Equal(t, domain.RunStatusCompleted, runs[1].Status)
}

func TestMemoryListRecentRunsNonPositiveLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.RecordRunFailure(ctx, domain.RunSummary{RunID: "run-1", Category: "Mid Cap"}, errors.New("boom")))

	for _, limit := range []int{0, -1, -50} {
		runs, err := m.ListRecentRuns(ctx, limit)
		require.NoError(t, err)
		assert.Empty(t, runs, "limit %d", limit)
	}
	runs, err := m.ListRecentRuns(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 0, clampLimit(-7))
	assert.Equal(t, 0, clampLimit(0))
	assert.Equal(t, 12, clampLimit(12))
}

func TestMemoryAdvisoryLock(t *testing.T) {
	m := NewMemory()
	unlock, ok, err := m.TryAdvisoryLock(context.Background(), 42)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = m.TryAdvisoryLock(context.Background(), 42)
	assert.False(t, ok)

	unlock()
	_, ok, _ = m.TryAdvisoryLock(context.Background(), 42)
	assert.True(t, ok)
}
