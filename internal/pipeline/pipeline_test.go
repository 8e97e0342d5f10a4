package pipeline

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundscore/internal/alerting"
	"fundscore/internal/domain"
	"fundscore/internal/policy"
	"fundscore/internal/storage"
)

var (
	epoch = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	asOf  = epoch.AddDate(6, 0, 0)
)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []alerting.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n alerting.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return nil
}

func navHistory(fundID string, days int, drift, amp, phase float64) []domain.NavPoint {
	out := make([]domain.NavPoint, 0, days+1)
	start := asOf.AddDate(0, 0, -days)
	for i := 0; i <= days; i++ {
		x := float64(i)
		out = append(out, domain.NavPoint{
			FundID: fundID,
			Date:   start.AddDate(0, 0, i),
			NAV:    100 * math.Exp(drift*x+amp*math.Sin(x/9+phase)),
		})
	}
	return out
}

func benchHistory(id string) []domain.BenchmarkPoint {
	days := int(asOf.Sub(epoch).Hours() / 24)
	out := make([]domain.BenchmarkPoint, 0, days+1)
	for i := 0; i <= days; i++ {
		x := float64(i)
		out = append(out, domain.BenchmarkPoint{
			BenchmarkID: id,
			Date:        epoch.AddDate(0, 0, i),
			Value:       1000 * math.Exp(0.00035*x+0.04*math.Sin(x/11)),
		})
	}
	return out
}

func seededStore() *storage.Memory {
	m := storage.NewMemory()
	days := int(asOf.Sub(epoch).Hours() / 24)

	large := []struct {
		id, name          string
		drift, amp, phase float64
	}{
		{"LC1", "Alpha Large Cap Fund - Direct Plan - Growth", 0.00045, 0.05, 0.0},
		{"LC2", "Beta Bluechip Fund - Direct Plan - Growth", 0.00038, 0.03, 1.1},
		{"LC3", "Gamma Top 100 Fund - Direct Plan - Growth", 0.00030, 0.06, 2.3},
		{"LC4", "Delta Large Cap Fund - Direct Plan - Growth", 0.00041, 0.04, 3.7},
	}
	for _, f := range large {
		m.AddFund(domain.Fund{ID: f.id, Name: f.name, Category: "Large Cap"})
		m.SetNav(f.id, navHistory(f.id, days, f.drift, f.amp, f.phase))
	}
	m.AddFund(domain.Fund{ID: "LC5", Name: "Epsilon Large Cap Fund - Direct Plan - Growth", Category: "Large Cap"})
	m.SetNav("LC5", navHistory("LC5", 99, 0.0004, 0.02, 0.5))
	m.AddFund(domain.Fund{ID: "LC6", Name: "Alpha Large Cap Fund - Regular Plan - Growth", Category: "Large Cap"})
	m.SetNav("LC6", navHistory("LC6", days, 0.0004, 0.05, 0.0))

	m.AddFund(domain.Fund{ID: "MC1", Name: "Zeta Midcap Fund - Regular Plan - Growth", Category: "Mid Cap"})

	m.AddFund(domain.Fund{ID: "SC1", Name: "Eta Small Cap Fund - Direct Plan - Growth", Category: "Small Cap"})
	m.AddFund(domain.Fund{ID: "SC2", Name: "Theta Small Cap Fund - Direct Plan - Growth", Category: "Small Cap"})
	m.SetNav("SC1", navHistory("SC1", days, 0.0005, 0.07, 0.2))
	m.SetNav("SC2", navHistory("SC2", days, 0.0003, 0.05, 1.9))

	m.SetBenchmark("NIFTY 100 TRI", benchHistory("NIFTY 100 TRI"))
	m.SetBenchmark("NIFTY Smallcap 250 TRI", benchHistory("NIFTY Smallcap 250 TRI"))
	return m
}

func newService(m *storage.Memory, opts Options, notifier alerting.Notifier) *Service {
	return New(Dependencies{
		Provider: m,
		Sink:     m,
		Notifier: notifier,
	}, opts, zerolog.Nop())
}

func TestRunScoringEndToEnd(t *testing.T) {
	m := seededStore()
	svc := newService(m, Options{Workers: 3}, nil)

	summary, err := svc.RunScoringAsOf(context.Background(), "large cap", asOf)
	require.NoError(t, err)

	assert.Equal(t, "Large Cap", summary.Category)
	assert.Equal(t, 5, summary.UniverseSize, "regular plan filtered out")
	assert.Equal(t, 4, summary.EligibleCount)
	assert.Equal(t, 1, summary.ExcludedCount)
	assert.Equal(t, 4, summary.RankedCount)
	assert.NotEmpty(t, summary.RunID)

	stored, ok := m.Result("Large Cap")
	require.True(t, ok)
	require.Len(t, stored.Raw, 5)
	require.Len(t, stored.Composite, 4)

	for _, raw := range stored.Raw {
		if raw.FundID == "LC5" {
			assert.Equal(t, domain.Excluded, raw.EligibilityStatus)
			assert.Equal(t, domain.ReasonInsufficientNavHistory, raw.ExclusionReason)
			continue
		}
		assert.Equal(t, domain.Eligible, raw.EligibilityStatus)
		assert.Equal(t, "NIFTY 100 TRI", raw.BenchmarkID)
	}

	for i, rec := range stored.Composite {
		require.NotNil(t, rec.QuantScore, rec.FundID)
		require.NotNil(t, rec.Rank, rec.FundID)
		assert.GreaterOrEqual(t, *rec.QuantScore, 0.0)
		assert.LessOrEqual(t, *rec.QuantScore, 100.0)
		assert.NotEmpty(t, rec.FundName)
		assert.Equal(t, 4, rec.UniverseSize)
		if i > 0 {
			assert.LessOrEqual(t, *rec.QuantScore, *stored.Composite[i-1].QuantScore)
			assert.GreaterOrEqual(t, *rec.Rank, *stored.Composite[i-1].Rank)
		}
	}
	assert.Equal(t, 1, *stored.Composite[0].Rank)
}

func TestRunScoringIsIdempotent(t *testing.T) {
	m := seededStore()
	svc := newService(m, Options{Workers: 2}, nil)

	_, err := svc.RunScoringAsOf(context.Background(), "Large Cap", asOf)
	require.NoError(t, err)
	first, _ := m.Result("Large Cap")

	_, err = svc.RunScoringAsOf(context.Background(), "Large Cap", asOf)
	require.NoError(t, err)
	second, _ := m.Result("Large Cap")

	assert.Equal(t, first.Composite, second.Composite)
	assert.Equal(t, first.Raw, second.Raw)
}

func TestRunScoringAsOfTruncatesHistory(t *testing.T) {
	m := seededStore()
	svc := newService(m, Options{}, nil)

	early := asOf.AddDate(-4, 0, 0)
	summary, err := svc.RunScoringAsOf(context.Background(), "Large Cap", early)
	require.NoError(t, err)
	assert.Equal(t, early, summary.AsOf)

	stored, _ := m.Result("Large Cap")
	for _, raw := range stored.Raw {
		if !raw.IsEligible() {
			continue
		}
		assert.False(t, raw.NavStats.LastDate.After(early))
		assert.Nil(t, raw.Performance.CAGR5Y, "five-year window needs data after the as-of date")
	}
}

func TestEmptyUniverseFailsAndRecords(t *testing.T) {
	m := seededStore()
	notifier := &recordingNotifier{}
	svc := newService(m, Options{}, notifier)

	_, err := svc.RunScoringAsOf(context.Background(), "Mid Cap", asOf)
	require.ErrorIs(t, err, ErrEmptyUniverse)

	_, ok := m.Result("Mid Cap")
	assert.False(t, ok)

	runs, err := m.ListRecentRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "failed", runs[0].Status)

	require.Len(t, notifier.notes, 1)
	assert.Equal(t, alerting.StatusFailed, notifier.notes[0].Status)
}

func TestUnknownCategory(t *testing.T) {
	svc := newService(seededStore(), Options{}, nil)
	_, err := svc.RunScoring(context.Background(), "Overnight")
	assert.ErrorIs(t, err, policy.ErrUnknownCategory)
}

func TestSmallUniverseProducesNoScores(t *testing.T) {
	m := seededStore()
	svc := newService(m, Options{}, nil)

	summary, err := svc.RunScoringAsOf(context.Background(), "Small Cap", asOf)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.EligibleCount)
	assert.Equal(t, 0, summary.RankedCount)

	stored, ok := m.Result("Small Cap")
	require.True(t, ok)
	assert.Len(t, stored.Raw, 2)
	assert.Empty(t, stored.Normalized)
	assert.Empty(t, stored.Composite)
}

func TestMalformedNavAbortsCategory(t *testing.T) {
	m := seededStore()
	bad := navHistory("LC2", 400, 0.0004, 0.03, 0)
	bad[10].NAV = 0
	m.SetNav("LC2", bad)
	svc := newService(m, Options{}, nil)

	_, err := svc.RunScoringAsOf(context.Background(), "Large Cap", asOf)
	require.ErrorIs(t, err, domain.ErrMalformedInput)
	_, ok := m.Result("Large Cap")
	assert.False(t, ok, "nothing is written for an aborted category")
}

func TestRunCategoriesIsolatesFailures(t *testing.T) {
	m := seededStore()
	svc := newService(m, Options{}, nil)

	outcomes := svc.RunCategories(context.Background(), []string{"Mid Cap", "Large Cap"}, asOf)
	require.Len(t, outcomes, 2)
	assert.ErrorIs(t, outcomes[0].Err, ErrEmptyUniverse)
	assert.NoError(t, outcomes[1].Err)
	assert.Equal(t, 4, outcomes[1].Summary.RankedCount)
}

func TestDryRunDoesNotPersist(t *testing.T) {
	m := seededStore()
	notifier := &recordingNotifier{}
	svc := newService(m, Options{DryRun: true, NotifyOnSuccess: true}, notifier)

	summary, err := svc.RunScoringAsOf(context.Background(), "Large Cap", asOf)
	require.NoError(t, err)
	assert.True(t, summary.DryRun)

	_, ok := m.Result("Large Cap")
	assert.False(t, ok)
	require.Len(t, notifier.notes, 1)
	assert.Len(t, notifier.notes[0].Leaders, 4)
}

func TestScoreReturnsRecords(t *testing.T) {
	svc := newService(seededStore(), Options{}, nil)
	result, err := svc.Score(context.Background(), "Large Cap", asOf)
	require.NoError(t, err)
	assert.Len(t, result.Composite, 4)
	assert.Len(t, result.Normalized, 4)
	assert.NotEmpty(t, result.Consistency)
}

func TestAdvisoryLockSkipsConcurrentRun(t *testing.T) {
	m := seededStore()
	const base = int64(0x66756e64)
	unlock, ok, err := m.TryAdvisoryLock(context.Background(), LockKey(base, "Large Cap"))
	require.NoError(t, err)
	require.True(t, ok)
	defer unlock()

	svc := newService(m, Options{LockKey: base}, nil)
	_, err = svc.RunScoringAsOf(context.Background(), "Large Cap", asOf)
	assert.ErrorIs(t, err, ErrRunInProgress)

	_, err = svc.RunScoringAsOf(context.Background(), "Small Cap", asOf)
	assert.NoError(t, err, "other categories use a different key")
}

func TestLockKeyIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, LockKey(7, "Large Cap"), LockKey(7, " large cap "))
	assert.NotEqual(t, LockKey(7, "Large Cap"), LockKey(7, "Mid Cap"))
}
