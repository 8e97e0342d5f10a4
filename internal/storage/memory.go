package storage

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fundscore/internal/domain"
	"fundscore/internal/source"
)

// Memory is an in-process Provider and ResultSink. It backs dry runs and tests.
type Memory struct {
	mu         sync.RWMutex
	funds      map[string]domain.Fund
	navs       map[string][]domain.NavPoint
	benchmarks map[string][]domain.BenchmarkPoint
	mappings   map[string]string
	attributes map[string]*domain.PortfolioAttributes
	results    map[string]domain.CategoryResult
	runs       []ScoringRun
	locks      map[int64]bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		funds:      make(map[string]domain.Fund),
		navs:       make(map[string][]domain.NavPoint),
		benchmarks: make(map[string][]domain.BenchmarkPoint),
		mappings:   make(map[string]string),
		attributes: make(map[string]*domain.PortfolioAttributes),
		results:    make(map[string]domain.CategoryResult),
		locks:      make(map[int64]bool),
	}
}

// AddFund registers a universe member.
func (m *Memory) AddFund(f domain.Fund) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funds[f.ID] = f
}

// SetNav replaces a fund's NAV history.
func (m *Memory) SetNav(fundID string, points []domain.NavPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.navs[fundID] = append([]domain.NavPoint(nil), points...)
}

// SetBenchmark replaces a benchmark's history.
func (m *Memory) SetBenchmark(benchmarkID string, points []domain.BenchmarkPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.benchmarks[benchmarkID] = append([]domain.BenchmarkPoint(nil), points...)
}

// SetMapping maps a fund to a benchmark.
func (m *Memory) SetMapping(fundID, benchmarkID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings[fundID] = benchmarkID
}

// SetAttributes stores portfolio attributes for a fund.
func (m *Memory) SetAttributes(fundID string, attrs *domain.PortfolioAttributes) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attributes[fundID] = attrs
}

// NavSeries implements source.NavSource.
func (m *Memory) NavSeries(_ context.Context, fundID string) ([]domain.NavPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.NavPoint(nil), m.navs[fundID]...), nil
}

// BenchmarkSeries implements source.BenchmarkSource.
func (m *Memory) BenchmarkSeries(_ context.Context, benchmarkID string) ([]domain.BenchmarkPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.BenchmarkPoint(nil), m.benchmarks[benchmarkID]...), nil
}

// BenchmarkMapping implements source.MappingSource.
func (m *Memory) BenchmarkMapping(_ context.Context, fundID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.mappings[fundID]
	return b, ok && b != "", nil
}

// CategoryUniverse implements source.UniverseSource.
func (m *Memory) CategoryUniverse(_ context.Context, category string) ([]domain.Fund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Fund, 0)
	for _, f := range m.funds {
		if strings.EqualFold(f.Category, category) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PortfolioAttributes implements source.PortfolioSource.
func (m *Memory) PortfolioAttributes(_ context.Context, fundID string) (*domain.PortfolioAttributes, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attributes[fundID], nil
}

// ReplaceCategory swaps the stored result for the category.
func (m *Memory) ReplaceCategory(_ context.Context, result domain.CategoryResult) error {
	summary, err := json.Marshal(result.Summary)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[strings.ToLower(result.Summary.Category)] = result
	m.runs = append(m.runs, ScoringRun{
		RunID:     result.Summary.RunID,
		Category:  result.Summary.Category,
		AsOf:      result.Summary.AsOf,
		Summary:   summary,
		Status:    domain.RunStatusCompleted,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// RecordRunFailure appends a failed run.
func (m *Memory) RecordRunFailure(_ context.Context, summary domain.RunSummary, cause error) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	msg := cause.Error()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, ScoringRun{
		RunID:     summary.RunID,
		Category:  summary.Category,
		AsOf:      summary.AsOf,
		Summary:   payload,
		Status:    domain.RunStatusFailed,
		Error:     &msg,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// Result returns the last stored result for a category.
func (m *Memory) Result(category string) (domain.CategoryResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[strings.ToLower(category)]
	return r, ok
}

// ListRankings implements RankingReader.
func (m *Memory) ListRankings(_ context.Context, category string, limit int) ([]RankingRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.results[strings.ToLower(category)]
	if !ok {
		return nil, nil
	}
	rows := make([]RankingRow, 0, len(res.Composite))
	for _, c := range res.Composite {
		if limit > 0 && len(rows) >= limit {
			break
		}
		rows = append(rows, RankingRow{
			FundID:       c.FundID,
			FundName:     m.funds[c.FundID].Name,
			Category:     c.Category,
			AsOf:         c.AsOf,
			QuantScore:   toDecimal(c.QuantScore),
			Consistency:  toDecimal(c.Buckets.Consistency),
			RiskAdjusted: toDecimal(c.Buckets.RiskAdjusted),
			Volatility:   toDecimal(c.Buckets.Volatility),
			Performance:  toDecimal(c.Buckets.Performance),
			Rank:         c.Rank,
			UniverseSize: c.UniverseSize,
		})
	}
	return rows, nil
}

// ListRecentRuns implements RankingReader.
func (m *Memory) ListRecentRuns(_ context.Context, limit int) ([]ScoringRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit = clampLimit(limit)
	out := make([]ScoringRun, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

// TryAdvisoryLock emulates a non-blocking advisory lock within the process.
func (m *Memory) TryAdvisoryLock(_ context.Context, key int64) (func(), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] {
		return nil, false, nil
	}
	m.locks[key] = true
	return func() {
		m.mu.Lock()
		delete(m.locks, key)
		m.mu.Unlock()
	}, true, nil
}

func toDecimal(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v).Round(2)
	return &d
}

var (
	_ source.Provider = (*Memory)(nil)
	_ ResultSink      = (*Memory)(nil)
	_ RunRecorder     = (*Memory)(nil)
	_ RankingReader   = (*Memory)(nil)
	_ AdvisoryLocker  = (*Memory)(nil)
)
