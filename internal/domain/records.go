package domain

import (
	"time"
)

// EligibilityStatus marks whether a fund produced a usable metric record.
type EligibilityStatus string

const (
	Eligible EligibilityStatus = "ELIGIBLE"
	Excluded EligibilityStatus = "EXCLUDED"
)

// Reason codes explain why a record or metric group is unavailable.
type Reason string

const (
	ReasonInsufficientNavHistory Reason = "INSUFFICIENT_NAV_HISTORY"
	ReasonInsufficientOverlap    Reason = "INSUFFICIENT_OVERLAP"
	ReasonInsufficientWindow     Reason = "INSUFFICIENT_WINDOW"
	ReasonBenchmarkUnmapped      Reason = "BENCHMARK_UNMAPPED"
	ReasonBenchmarkMissing       Reason = "BENCHMARK_SERIES_MISSING"
	ReasonDegenerate             Reason = "DEGENERATE_DISTRIBUTION"
	ReasonUniverseTooSmall       Reason = "UNIVERSE_TOO_SMALL"
)

// Metric groups used as keys in RawMetricRecord.Degradations.
const (
	GroupPerformance  = "performance"
	GroupRisk         = "risk"
	GroupRiskAdjusted = "risk_adjusted"
	GroupBenchmark    = "benchmark_relative"
	GroupConsistency  = "consistency"
	GroupAlpha        = "rolling_alpha"
)

// NavPoint is a single published net asset value.
type NavPoint struct {
	FundID string    `validate:"required"`
	Date   time.Time `validate:"required"`
	NAV    float64   `validate:"gt=0"`
}

// BenchmarkPoint is a single benchmark index level.
type BenchmarkPoint struct {
	BenchmarkID string    `validate:"required"`
	Date        time.Time `validate:"required"`
	Value       float64   `validate:"gt=0"`
}

// Fund is a member of a category universe before eligibility filtering.
type Fund struct {
	ID       string `validate:"required"`
	Name     string
	Category string
}

// PortfolioAttributes carries holdings-level descriptors. Any field may be nil.
type PortfolioAttributes struct {
	StockCount        *float64
	Top10Weight       *float64
	Top3SectorWeight  *float64
	SectorWeights     map[string]float64
	Turnover          *float64
	ExpenseRatio      *float64
	AUM               *float64
	ManagerExperience *float64
	PE                *float64
	PB                *float64
	ROE               *float64
}

// SectorHHI returns the Herfindahl index of sector weights expressed in percent.
func (p *PortfolioAttributes) SectorHHI() *float64 {
	if p == nil || len(p.SectorWeights) == 0 {
		return nil
	}
	var hhi float64
	for _, w := range p.SectorWeights {
		share := w / 100
		hhi += share * share
	}
	return &hhi
}

// Performance holds trailing returns as fractions.
type Performance struct {
	CAGR1Y   *float64 `json:"cagr_1y"`
	CAGR3Y   *float64 `json:"cagr_3y"`
	CAGR5Y   *float64 `json:"cagr_5y"`
	Return3M *float64 `json:"return_3m"`
	Return6M *float64 `json:"return_6m"`
}

// Risk holds annualised volatility and maximum drawdown as fractions.
type Risk struct {
	Volatility  *float64 `json:"volatility"`
	MaxDrawdown *float64 `json:"max_drawdown"`
}

// RiskAdjusted holds 3y benchmark-relative and ratio metrics.
type RiskAdjusted struct {
	Sharpe3Y           *float64 `json:"sharpe_3y"`
	Sortino3Y          *float64 `json:"sortino_3y"`
	InformationRatio3Y *float64 `json:"information_ratio_3y"`
	Beta3Y             *float64 `json:"beta_3y"`
	UpsideBeta3Y       *float64 `json:"upside_beta_3y"`
	DownsideBeta3Y     *float64 `json:"downside_beta_3y"`
	Months             int      `json:"months"`
}

// NavStats records the shape of the series a record was computed from.
type NavStats struct {
	FirstDate time.Time `json:"first_date"`
	LastDate  time.Time `json:"last_date"`
	Points    int       `json:"points"`
}

// RawMetricRecord is the per-fund output of the metric calculators.
type RawMetricRecord struct {
	FundID            string
	Category          string
	AsOf              time.Time
	BenchmarkID       string
	Performance       Performance
	Risk              Risk
	RiskAdjusted      RiskAdjusted
	EligibilityStatus EligibilityStatus
	ExclusionReason   Reason
	Degradations      map[string]Reason
	NavStats          NavStats
}

// Degrade records why a metric group is unavailable.
func (r *RawMetricRecord) Degrade(group string, reason Reason) {
	if r.Degradations == nil {
		r.Degradations = make(map[string]Reason)
	}
	r.Degradations[group] = reason
}

// IsEligible reports whether performance and risk metrics were computed.
func (r RawMetricRecord) IsEligible() bool {
	return r.EligibilityStatus == Eligible
}

// WindowSummary describes the distribution of a rolling-window statistic.
type WindowSummary struct {
	Median       float64 `json:"median"`
	P25          float64 `json:"p25"`
	P75          float64 `json:"p75"`
	Observations int     `json:"obs"`
}

// IQR returns P75 minus P25.
func (w *WindowSummary) IQR() *float64 {
	if w == nil {
		return nil
	}
	v := w.P75 - w.P25
	return &v
}

// MedianPtr returns the median or nil when the window is absent.
func (w *WindowSummary) MedianPtr() *float64 {
	if w == nil {
		return nil
	}
	v := w.Median
	return &v
}

// ConsistencyRecord summarises rolling-window behaviour for a fund.
type ConsistencyRecord struct {
	FundID         string
	Category       string
	AsOf           time.Time
	Rolling3Y      *WindowSummary
	Rolling5Y      *WindowSummary
	RollingAlpha3Y *WindowSummary
	RollingAlpha5Y *WindowSummary
	Confidence     float64
}

// NormalizedScoreRecord maps bucket -> metric -> score in [0, 100].
type NormalizedScoreRecord struct {
	FundID       string
	Category     string
	AsOf         time.Time
	Scores       map[string]map[string]*float64
	UniverseSize int
	NormalizedAt time.Time
}

// Score returns a single metric score, or nil.
func (n NormalizedScoreRecord) Score(bucket, metric string) *float64 {
	if n.Scores == nil {
		return nil
	}
	return n.Scores[bucket][metric]
}

// BucketScores holds the composite's per-bucket scores.
type BucketScores struct {
	Consistency  *float64 `json:"consistency"`
	RiskAdjusted *float64 `json:"risk_adjusted"`
	Volatility   *float64 `json:"volatility"`
	Performance  *float64 `json:"performance"`
}

// CompositeScoreRecord is the final ranked output for a fund.
type CompositeScoreRecord struct {
	FundID       string
	FundName     string
	Category     string
	AsOf         time.Time
	QuantScore   *float64
	Buckets      BucketScores
	Rank         *int
	UniverseSize int
}

// Run statuses shared by the run log, metrics and notifications.
const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusSkipped   = "skipped"
)

// RunSummary reports the outcome of one category run.
type RunSummary struct {
	RunID           string
	Category        string
	AsOf            time.Time
	UniverseSize    int
	EligibleCount   int
	ExcludedCount   int
	NormalizedCount int
	RankedCount     int
	Suppressed      []string
	Duration        time.Duration
	DryRun          bool
}

// CategoryResult is everything a category run writes, replaced as a unit.
type CategoryResult struct {
	Summary     RunSummary
	Funds       []Fund
	Raw         []RawMetricRecord
	Consistency []ConsistencyRecord
	Normalized  []NormalizedScoreRecord
	Composite   []CompositeScoreRecord
}
