package normalize

import (
	"math"

	"fundscore/internal/domain"
)

// Buckets.
const (
	BucketPerformance      = "performance"
	BucketConsistency      = "consistency"
	BucketRisk             = "risk"
	BucketRiskAdjusted     = "risk_adjusted"
	BucketPortfolioQuality = "portfolio_quality"
	BucketValuation        = "valuation"
)

// Metric names.
const (
	MetricCAGR1Y   = "cagr_1y"
	MetricCAGR3Y   = "cagr_3y"
	MetricCAGR5Y   = "cagr_5y"
	MetricReturn3M = "return_3m"
	MetricReturn6M = "return_6m"

	MetricRolling3Y  = "rolling_3y"
	MetricRolling5Y  = "rolling_5y"
	MetricAlpha3Y    = "alpha_3y"
	MetricAlpha5Y    = "alpha_5y"
	MetricAlphaIQR3Y = "alpha_iqr_3y"
	MetricAlphaIQR5Y = "alpha_iqr_5y"
	MetricConfidence = "confidence"

	MetricVolatility    = "volatility"
	MetricMaxDrawdown   = "max_drawdown"
	MetricBetaDeviation = "beta_deviation"
	MetricUpsideBeta    = "upside_beta"
	MetricDownsideBeta  = "downside_beta"

	MetricSharpe           = "sharpe"
	MetricSortino          = "sortino"
	MetricInformationRatio = "information_ratio"

	MetricStockCount        = "stock_count"
	MetricAUM               = "aum"
	MetricTop10             = "top10"
	MetricTop3Sector        = "top3_sector"
	MetricSectorHHI         = "sector_hhi"
	MetricTurnover          = "turnover"
	MetricExpenseRatio      = "expense_ratio"
	MetricManagerExperience = "manager_experience"

	MetricPE  = "pe"
	MetricPB  = "pb"
	MetricROE = "roe"
)

// Mode selects how raw values become scores.
type Mode int

const (
	ModePercentile Mode = iota
	ModeBand
	ModePenalty
	ModePassThrough
)

func (m Mode) String() string {
	switch m {
	case ModePercentile:
		return "percentile"
	case ModeBand:
		return "band"
	case ModePenalty:
		return "penalty"
	case ModePassThrough:
		return "pass-through"
	default:
		return "unknown"
	}
}

// Direction states whether larger raw values are preferable.
type Direction int

const (
	HigherIsBetter Direction = iota
	LowerIsBetter
)

// MetricSpec describes one normalised metric.
type MetricSpec struct {
	Bucket    string
	Name      string
	Mode      Mode
	Direction Direction
	Extract   func(Input) *float64
}

// Key is "bucket.metric".
func (m MetricSpec) Key() string { return m.Bucket + "." + m.Name }

func raw(fn func(*domain.RawMetricRecord) *float64) func(Input) *float64 {
	return func(in Input) *float64 {
		if in.Raw == nil || !in.Raw.IsEligible() {
			return nil
		}
		return fn(in.Raw)
	}
}

func cons(fn func(*domain.ConsistencyRecord) *float64) func(Input) *float64 {
	return func(in Input) *float64 {
		if in.Consistency == nil {
			return nil
		}
		return fn(in.Consistency)
	}
}

func attr(fn func(*domain.PortfolioAttributes) *float64) func(Input) *float64 {
	return func(in Input) *float64 {
		if in.Attributes == nil {
			return nil
		}
		return fn(in.Attributes)
	}
}

func positiveLog(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	l := math.Log(*v)
	return &l
}

func absPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	a := math.Abs(*v)
	return &a
}

// DefaultMetrics is the full metric table.
func DefaultMetrics() []MetricSpec {
	return []MetricSpec{
		{BucketPerformance, MetricCAGR1Y, ModePercentile, HigherIsBetter, raw(func(r *domain.RawMetricRecord) *float64 { return r.Performance.CAGR1Y })},
		{BucketPerformance, MetricCAGR3Y, ModePercentile, HigherIsBetter, raw(func(r *domain.RawMetricRecord) *float64 { return r.Performance.CAGR3Y })},
		{BucketPerformance, MetricCAGR5Y, ModePercentile, HigherIsBetter, raw(func(r *domain.RawMetricRecord) *float64 { return r.Performance.CAGR5Y })},
		{BucketPerformance, MetricReturn3M, ModePercentile, HigherIsBetter, raw(func(r *domain.RawMetricRecord) *float64 { return r.Performance.Return3M })},
		{BucketPerformance, MetricReturn6M, ModePercentile, HigherIsBetter, raw(func(r *domain.RawMetricRecord) *float64 { return r.Performance.Return6M })},

		{BucketConsistency, MetricRolling3Y, ModePercentile, HigherIsBetter, cons(func(c *domain.ConsistencyRecord) *float64 { return c.Rolling3Y.MedianPtr() })},
		{BucketConsistency, MetricRolling5Y, ModePercentile, HigherIsBetter, cons(func(c *domain.ConsistencyRecord) *float64 { return c.Rolling5Y.MedianPtr() })},
		{BucketConsistency, MetricAlpha3Y, ModePercentile, HigherIsBetter, cons(func(c *domain.ConsistencyRecord) *float64 { return c.RollingAlpha3Y.MedianPtr() })},
		{BucketConsistency, MetricAlpha5Y, ModePercentile, HigherIsBetter, cons(func(c *domain.ConsistencyRecord) *float64 { return c.RollingAlpha5Y.MedianPtr() })},
		{BucketConsistency, MetricAlphaIQR3Y, ModePercentile, LowerIsBetter, cons(func(c *domain.ConsistencyRecord) *float64 { return c.RollingAlpha3Y.IQR() })},
		{BucketConsistency, MetricAlphaIQR5Y, ModePercentile, LowerIsBetter, cons(func(c *domain.ConsistencyRecord) *float64 { return c.RollingAlpha5Y.IQR() })},
		{BucketConsistency, MetricConfidence, ModePassThrough, HigherIsBetter, cons(func(c *domain.ConsistencyRecord) *float64 {
			v := c.Confidence
			return &v
		})},

		{BucketRisk, MetricVolatility, ModePercentile, LowerIsBetter, raw(func(r *domain.RawMetricRecord) *float64 { return r.Risk.Volatility })},
		{BucketRisk, MetricMaxDrawdown, ModePercentile, LowerIsBetter, raw(func(r *domain.RawMetricRecord) *float64 { return absPtr(r.Risk.MaxDrawdown) })},
		{BucketRisk, MetricBetaDeviation, ModePercentile, LowerIsBetter, raw(func(r *domain.RawMetricRecord) *float64 {
			if r.RiskAdjusted.Beta3Y == nil {
				return nil
			}
			d := math.Abs(*r.RiskAdjusted.Beta3Y - 1)
			return &d
		})},
		{BucketRisk, MetricUpsideBeta, ModePercentile, HigherIsBetter, raw(func(r *domain.RawMetricRecord) *float64 { return r.RiskAdjusted.UpsideBeta3Y })},
		{BucketRisk, MetricDownsideBeta, ModePercentile, LowerIsBetter, raw(func(r *domain.RawMetricRecord) *float64 { return r.RiskAdjusted.DownsideBeta3Y })},

		{BucketRiskAdjusted, MetricSharpe, ModePercentile, HigherIsBetter, raw(func(r *domain.RawMetricRecord) *float64 { return r.RiskAdjusted.Sharpe3Y })},
		{BucketRiskAdjusted, MetricSortino, ModePercentile, HigherIsBetter, raw(func(r *domain.RawMetricRecord) *float64 { return r.RiskAdjusted.Sortino3Y })},
		{BucketRiskAdjusted, MetricInformationRatio, ModePercentile, HigherIsBetter, raw(func(r *domain.RawMetricRecord) *float64 { return r.RiskAdjusted.InformationRatio3Y })},

		{BucketPortfolioQuality, MetricStockCount, ModeBand, HigherIsBetter, attr(func(p *domain.PortfolioAttributes) *float64 { return p.StockCount })},
		{BucketPortfolioQuality, MetricAUM, ModeBand, HigherIsBetter, attr(func(p *domain.PortfolioAttributes) *float64 { return positiveLog(p.AUM) })},
		{BucketPortfolioQuality, MetricTop10, ModePenalty, LowerIsBetter, attr(func(p *domain.PortfolioAttributes) *float64 { return p.Top10Weight })},
		{BucketPortfolioQuality, MetricTop3Sector, ModePenalty, LowerIsBetter, attr(func(p *domain.PortfolioAttributes) *float64 { return p.Top3SectorWeight })},
		{BucketPortfolioQuality, MetricSectorHHI, ModePercentile, LowerIsBetter, attr(func(p *domain.PortfolioAttributes) *float64 { return p.SectorHHI() })},
		{BucketPortfolioQuality, MetricTurnover, ModePercentile, LowerIsBetter, attr(func(p *domain.PortfolioAttributes) *float64 { return p.Turnover })},
		{BucketPortfolioQuality, MetricExpenseRatio, ModePercentile, LowerIsBetter, attr(func(p *domain.PortfolioAttributes) *float64 { return p.ExpenseRatio })},
		{BucketPortfolioQuality, MetricManagerExperience, ModePercentile, HigherIsBetter, attr(func(p *domain.PortfolioAttributes) *float64 { return p.ManagerExperience })},

		{BucketValuation, MetricPE, ModePercentile, LowerIsBetter, attr(func(p *domain.PortfolioAttributes) *float64 { return p.PE })},
		{BucketValuation, MetricPB, ModePercentile, LowerIsBetter, attr(func(p *domain.PortfolioAttributes) *float64 { return p.PB })},
		{BucketValuation, MetricROE, ModePercentile, HigherIsBetter, attr(func(p *domain.PortfolioAttributes) *float64 { return p.ROE })},
	}
}
