package analytics

import (
	"time"

	"fundscore/internal/domain"
	"fundscore/internal/timeseries"
)

// Options bundle every calculator setting used when evaluating a fund.
type Options struct {
	MinDailyPoints int
	RiskAdjusted   RiskAdjustedOptions
	Consistency    ConsistencyOptions
}

// DefaultOptions returns the standard evaluation settings.
func DefaultOptions() Options {
	return Options{
		MinDailyPoints: 250,
		RiskAdjusted:   DefaultRiskAdjustedOptions(),
		Consistency:    DefaultConsistencyOptions(),
	}
}

// Input is everything needed to evaluate one fund.
type Input struct {
	FundID      string
	Category    string
	AsOf        time.Time
	Nav         timeseries.Series
	BenchmarkID string
	Benchmark   timeseries.Series
}

// Result pairs the raw metric record with the optional consistency record.
type Result struct {
	Raw         domain.RawMetricRecord
	Consistency *domain.ConsistencyRecord
}

// Evaluate runs the performance, risk, risk-adjusted and consistency
// calculators for a single fund. It never fails: missing inputs degrade to nil
// metrics with a recorded reason.
func Evaluate(in Input, opts Options) Result {
	nav := in.Nav.Until(in.AsOf)
	raw := domain.RawMetricRecord{
		FundID:      in.FundID,
		Category:    in.Category,
		AsOf:        in.AsOf,
		BenchmarkID: in.BenchmarkID,
	}
	raw.NavStats.Points = len(nav)
	if first, ok := nav.First(); ok {
		raw.NavStats.FirstDate = first.Date
	}
	if last, ok := nav.Last(); ok {
		raw.NavStats.LastDate = last.Date
	}

	if len(nav) < opts.MinDailyPoints || len(nav) == 0 {
		raw.EligibilityStatus = domain.Excluded
		raw.ExclusionReason = domain.ReasonInsufficientNavHistory
		return Result{Raw: raw}
	}
	raw.EligibilityStatus = domain.Eligible

	monthly, err := timeseries.Monthly(nav)
	if err != nil {
		raw.EligibilityStatus = domain.Excluded
		raw.ExclusionReason = domain.ReasonInsufficientNavHistory
		return Result{Raw: raw}
	}

	var benchMonthly timeseries.Series
	switch {
	case in.BenchmarkID == "":
		raw.Degrade(domain.GroupBenchmark, domain.ReasonBenchmarkUnmapped)
	default:
		bench := in.Benchmark.Until(in.AsOf)
		if m, err := timeseries.Monthly(bench); err == nil {
			benchMonthly = m
		} else {
			raw.Degrade(domain.GroupBenchmark, domain.ReasonBenchmarkMissing)
		}
	}

	raw.Performance = ComputePerformance(nav)
	raw.Risk = ComputeRisk(nav, monthly)

	ra, reason := ComputeRiskAdjusted(monthly, benchMonthly, opts.RiskAdjusted)
	raw.RiskAdjusted = ra
	if reason != "" {
		raw.Degrade(domain.GroupRiskAdjusted, reason)
	}

	cons := ComputeConsistency(monthly, benchMonthly, opts.Consistency)
	if cons == nil {
		raw.Degrade(domain.GroupConsistency, domain.ReasonInsufficientWindow)
		return Result{Raw: raw}
	}
	if benchMonthly != nil && cons.RollingAlpha3Y == nil && cons.RollingAlpha5Y == nil {
		raw.Degrade(domain.GroupAlpha, domain.ReasonInsufficientWindow)
	}
	cons.FundID = in.FundID
	cons.Category = in.Category
	cons.AsOf = in.AsOf
	return Result{Raw: raw, Consistency: cons}
}
