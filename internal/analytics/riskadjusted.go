package analytics

import (
	"math"

	"fundscore/internal/domain"
	"fundscore/internal/timeseries"
)

// RiskAdjustedOptions control the trailing window used for ratio metrics.
type RiskAdjustedOptions struct {
	LookbackMonths   int
	MinOverlapMonths int
	MinRegimeMonths  int
	RiskFreeRate     float64 // annual, as a fraction
}

// DefaultRiskAdjustedOptions mirror the production configuration defaults.
func DefaultRiskAdjustedOptions() RiskAdjustedOptions {
	return RiskAdjustedOptions{
		LookbackMonths:   36,
		MinOverlapMonths: 30,
		MinRegimeMonths:  6,
		RiskFreeRate:     0.06,
	}
}

// ComputeRiskAdjusted derives Sharpe, Sortino, beta, up/down beta and the
// information ratio over the trailing window. bench may be nil, in which case
// only the fund-only ratios are produced. A non-empty reason means the whole
// block was skipped.
func ComputeRiskAdjusted(fund, bench timeseries.Series, opts RiskAdjustedOptions) (domain.RiskAdjusted, domain.Reason) {
	last, ok := fund.Last()
	if !ok {
		return domain.RiskAdjusted{}, domain.ReasonInsufficientOverlap
	}
	rf := opts.RiskFreeRate / 12
	window := timeseries.TrailingReturns(timeseries.SimpleReturns(fund), timeseries.KeyOf(last.Date), opts.LookbackMonths)

	if bench == nil {
		f := timeseries.ReturnValues(window)
		if len(f) < opts.MinOverlapMonths {
			return domain.RiskAdjusted{Months: len(f)}, domain.ReasonInsufficientOverlap
		}
		return domain.RiskAdjusted{
			Sharpe3Y:  Sharpe(f, rf),
			Sortino3Y: Sortino(f, rf),
			Months:    len(f),
		}, ""
	}

	f, b := timeseries.AlignReturns(window, timeseries.SimpleReturns(bench))
	if len(f) < opts.MinOverlapMonths {
		return domain.RiskAdjusted{Months: len(f)}, domain.ReasonInsufficientOverlap
	}

	return domain.RiskAdjusted{
		Sharpe3Y:           Sharpe(f, rf),
		Sortino3Y:          Sortino(f, rf),
		InformationRatio3Y: InformationRatio(f, b),
		Beta3Y:             Beta(f, b),
		UpsideBeta3Y:       RegimeBeta(f, b, opts.MinRegimeMonths, true),
		DownsideBeta3Y:     RegimeBeta(f, b, opts.MinRegimeMonths, false),
		Months:             len(f),
	}, ""
}

// Sharpe is the annualised mean excess return over its standard deviation.
func Sharpe(returns []float64, rfMonthly float64) *float64 {
	sd := stdDev(returns)
	if sd == 0 {
		return nil
	}
	return ptr((mean(returns) - rfMonthly) / sd * math.Sqrt(12))
}

// Sortino divides the mean excess return by the downside deviation, where the
// downside deviation averages squared shortfalls over every month in the window.
func Sortino(returns []float64, rfMonthly float64) *float64 {
	dd := DownsideDeviation(returns, rfMonthly)
	if dd == 0 {
		return nil
	}
	return ptr((mean(returns) - rfMonthly) / dd * math.Sqrt(12))
}

// DownsideDeviation is sqrt(mean(min(0, r - target)^2)) over all observations.
func DownsideDeviation(returns []float64, target float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		if d := r - target; d < 0 {
			sum += d * d
		}
	}
	return math.Sqrt(sum / float64(len(returns)))
}

// Beta is cov(fund, bench) / var(bench) using sample moments on both sides.
func Beta(fund, bench []float64) *float64 {
	if len(fund) < 2 || len(fund) != len(bench) {
		return nil
	}
	v := variance(bench)
	if v == 0 {
		return nil
	}
	return ptr(covariance(fund, bench) / v)
}

// RegimeBeta restricts the beta calculation to months where the benchmark
// rose (up=true) or fell (up=false).
func RegimeBeta(fund, bench []float64, minMonths int, up bool) *float64 {
	var f, b []float64
	for i := range bench {
		if (up && bench[i] > 0) || (!up && bench[i] < 0) {
			f = append(f, fund[i])
			b = append(b, bench[i])
		}
	}
	if len(b) < minMonths {
		return nil
	}
	return Beta(f, b)
}

// InformationRatio is the annualised mean active return over tracking error.
func InformationRatio(fund, bench []float64) *float64 {
	if len(fund) != len(bench) {
		return nil
	}
	active := make([]float64, len(fund))
	for i := range fund {
		active[i] = fund[i] - bench[i]
	}
	te := stdDev(active)
	if te == 0 {
		return nil
	}
	return ptr(mean(active) / te * math.Sqrt(12))
}
