package analytics

import (
	"math"
	"sort"

	"fundscore/internal/domain"
	"fundscore/internal/timeseries"
)

const (
	maxObservations3Y = 120
	maxObservations5Y = 96
)

// WindowSpec is a rolling window length with its minimum observation count.
type WindowSpec struct {
	Months int
	MinObs int
}

// ConsistencyOptions configure the rolling-window aggregator.
type ConsistencyOptions struct {
	ThreeYear WindowSpec
	FiveYear  WindowSpec
}

// DefaultConsistencyOptions returns the 36/60 month windows with floors 20/2.
func DefaultConsistencyOptions() ConsistencyOptions {
	return ConsistencyOptions{
		ThreeYear: WindowSpec{Months: 36, MinObs: 20},
		FiveYear:  WindowSpec{Months: 60, MinObs: 2},
	}
}

// RollingCAGR annualises growth over every `months`-long window ending on a
// month in the series whose start month is also present.
func RollingCAGR(monthly timeseries.Series, months int) []float64 {
	if months <= 0 {
		return nil
	}
	byMonth := timeseries.ByMonth(monthly)
	out := make([]float64, 0, len(monthly))
	for _, p := range monthly {
		start, ok := byMonth[timeseries.KeyOf(p.Date)-timeseries.MonthKey(months)]
		if !ok || start <= 0 || p.Value <= 0 {
			continue
		}
		out = append(out, annualise(p.Value/start, months))
	}
	return out
}

// RollingAlpha is the fund's rolling CAGR minus the benchmark's over windows
// where both series have the start and end months.
func RollingAlpha(fund, bench timeseries.Series, months int) []float64 {
	if months <= 0 || len(bench) == 0 {
		return nil
	}
	fundByMonth := timeseries.ByMonth(fund)
	benchByMonth := timeseries.ByMonth(bench)
	out := make([]float64, 0, len(fund))
	for _, p := range fund {
		end := timeseries.KeyOf(p.Date)
		start := end - timeseries.MonthKey(months)
		fs, ok1 := fundByMonth[start]
		bs, ok2 := benchByMonth[start]
		be, ok3 := benchByMonth[end]
		if !ok1 || !ok2 || !ok3 || fs <= 0 || bs <= 0 || be <= 0 || p.Value <= 0 {
			continue
		}
		out = append(out, annualise(p.Value/fs, months)-annualise(be/bs, months))
	}
	return out
}

func annualise(growth float64, months int) float64 {
	return math.Pow(growth, 12/float64(months)) - 1
}

// Summarize reduces window values to median/P25/P75/count, or nil when fewer
// than minObs values exist.
func Summarize(values []float64, minObs int) *domain.WindowSummary {
	if len(values) == 0 || len(values) < minObs {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return &domain.WindowSummary{
		Median:       QuantileSorted(sorted, 0.5),
		P25:          QuantileSorted(sorted, 0.25),
		P75:          QuantileSorted(sorted, 0.75),
		Observations: len(sorted),
	}
}

// Confidence weights 3y and 5y observation counts against their theoretical
// maxima and returns a 0..100 score.
func Confidence(obs3, obs5 int) float64 {
	c := 0.6*float64(obs3)/maxObservations3Y + 0.4*float64(obs5)/maxObservations5Y
	return math.Min(1, c) * 100
}

// ComputeConsistency builds the rolling summary for a fund. bench may be nil.
// Returns nil when neither absolute window meets its floor.
func ComputeConsistency(fund, bench timeseries.Series, opts ConsistencyOptions) *domain.ConsistencyRecord {
	rec := &domain.ConsistencyRecord{
		Rolling3Y: Summarize(RollingCAGR(fund, opts.ThreeYear.Months), opts.ThreeYear.MinObs),
		Rolling5Y: Summarize(RollingCAGR(fund, opts.FiveYear.Months), opts.FiveYear.MinObs),
	}
	if rec.Rolling3Y == nil && rec.Rolling5Y == nil {
		return nil
	}
	if bench != nil {
		rec.RollingAlpha3Y = Summarize(RollingAlpha(fund, bench, opts.ThreeYear.Months), opts.ThreeYear.MinObs)
		rec.RollingAlpha5Y = Summarize(RollingAlpha(fund, bench, opts.FiveYear.Months), opts.FiveYear.MinObs)
	}

	var obs3, obs5 int
	if rec.Rolling3Y != nil {
		obs3 = rec.Rolling3Y.Observations
	}
	if rec.Rolling5Y != nil {
		obs5 = rec.Rolling5Y.Observations
	}
	rec.Confidence = Confidence(obs3, obs5)
	return rec
}
