package timeseries

import (
	"time"
)

// MonthKey identifies a calendar month as year*12 + (month-1).
type MonthKey int

// KeyOf returns the month key of t.
func KeyOf(t time.Time) MonthKey {
	return MonthKey(t.Year()*12 + int(t.Month()) - 1)
}

// Monthly resamples a daily series to month-end: for every calendar month the
// chronologically last observation is kept.
func Monthly(daily Series) (Series, error) {
	if len(daily) == 0 {
		return nil, ErrNoSeries
	}
	out := make(Series, 0, len(daily)/20+1)
	for _, p := range daily {
		if n := len(out); n > 0 && KeyOf(out[n-1].Date) == KeyOf(p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// ByMonth indexes a monthly series by month key.
func ByMonth(monthly Series) map[MonthKey]float64 {
	out := make(map[MonthKey]float64, len(monthly))
	for _, p := range monthly {
		out[KeyOf(p.Date)] = p.Value
	}
	return out
}

// MonthlyReturn is a simple return for the month ending at Key.
type MonthlyReturn struct {
	Key    MonthKey
	Return float64
}

// SimpleReturns computes month-over-month simple returns. A return is only
// produced when the previous calendar month is present.
func SimpleReturns(monthly Series) []MonthlyReturn {
	out := make([]MonthlyReturn, 0, len(monthly))
	for i := 1; i < len(monthly); i++ {
		prev, cur := monthly[i-1], monthly[i]
		if KeyOf(cur.Date)-KeyOf(prev.Date) != 1 || prev.Value <= 0 {
			continue
		}
		out = append(out, MonthlyReturn{Key: KeyOf(cur.Date), Return: cur.Value/prev.Value - 1})
	}
	return out
}

// TrailingReturns keeps the returns whose month lies within the last n months
// ending at (and including) the month of end.
func TrailingReturns(returns []MonthlyReturn, end MonthKey, n int) []MonthlyReturn {
	start := end - MonthKey(n) + 1
	out := make([]MonthlyReturn, 0, n)
	for _, r := range returns {
		if r.Key >= start && r.Key <= end {
			out = append(out, r)
		}
	}
	return out
}

// AlignReturns inner-joins two return streams on month, preserving order.
func AlignReturns(fund, bench []MonthlyReturn) (f, b []float64) {
	idx := make(map[MonthKey]float64, len(bench))
	for _, r := range bench {
		idx[r.Key] = r.Return
	}
	for _, r := range fund {
		if br, ok := idx[r.Key]; ok {
			f = append(f, r.Return)
			b = append(b, br)
		}
	}
	return f, b
}

// ReturnValues extracts the return values.
func ReturnValues(returns []MonthlyReturn) []float64 {
	out := make([]float64, len(returns))
	for i, r := range returns {
		out[i] = r.Return
	}
	return out
}
