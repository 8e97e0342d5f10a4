package timeseries

import (
	"errors"
	"math"
	"sort"
	"time"

	"fundscore/internal/domain"
)

// ErrNoSeries is returned when a series has no usable observations.
var ErrNoSeries = errors.New("timeseries: no observations")

// Point is a dated observation.
type Point struct {
	Date  time.Time
	Value float64
}

// Series is a date-ordered list of points with unique dates.
type Series []Point

// FromNav converts NAV points into a cleaned series.
func FromNav(points []domain.NavPoint) Series {
	out := make(Series, 0, len(points))
	for _, p := range points {
		out = append(out, Point{Date: p.Date, Value: p.NAV})
	}
	return clean(out)
}

// FromBenchmark converts benchmark points into a cleaned series.
func FromBenchmark(points []domain.BenchmarkPoint) Series {
	out := make(Series, 0, len(points))
	for _, p := range points {
		out = append(out, Point{Date: p.Date, Value: p.Value})
	}
	return clean(out)
}

// clean drops unparseable dates and non-finite values, sorts by date and
// keeps the last observation for a repeated date.
func clean(in Series) Series {
	out := make(Series, 0, len(in))
	for _, p := range in {
		if p.Date.IsZero() || math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		p.Date = dateOnly(p.Date)
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	dedup := out[:0]
	for _, p := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Date.Equal(p.Date) {
			dedup[n-1] = p
			continue
		}
		dedup = append(dedup, p)
	}
	return dedup
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Len returns the number of points.
func (s Series) Len() int { return len(s) }

// First returns the earliest point.
func (s Series) First() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[0], true
}

// Last returns the latest point.
func (s Series) Last() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}

// AtOrBefore returns the latest point dated on or before t.
func (s Series) AtOrBefore(t time.Time) (Point, bool) {
	idx := sort.Search(len(s), func(i int) bool { return s[i].Date.After(t) })
	if idx == 0 {
		return Point{}, false
	}
	return s[idx-1], true
}

// Until returns the prefix of the series dated on or before asOf.
func (s Series) Until(asOf time.Time) Series {
	if asOf.IsZero() {
		return s
	}
	idx := sort.Search(len(s), func(i int) bool { return s[i].Date.After(asOf) })
	return s[:idx]
}

// Values returns the observation values in order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// ShiftMonths moves t by n calendar months, clamping the day to the last day
// of the target month: 2025-05-31 minus 3 months is 2025-02-28.
func ShiftMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
