package analytics

import (
	"math"

	"fundscore/internal/domain"
	"fundscore/internal/timeseries"
)

// FixedLookbackCAGR annualises growth between the last point and the latest
// point on or before the same calendar date `years` earlier, clamped to the
// end of the month (a Feb 29 end anchors on Feb 28). Returns nil when the
// history does not reach back that far.
func FixedLookbackCAGR(s timeseries.Series, years int) *float64 {
	if years <= 0 {
		return nil
	}
	end, ok := s.Last()
	if !ok {
		return nil
	}
	start, ok := s.AtOrBefore(timeseries.ShiftMonths(end.Date, -12*years))
	if !ok || start.Value <= 0 || end.Value <= 0 {
		return nil
	}
	return ptr(math.Pow(end.Value/start.Value, 1/float64(years)) - 1)
}

// AbsoluteReturn is the non-annualised return over the trailing `months`,
// anchored with the same month-end clamping as FixedLookbackCAGR.
func AbsoluteReturn(s timeseries.Series, months int) *float64 {
	if months <= 0 {
		return nil
	}
	end, ok := s.Last()
	if !ok {
		return nil
	}
	start, ok := s.AtOrBefore(timeseries.ShiftMonths(end.Date, -months))
	if !ok || start.Value <= 0 {
		return nil
	}
	return ptr(end.Value/start.Value - 1)
}

// ComputePerformance fills the trailing return block from a daily series.
func ComputePerformance(daily timeseries.Series) domain.Performance {
	return domain.Performance{
		CAGR1Y:   FixedLookbackCAGR(daily, 1),
		CAGR3Y:   FixedLookbackCAGR(daily, 3),
		CAGR5Y:   FixedLookbackCAGR(daily, 5),
		Return3M: AbsoluteReturn(daily, 3),
		Return6M: AbsoluteReturn(daily, 6),
	}
}
