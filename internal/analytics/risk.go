package analytics

import (
	"math"

	"fundscore/internal/domain"
	"fundscore/internal/timeseries"
)

// Volatility is the annualised sample standard deviation of monthly simple
// returns. Nil with fewer than two returns.
func Volatility(monthly timeseries.Series) *float64 {
	rets := timeseries.ReturnValues(timeseries.SimpleReturns(monthly))
	if len(rets) < 2 {
		return nil
	}
	return ptr(stdDev(rets) * math.Sqrt(12))
}

// MaxDrawdown is the deepest peak-to-trough decline of the daily series as a
// non-positive fraction.
func MaxDrawdown(daily timeseries.Series) *float64 {
	if len(daily) == 0 {
		return nil
	}
	peak := daily[0].Value
	worst := 0.0
	for _, p := range daily {
		if p.Value > peak {
			peak = p.Value
		}
		if peak <= 0 {
			continue
		}
		if dd := (p.Value - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return &worst
}

// ComputeRisk fills the risk block.
func ComputeRisk(daily, monthly timeseries.Series) domain.Risk {
	return domain.Risk{
		Volatility:  Volatility(monthly),
		MaxDrawdown: MaxDrawdown(daily),
	}
}
