package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ScoringRun is the audit row written alongside each category replacement.
type ScoringRun struct {
	RunID     string
	Category  string
	AsOf      time.Time
	Summary   json.RawMessage
	Status    string
	Error     *string
	CreatedAt time.Time
}

// RankingRow is a composite score joined with the fund's scheme name.
type RankingRow struct {
	FundID       string
	FundName     string
	Category     string
	AsOf         time.Time
	QuantScore   *decimal.Decimal
	Consistency  *decimal.Decimal
	RiskAdjusted *decimal.Decimal
	Volatility   *decimal.Decimal
	Performance  *decimal.Decimal
	Rank         *int
	UniverseSize int
}

// numericArg renders an optional float as a NUMERIC literal for pgx.
func numericArg(v *float64, places int32) interface{} {
	if v == nil {
		return nil
	}
	return decimal.NewFromFloat(*v).StringFixed(places)
}

// parseNumeric turns an optional NUMERIC text column into a float.
func parseNumeric(s *string) (*float64, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("parse numeric %q: %w", *s, err)
	}
	v := d.InexactFloat64()
	return &v, nil
}

// parseDecimal is parseNumeric without the float conversion.
func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("parse numeric %q: %w", *s, err)
	}
	return &d, nil
}

func jsonArg(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return b, nil
}

// clampLimit turns a negative row limit into zero.
func clampLimit(limit int) int {
	if limit < 0 {
		return 0
	}
	return limit
}
