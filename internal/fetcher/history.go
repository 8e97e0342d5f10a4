package fetcher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Upstream dates arrive either as DD-MM-YYYY or ISO.
var dateLayouts = []string{"02-01-2006", "2006-01-02"}

type historyResponse struct {
	Status string       `json:"status"`
	Data   []historyRow `json:"data"`
}

type historyRow struct {
	Date  string `json:"date"`
	NAV   string `json:"nav"`
	Value string `json:"value"`
}

func (r historyRow) parse(field string) (time.Time, float64, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return time.Time{}, 0, err
	}

	raw := r.Value
	if field == "nav" {
		raw = r.NAV
	}
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("parse %s %q on %s: %w", field, raw, r.Date, err)
	}
	return date, value.InexactFloat64(), nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("history api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("history api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("history api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("history api error (%d)", status)
}
