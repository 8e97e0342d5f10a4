package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNavSeries(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, ValidateNavSeries([]NavPoint{
		{FundID: "F1", Date: day, NAV: 10},
		{FundID: "F1", Date: day.AddDate(0, 0, 1), NAV: 10.5},
	}))

	err := ValidateNavSeries([]NavPoint{{FundID: "F1", Date: day, NAV: 0}})
	assert.ErrorIs(t, err, ErrMalformedInput)

	err = ValidateNavSeries([]NavPoint{{Date: day, NAV: 1}})
	assert.ErrorIs(t, err, ErrMalformedInput)

	err = ValidateNavSeries([]NavPoint{
		{FundID: "F1", Date: day, NAV: 10},
		{FundID: "F1", Date: day, NAV: 11},
	})
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestValidateUniverse(t *testing.T) {
	require.NoError(t, ValidateUniverse([]Fund{{ID: "A"}, {ID: "B"}}))
	assert.ErrorIs(t, ValidateUniverse([]Fund{{ID: "A"}, {ID: "A"}}), ErrMalformedInput)
	assert.ErrorIs(t, ValidateUniverse([]Fund{{Name: "nameless"}}), ErrMalformedInput)
}

func TestSectorHHI(t *testing.T) {
	var empty *PortfolioAttributes
	assert.Nil(t, empty.SectorHHI())

	p := &PortfolioAttributes{SectorWeights: map[string]float64{"Financials": 50, "IT": 50}}
	hhi := p.SectorHHI()
	require.NotNil(t, hhi)
	assert.InDelta(t, 0.5, *hhi, 1e-12)
}
