package domain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrMalformedInput marks collaborator data that violates the input contract.
var ErrMalformedInput = errors.New("malformed input")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateNavSeries checks NAV points for structural problems: empty ids,
// non-positive values and duplicated dates.
func ValidateNavSeries(points []NavPoint) error {
	v := validatorInstance()
	seen := make(map[string]struct{}, len(points))
	for i, p := range points {
		if err := v.Struct(p); err != nil {
			return fmt.Errorf("%w: nav point %d: %v", ErrMalformedInput, i, err)
		}
		key := p.FundID + "|" + p.Date.Format("2006-01-02")
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate nav date %s for fund %s", ErrMalformedInput, p.Date.Format("2006-01-02"), p.FundID)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// ValidateBenchmarkSeries applies the same checks to benchmark points.
func ValidateBenchmarkSeries(points []BenchmarkPoint) error {
	v := validatorInstance()
	seen := make(map[string]struct{}, len(points))
	for i, p := range points {
		if err := v.Struct(p); err != nil {
			return fmt.Errorf("%w: benchmark point %d: %v", ErrMalformedInput, i, err)
		}
		key := p.BenchmarkID + "|" + p.Date.Format("2006-01-02")
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate benchmark date %s for %s", ErrMalformedInput, p.Date.Format("2006-01-02"), p.BenchmarkID)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// ValidateUniverse rejects funds without an id and duplicate members.
func ValidateUniverse(funds []Fund) error {
	v := validatorInstance()
	seen := make(map[string]struct{}, len(funds))
	for i, f := range funds {
		if err := v.Struct(f); err != nil {
			return fmt.Errorf("%w: universe member %d: %v", ErrMalformedInput, i, err)
		}
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("%w: duplicate universe member %s", ErrMalformedInput, f.ID)
		}
		seen[f.ID] = struct{}{}
	}
	return nil
}
