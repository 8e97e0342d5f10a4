package policy

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"fundscore/internal/domain"
	"fundscore/internal/source"
)

// BenchmarkOverrides is a versioned set of manual benchmark assignments.
// ByName keys are normalised with NormalizeFundName on load.
type BenchmarkOverrides struct {
	Version string            `yaml:"version"`
	ByFund  map[string]string `yaml:"by_fund"`
	ByName  map[string]string `yaml:"by_name"`
}

// LoadBenchmarkOverrides reads an override file. An empty path yields an
// empty override set.
func LoadBenchmarkOverrides(path string) (BenchmarkOverrides, error) {
	if path == "" {
		return BenchmarkOverrides{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return BenchmarkOverrides{}, fmt.Errorf("read benchmark overrides: %w", err)
	}
	var o BenchmarkOverrides
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return BenchmarkOverrides{}, fmt.Errorf("parse benchmark overrides: %w", err)
	}
	return o.normalized(), nil
}

func (o BenchmarkOverrides) normalized() BenchmarkOverrides {
	out := BenchmarkOverrides{Version: o.Version, ByFund: o.ByFund, ByName: make(map[string]string, len(o.ByName))}
	for name, bench := range o.ByName {
		out.ByName[NormalizeFundName(name)] = bench
	}
	return out
}

// Resolution origins.
const (
	OriginFundOverride = "fund_override"
	OriginNameOverride = "name_override"
	OriginMapping      = "mapping"
	OriginCategory     = "category_default"
)

// BenchmarkResolver picks the benchmark for a fund: explicit fund override,
// then name override, then the mapping collaborator, then the category default.
type BenchmarkResolver struct {
	mapping   source.MappingSource
	overrides BenchmarkOverrides
}

// NewBenchmarkResolver wires the mapping collaborator and overrides.
func NewBenchmarkResolver(mapping source.MappingSource, overrides BenchmarkOverrides) *BenchmarkResolver {
	return &BenchmarkResolver{mapping: mapping, overrides: overrides.normalized()}
}

// Version returns the override set version in use.
func (r *BenchmarkResolver) Version() string { return r.overrides.Version }

// Resolve returns the benchmark id and where it came from. An empty id means
// the fund is unmapped.
func (r *BenchmarkResolver) Resolve(ctx context.Context, fund domain.Fund, p *CategoryPolicy) (string, string, error) {
	if b, ok := r.overrides.ByFund[fund.ID]; ok && b != "" {
		return b, OriginFundOverride, nil
	}
	if fund.Name != "" {
		if b, ok := r.overrides.ByName[NormalizeFundName(fund.Name)]; ok && b != "" {
			return b, OriginNameOverride, nil
		}
	}
	if r.mapping != nil {
		b, ok, err := r.mapping.BenchmarkMapping(ctx, fund.ID)
		if err != nil {
			return "", "", fmt.Errorf("resolve benchmark for %s: %w", fund.ID, err)
		}
		if ok && b != "" {
			return b, OriginMapping, nil
		}
	}
	if p != nil && p.DefaultBenchmark != "" {
		return p.DefaultBenchmark, OriginCategory, nil
	}
	return "", "", nil
}
