package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundscore/internal/domain"
)

func TestNormalizeFundName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"HDFC Top 100 Fund - Direct Plan - Growth Option", "hdfc top 100"},
		{"ICICI Prudential Bluechip Fund-IDCW", "icici prudential bluechip"},
		{"  Axis   Large Cap (Regular) ", "axis large cap"},
		{"Planet Growthful Equity", "planet growthful equity"},
		{"", ""},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeFundName(tc.in))
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	r := DefaultRegistry()

	p, err := r.Lookup("large cap")
	require.NoError(t, err)
	assert.Equal(t, "Large Cap", p.Name)
	assert.Equal(t, "NIFTY 100 TRI", p.DefaultBenchmark)

	p, err = r.Lookup("large-mid-cap")
	require.NoError(t, err)
	assert.Equal(t, "Large & Mid Cap", p.Name)

	_, err = r.Lookup("Overnight")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestPolicyAdmits(t *testing.T) {
	p, err := DefaultRegistry().Lookup("Large Cap")
	require.NoError(t, err)

	assert.True(t, p.Admits(domain.Fund{ID: "1", Name: "Alpha Large Cap Fund - Direct Plan - Growth"}))
	assert.False(t, p.Admits(domain.Fund{ID: "2", Name: "Alpha Large Cap Fund - Regular Plan - Growth"}))
	assert.False(t, p.Admits(domain.Fund{ID: "3", Name: "Alpha Large Cap Fund - Direct Plan - IDCW"}))
	assert.True(t, p.Admits(domain.Fund{ID: "4"}))

	kept := p.Filter([]domain.Fund{{ID: "a", Name: "X Direct Growth"}, {ID: "b", Name: "X Regular Growth"}})
	require.Len(t, kept, 1)
	assert.Equal(t, "a", kept[0].ID)
}

func TestLoadRegistryOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policies.yaml")
	content := `categories:
  - name: Large Cap
    default_benchmark: BSE 100 TRI
    strict: true
    weights:
      consistency:
        - {source: consistency, metric: rolling_3y, weight: 30}
      risk_adjusted:
        - {source: risk_adjusted, metric: sharpe, weight: 20}
      volatility:
        - {source: risk, metric: volatility, weight: 25}
      performance:
        - {source: performance, metric: cagr_3y, weight: 25}
  - name: Sectoral Banking
    default_benchmark: NIFTY Bank TRI
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	r, err := LoadRegistry(path)
	require.NoError(t, err)

	p, err := r.Lookup("Large Cap")
	require.NoError(t, err)
	assert.True(t, p.Strict)
	assert.Equal(t, "BSE 100 TRI", p.DefaultBenchmark)
	assert.InDelta(t, 100, p.EffectiveWeights().Total(), 1e-9)

	p, err = r.Lookup("sectoral-banking")
	require.NoError(t, err)
	assert.Equal(t, "NIFTY Bank TRI", p.DefaultBenchmark)
	assert.InDelta(t, 100, p.EffectiveWeights().Total(), 1e-9)
}

func TestLoadRegistryOverlayKeepsUnsetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	content := `categories:
  - name: large cap
    strict: true
  - name: Mid Cap
    slug: midcap
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	r, err := LoadRegistry(path)
	require.NoError(t, err)

	p, err := r.Lookup("Large Cap")
	require.NoError(t, err)
	assert.Equal(t, "Large Cap", p.Name)
	assert.True(t, p.Strict)
	assert.Equal(t, "NIFTY 100 TRI", p.DefaultBenchmark)
	assert.Equal(t, defaultInclude, p.IncludePattern)
	assert.Equal(t, defaultExclude, p.ExcludePattern)
	assert.False(t, p.Admits(domain.Fund{ID: "r", Name: "Alpha Large Cap Fund - Regular Plan - IDCW"}))
	assert.True(t, p.Admits(domain.Fund{ID: "d", Name: "Alpha Large Cap Fund - Direct Plan - Growth"}))

	p, err = r.Lookup("midcap")
	require.NoError(t, err)
	assert.Equal(t, "NIFTY Midcap 150 TRI", p.DefaultBenchmark)
	_, err = r.Lookup("mid-cap")
	assert.ErrorIs(t, err, ErrUnknownCategory, "stale slug must not resolve")

	base, err := DefaultRegistry().Lookup("Large Cap")
	require.NoError(t, err)
	assert.False(t, base.Strict, "overlay must not leak into fresh registries")
}

func TestLoadRegistryRejectsBadWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - name: Odd\n    weights:\n      consistency: []\n"), 0o600))

	_, err := LoadRegistry(path)
	assert.Error(t, err)
}

type stubMapping map[string]string

func (s stubMapping) BenchmarkMapping(_ context.Context, fundID string) (string, bool, error) {
	if fundID == "boom" {
		return "", false, errors.New("mapping store down")
	}
	b, ok := s[fundID]
	return b, ok, nil
}

func TestBenchmarkResolverPrecedence(t *testing.T) {
	overrides := BenchmarkOverrides{
		Version: "2025-03",
		ByFund:  map[string]string{"F1": "BENCH-FUND"},
		ByName:  map[string]string{"Quant Active Fund - Direct Growth": "BENCH-NAME"},
	}
	resolver := NewBenchmarkResolver(stubMapping{"F3": "BENCH-MAP"}, overrides)
	large, _ := DefaultRegistry().Lookup("Large Cap")
	custom, err := NewRegistry(CategoryPolicy{Name: "Thematic"})
	require.NoError(t, err)
	thematic, _ := custom.Lookup("Thematic")
	ctx := context.Background()

	b, origin, err := resolver.Resolve(ctx, domain.Fund{ID: "F1", Name: "Quant Active Fund"}, large)
	require.NoError(t, err)
	assert.Equal(t, "BENCH-FUND", b)
	assert.Equal(t, OriginFundOverride, origin)

	b, origin, _ = resolver.Resolve(ctx, domain.Fund{ID: "F2", Name: "Quant Active Fund Regular Plan"}, large)
	assert.Equal(t, "BENCH-NAME", b)
	assert.Equal(t, OriginNameOverride, origin)

	b, origin, _ = resolver.Resolve(ctx, domain.Fund{ID: "F3"}, large)
	assert.Equal(t, "BENCH-MAP", b)
	assert.Equal(t, OriginMapping, origin)

	b, origin, _ = resolver.Resolve(ctx, domain.Fund{ID: "F4"}, large)
	assert.Equal(t, "NIFTY 100 TRI", b)
	assert.Equal(t, OriginCategory, origin)

	b, _, err = resolver.Resolve(ctx, domain.Fund{ID: "F4"}, thematic)
	require.NoError(t, err)
	assert.Empty(t, b)

	_, _, err = resolver.Resolve(ctx, domain.Fund{ID: "boom"}, large)
	assert.Error(t, err)
	assert.Equal(t, "2025-03", resolver.Version())
}
