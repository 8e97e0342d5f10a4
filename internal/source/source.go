package source

import (
	"context"

	"fundscore/internal/domain"
)

// NavSource returns a fund's NAV history ordered by date.
type NavSource interface {
	NavSeries(ctx context.Context, fundID string) ([]domain.NavPoint, error)
}

// BenchmarkSource returns a benchmark's index history ordered by date.
type BenchmarkSource interface {
	BenchmarkSeries(ctx context.Context, benchmarkID string) ([]domain.BenchmarkPoint, error)
}

// MappingSource resolves a fund's benchmark. ok is false when unmapped.
type MappingSource interface {
	BenchmarkMapping(ctx context.Context, fundID string) (benchmarkID string, ok bool, err error)
}

// UniverseSource lists the funds nominally in a category.
type UniverseSource interface {
	CategoryUniverse(ctx context.Context, category string) ([]domain.Fund, error)
}

// PortfolioSource returns holdings-level attributes, or nil when unknown.
type PortfolioSource interface {
	PortfolioAttributes(ctx context.Context, fundID string) (*domain.PortfolioAttributes, error)
}

// Provider bundles every input contract the pipeline consumes.
type Provider interface {
	NavSource
	BenchmarkSource
	MappingSource
	UniverseSource
	PortfolioSource
}

// Composite assembles a Provider from independent collaborators, e.g. HTTP
// history with database-backed mappings.
type Composite struct {
	NavSource
	BenchmarkSource
	MappingSource
	UniverseSource
	PortfolioSource
}

var _ Provider = Composite{}
