package app

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"fundscore/internal/policy"
)

// Policies prints the category policy registry in effect.
func (a *App) Policies(w io.Writer) error {
	registry, _, err := a.loadPolicies()
	if err != nil {
		return err
	}
	return writePolicies(w, registry.Policies())
}

func writePolicies(w io.Writer, policies []policy.CategoryPolicy) error {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Category\tSlug\tBenchmark\tStrict\tWeights\tInclude\tExclude")
	for _, p := range policies {
		weights := p.EffectiveWeights()
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Name,
			p.Slug,
			p.DefaultBenchmark,
			strconv.FormatBool(p.Strict),
			strconv.FormatFloat(weights.Total(), 'f', -1, 64),
			p.IncludePattern,
			p.ExcludePattern,
		)
	}
	return writer.Flush()
}

// BenchmarkKey prints the normalised lookup key used for name overrides.
func (a *App) BenchmarkKey(w io.Writer, names []string) {
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", policy.NormalizeFundName(name), name)
	}
}
