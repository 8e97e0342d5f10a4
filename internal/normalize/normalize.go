package normalize

import (
	"errors"
	"math"
	"sort"
	"time"

	"fundscore/internal/domain"
)

// ErrUniverseTooSmall is returned when fewer peers than the floor carry data.
var ErrUniverseTooSmall = errors.New("normalize: peer universe too small")

// DefaultMinPeers is the minimum peer count for any cross-sectional score.
const DefaultMinPeers = 3

// Input is one fund's upstream output for a category.
type Input struct {
	FundID      string
	Raw         *domain.RawMetricRecord
	Consistency *domain.ConsistencyRecord
	Attributes  *domain.PortfolioAttributes
}

// Options configure a normalisation pass.
type Options struct {
	MinPeers int
	Metrics  []MetricSpec
	Now      func() time.Time
}

// Result is the normaliser output for a category.
type Result struct {
	Records      []domain.NormalizedScoreRecord
	UniverseSize int
	// Suppressed maps "bucket.metric" to the reason it was dropped category-wide.
	Suppressed map[string]domain.Reason
}

// SuppressedKeys returns the suppressed metric keys in sorted order.
func (r Result) SuppressedKeys() []string {
	keys := make([]string, 0, len(r.Suppressed))
	for k := range r.Suppressed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Normalize scores every metric of every collected fund against its category
// peers. Funds with no populated metric are left out of the universe.
func Normalize(category string, asOf time.Time, inputs []Input, opts Options) (Result, error) {
	if opts.MinPeers <= 0 {
		opts.MinPeers = DefaultMinPeers
	}
	if opts.Metrics == nil {
		opts.Metrics = DefaultMetrics()
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	// values[m][i] is metric m for collected fund i
	collected := make([]Input, 0, len(inputs))
	var values [][]*float64
	for _, in := range inputs {
		row := make([]*float64, len(opts.Metrics))
		populated := false
		for m, spec := range opts.Metrics {
			if v := spec.Extract(in); v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) {
				row[m] = v
				populated = true
			}
		}
		if !populated {
			continue
		}
		collected = append(collected, in)
		values = append(values, row)
	}

	if len(collected) < opts.MinPeers {
		return Result{UniverseSize: len(collected)}, ErrUniverseTooSmall
	}

	normalizedAt := now().UTC()
	res := Result{
		Records:      make([]domain.NormalizedScoreRecord, len(collected)),
		UniverseSize: len(collected),
		Suppressed:   make(map[string]domain.Reason),
	}
	for i, in := range collected {
		res.Records[i] = domain.NormalizedScoreRecord{
			FundID:       in.FundID,
			Category:     category,
			AsOf:         asOf,
			Scores:       make(map[string]map[string]*float64),
			UniverseSize: len(collected),
			NormalizedAt: normalizedAt,
		}
	}

	for m, spec := range opts.Metrics {
		var idx []int
		var vals []float64
		for i := range collected {
			if v := values[i][m]; v != nil {
				idx = append(idx, i)
				vals = append(vals, *v)
			}
		}

		var scores []float64
		if len(vals) >= opts.MinPeers {
			scores = scoreMetric(spec, vals)
		} else {
			res.Suppressed[spec.Key()] = domain.ReasonUniverseTooSmall
		}

		for i := range res.Records {
			bucket := res.Records[i].Scores[spec.Bucket]
			if bucket == nil {
				bucket = make(map[string]*float64)
				res.Records[i].Scores[spec.Bucket] = bucket
			}
			bucket[spec.Name] = nil
		}
		for k, i := range idx {
			if scores == nil {
				break
			}
			s := scores[k]
			res.Records[i].Scores[spec.Bucket][spec.Name] = &s
		}
	}

	return res, nil
}

func scoreMetric(spec MetricSpec, vals []float64) []float64 {
	switch spec.Mode {
	case ModeBand:
		q := QuartilesOf(vals)
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = SymmetricBand(v, q)
		}
		return out
	case ModePenalty:
		q := QuartilesOf(vals)
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = OneSidedPenalty(v, q)
		}
		return out
	case ModePassThrough:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = math.Max(0, math.Min(100, v))
		}
		return out
	default:
		ranked := vals
		if spec.Direction == LowerIsBetter {
			ranked = make([]float64, len(vals))
			for i, v := range vals {
				ranked[i] = -v
			}
		}
		return PercentileScores(ranked)
	}
}
