package composite

import (
	"sort"

	"github.com/shopspring/decimal"

	"fundscore/internal/domain"
)

// Options tune composite aggregation.
type Options struct {
	// Strict makes a bucket unavailable when any of its weighted metrics is
	// missing instead of re-weighting over the metrics present.
	Strict bool
}

// Score combines normalised scores into bucket scores and a quant score, then
// ranks the category. Bucket scores stay unrounded; only the quant score is
// rounded to two decimals. The returned slice is ordered by rank, unranked funds
// last, ties broken by fund id.
func Score(records []domain.NormalizedScoreRecord, weights Weights, opts Options) []domain.CompositeScoreRecord {
	out := make([]domain.CompositeScoreRecord, 0, len(records))
	for _, rec := range records {
		buckets := domain.BucketScores{
			Consistency:  bucketScore(rec, weights.Consistency, opts.Strict),
			RiskAdjusted: bucketScore(rec, weights.RiskAdjusted, opts.Strict),
			Volatility:   bucketScore(rec, weights.Volatility, opts.Strict),
			Performance:  bucketScore(rec, weights.Performance, opts.Strict),
		}
		out = append(out, domain.CompositeScoreRecord{
			FundID:     rec.FundID,
			Category:   rec.Category,
			AsOf:       rec.AsOf,
			Buckets:    buckets,
			QuantScore: quantScore(buckets, weights),
		})
	}
	Rank(out)
	return out
}

func bucketScore(rec domain.NormalizedScoreRecord, components []Component, strict bool) *float64 {
	var num, den float64
	for _, c := range components {
		if c.Weight == 0 {
			continue
		}
		s := rec.Score(c.Source, c.Metric)
		if s == nil {
			if strict {
				return nil
			}
			continue
		}
		num += c.Weight * *s
		den += c.Weight
	}
	if den == 0 {
		return nil
	}
	v := num / den
	return &v
}

func quantScore(b domain.BucketScores, w Weights) *float64 {
	parts := []struct {
		score  *float64
		weight float64
	}{
		{b.Consistency, bucketWeight(w.Consistency)},
		{b.RiskAdjusted, bucketWeight(w.RiskAdjusted)},
		{b.Volatility, bucketWeight(w.Volatility)},
		{b.Performance, bucketWeight(w.Performance)},
	}
	var num, den float64
	for _, p := range parts {
		if p.score == nil {
			return nil
		}
		num += p.weight * *p.score
		den += p.weight
	}
	if den == 0 {
		return nil
	}
	return round2(num / den)
}

func round2(v float64) *float64 {
	r := decimal.NewFromFloat(v).Round(2).InexactFloat64()
	return &r
}

// Rank assigns 1-based ranks by descending quant score. Equal scores share the
// lowest rank of the group; funds without a score stay unranked. The slice is
// reordered and UniverseSize set to the number of ranked funds.
func Rank(records []domain.CompositeScoreRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].QuantScore, records[j].QuantScore
		switch {
		case a == nil && b == nil:
			return records[i].FundID < records[j].FundID
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a > *b
		default:
			return records[i].FundID < records[j].FundID
		}
	})

	ranked := 0
	for i := range records {
		if records[i].QuantScore != nil {
			ranked++
		}
	}

	var prevScore float64
	var prevRank int
	for i := range records {
		records[i].UniverseSize = ranked
		records[i].Rank = nil
		if records[i].QuantScore == nil {
			continue
		}
		rank := i + 1
		if i > 0 && *records[i].QuantScore == prevScore {
			rank = prevRank
		}
		r := rank
		records[i].Rank = &r
		prevScore, prevRank = *records[i].QuantScore, rank
	}
}
