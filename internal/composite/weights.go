package composite

import (
	"errors"
	"fmt"

	"fundscore/internal/normalize"
)

// Component is one normalised metric contributing to a composite bucket.
// Weight is in points out of 100.
type Component struct {
	Source string  `yaml:"source"`
	Metric string  `yaml:"metric"`
	Weight float64 `yaml:"weight"`
}

// Weights lists the components of each composite bucket.
type Weights struct {
	Consistency  []Component `yaml:"consistency"`
	RiskAdjusted []Component `yaml:"risk_adjusted"`
	Volatility   []Component `yaml:"volatility"`
	Performance  []Component `yaml:"performance"`
}

// DefaultWeights returns the standard 30/20/25/25 split.
func DefaultWeights() Weights {
	return Weights{
		Consistency: []Component{
			{normalize.BucketConsistency, normalize.MetricRolling3Y, 12},
			{normalize.BucketConsistency, normalize.MetricRolling5Y, 6},
			{normalize.BucketConsistency, normalize.MetricAlpha3Y, 6},
			{normalize.BucketConsistency, normalize.MetricConfidence, 3},
			{normalize.BucketConsistency, normalize.MetricAlphaIQR3Y, 3},
		},
		RiskAdjusted: []Component{
			{normalize.BucketRiskAdjusted, normalize.MetricSharpe, 8},
			{normalize.BucketRiskAdjusted, normalize.MetricSortino, 6},
			{normalize.BucketRiskAdjusted, normalize.MetricInformationRatio, 6},
		},
		Volatility: []Component{
			{normalize.BucketRisk, normalize.MetricVolatility, 10},
			{normalize.BucketRisk, normalize.MetricMaxDrawdown, 10},
			{normalize.BucketRisk, normalize.MetricBetaDeviation, 5},
		},
		Performance: []Component{
			{normalize.BucketPerformance, normalize.MetricCAGR1Y, 5},
			{normalize.BucketPerformance, normalize.MetricCAGR3Y, 10},
			{normalize.BucketPerformance, normalize.MetricCAGR5Y, 10},
		},
	}
}

type namedBucket struct {
	name       string
	components []Component
}

func (w Weights) buckets() []namedBucket {
	return []namedBucket{
		{"consistency", w.Consistency},
		{"risk_adjusted", w.RiskAdjusted},
		{"volatility", w.Volatility},
		{"performance", w.Performance},
	}
}

// Total returns the sum of all component weights.
func (w Weights) Total() float64 {
	var total float64
	for _, b := range w.buckets() {
		total += bucketWeight(b.components)
	}
	return total
}

func bucketWeight(components []Component) float64 {
	var sum float64
	for _, c := range components {
		sum += c.Weight
	}
	return sum
}

// Validate rejects empty buckets, negative weights and unnamed components.
func (w Weights) Validate() error {
	for _, b := range w.buckets() {
		if len(b.components) == 0 {
			return fmt.Errorf("weights: bucket %s has no components", b.name)
		}
		if bucketWeight(b.components) <= 0 {
			return fmt.Errorf("weights: bucket %s has zero total weight", b.name)
		}
		for _, c := range b.components {
			if c.Source == "" || c.Metric == "" {
				return errors.New("weights: component missing source or metric")
			}
			if c.Weight < 0 {
				return fmt.Errorf("weights: %s.%s has negative weight", c.Source, c.Metric)
			}
		}
	}
	return nil
}
