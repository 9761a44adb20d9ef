package uncertainty

import (
	"math"
	"slices"
)

// Interval is a closed range [Low, High].
type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether o lies entirely inside i.
func (i Interval) Contains(o Interval) bool {
	return i.Low <= o.Low && o.High <= i.High
}

// Width is High minus Low.
func (i Interval) Width() float64 {
	return i.High - i.Low
}

// UncertainValue is a number carrying its full distribution and the summary
// statistics derived from it. Values are immutable once built.
type UncertainValue struct {
	PointEstimate float64  `json:"point_estimate"`
	Distribution  Kind     `json:"distribution"`
	Std           float64  `json:"std"`
	CI80          Interval `json:"ci_80"`
	CI90          Interval `json:"ci_90"`
	CI95          Interval `json:"ci_95"`
	CI99          Interval `json:"ci_99"`
	VaR95         float64  `json:"var_95"`
	CVaR95        float64  `json:"cvar_95"`

	dist    Distribution
	samples []float64 // sorted ascending
}

// Dist returns the distribution the value was built from.
func (v UncertainValue) Dist() Distribution {
	return v.dist
}

// Samples returns a copy of the sorted samples.
func (v UncertainValue) Samples() []float64 {
	return slices.Clone(v.samples)
}

// Len is the number of samples backing the value.
func (v UncertainValue) Len() int {
	return len(v.samples)
}

// Mean is the sample mean.
func (v UncertainValue) Mean() float64 {
	return mean(v.samples)
}

// CI returns the central interval holding level of the probability mass.
// Levels outside (0,1) are clamped.
func (v UncertainValue) CI(level float64) Interval {
	level = math.Min(math.Max(level, 0), 1)
	tail := (1 - level) / 2
	return Interval{Low: quantile(v.samples, tail), High: quantile(v.samples, 1-tail)}
}

// Quantile returns the p-th quantile of the samples.
func (v UncertainValue) Quantile(p float64) float64 {
	return quantile(v.samples, p)
}

// IsZero reports whether the value was never built.
func (v UncertainValue) IsZero() bool {
	return v.dist == nil && len(v.samples) == 0
}

func newValue(d Distribution, samples []float64) UncertainValue {
	slices.Sort(samples)
	v := UncertainValue{
		PointEstimate: d.Mean(),
		Distribution:  d.Kind(),
		Std:           stddev(samples),
		dist:          d,
		samples:       samples,
	}
	v.CI80 = v.CI(0.80)
	v.CI90 = v.CI(0.90)
	v.CI95 = v.CI(0.95)
	v.CI99 = v.CI(0.99)
	v.VaR95 = quantile(samples, 0.95)
	v.CVaR95 = tailMean(samples, 0.95)
	return v
}

// quantile interpolates linearly between order statistics. It is monotone in
// p, which keeps the confidence intervals nested.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case p <= 0:
		return sorted[0]
	case p >= 1:
		return sorted[n-1]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo+1 >= n {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// tailMean is the mean of the samples above the p-th fraction.
func tailMean(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	k := max(1, n-int(math.Floor(p*float64(n))))
	return mean(sorted[n-k:])
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
