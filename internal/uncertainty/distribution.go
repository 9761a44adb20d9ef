package uncertainty

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// Kind names a distribution family.
type Kind string

const (
	KindNormal     Kind = "normal"
	KindBeta       Kind = "beta"
	KindLogNormal  Kind = "lognormal"
	KindUniform    Kind = "uniform"
	KindTriangular Kind = "triangular"
	KindEmpirical  Kind = "empirical"
	KindPoint      Kind = "point"
)

// ErrInvalidDistribution is returned for distributions with impossible parameters.
var ErrInvalidDistribution = errors.New("invalid distribution")

// Distribution is a univariate probability distribution that can be sampled.
type Distribution interface {
	Kind() Kind
	Mean() float64
	Sample(r *rand.Rand) float64
	Validate() error
}

// Normal is a Gaussian distribution.
type Normal struct {
	Mu    float64
	Sigma float64
}

func (d Normal) Kind() Kind                  { return KindNormal }
func (d Normal) Mean() float64               { return d.Mu }
func (d Normal) Sample(r *rand.Rand) float64 { return d.Mu + d.Sigma*r.NormFloat64() }

func (d Normal) Validate() error {
	if d.Sigma < 0 || math.IsNaN(d.Sigma) || math.IsNaN(d.Mu) {
		return fmt.Errorf("%w: normal sigma must be non-negative, got %v", ErrInvalidDistribution, d.Sigma)
	}
	return nil
}

// LogNormal is the distribution of exp(X) for X ~ Normal(Mu, Sigma).
type LogNormal struct {
	Mu    float64
	Sigma float64
}

func (d LogNormal) Kind() Kind                  { return KindLogNormal }
func (d LogNormal) Mean() float64               { return math.Exp(d.Mu + d.Sigma*d.Sigma/2) }
func (d LogNormal) Sample(r *rand.Rand) float64 { return math.Exp(d.Mu + d.Sigma*r.NormFloat64()) }

func (d LogNormal) Validate() error {
	if d.Sigma < 0 || math.IsNaN(d.Sigma) {
		return fmt.Errorf("%w: lognormal sigma must be non-negative, got %v", ErrInvalidDistribution, d.Sigma)
	}
	return nil
}

// Uniform is a continuous uniform distribution on [Low, High].
type Uniform struct {
	Low  float64
	High float64
}

func (d Uniform) Kind() Kind                  { return KindUniform }
func (d Uniform) Mean() float64               { return (d.Low + d.High) / 2 }
func (d Uniform) Sample(r *rand.Rand) float64 { return d.Low + (d.High-d.Low)*r.Float64() }

func (d Uniform) Validate() error {
	if d.High < d.Low {
		return fmt.Errorf("%w: uniform high %v below low %v", ErrInvalidDistribution, d.High, d.Low)
	}
	return nil
}

// Triangular is the three-point distribution commonly used for expert
// min/most-likely/max estimates.
type Triangular struct {
	Low  float64
	Mode float64
	High float64
}

func (d Triangular) Kind() Kind    { return KindTriangular }
func (d Triangular) Mean() float64 { return (d.Low + d.Mode + d.High) / 3 }

// Sample uses the inverse CDF.
func (d Triangular) Sample(r *rand.Rand) float64 {
	width := d.High - d.Low
	if width == 0 {
		return d.Low
	}
	u := r.Float64()
	if u < (d.Mode-d.Low)/width {
		return d.Low + math.Sqrt(u*width*(d.Mode-d.Low))
	}
	return d.High - math.Sqrt((1-u)*width*(d.High-d.Mode))
}

func (d Triangular) Validate() error {
	if d.Low > d.Mode || d.Mode > d.High {
		return fmt.Errorf("%w: triangular requires low <= mode <= high, got %v/%v/%v", ErrInvalidDistribution, d.Low, d.Mode, d.High)
	}
	return nil
}

// Beta is the beta distribution on [0,1], used for probabilities.
type Beta struct {
	Alpha float64
	Beta  float64
}

func (d Beta) Kind() Kind    { return KindBeta }
func (d Beta) Mean() float64 { return d.Alpha / (d.Alpha + d.Beta) }

func (d Beta) Sample(r *rand.Rand) float64 {
	x := gamma(r, d.Alpha)
	y := gamma(r, d.Beta)
	if x+y == 0 {
		return d.Mean()
	}
	return x / (x + y)
}

func (d Beta) Validate() error {
	if !(d.Alpha > 0) || !(d.Beta > 0) {
		return fmt.Errorf("%w: beta shape parameters must be positive, got %v/%v", ErrInvalidDistribution, d.Alpha, d.Beta)
	}
	return nil
}

// BetaFromMean builds a beta distribution with the given mean and
// concentration (alpha+beta). Means at the boundary are nudged inward.
func BetaFromMean(mean, concentration float64) Beta {
	m := math.Min(math.Max(mean, 1e-3), 1-1e-3)
	return Beta{Alpha: m * concentration, Beta: (1 - m) * concentration}
}

// gamma draws from Gamma(shape, 1) using Marsaglia and Tsang.
func gamma(r *rand.Rand, shape float64) float64 {
	if shape < 1 {
		return gamma(r, shape+1) * math.Pow(r.Float64(), 1/shape)
	}
	d := shape - 1.0/3
	c := 1 / math.Sqrt(9*d)
	for {
		x := r.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := r.Float64()
		if u < 1-0.0331*x*x*x*x || math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// Empirical resamples from observed values.
type Empirical struct {
	Values []float64
}

func (d Empirical) Kind() Kind { return KindEmpirical }

func (d Empirical) Mean() float64 {
	return mean(d.Values)
}

func (d Empirical) Sample(r *rand.Rand) float64 {
	return d.Values[r.IntN(len(d.Values))]
}

func (d Empirical) Validate() error {
	if len(d.Values) == 0 {
		return fmt.Errorf("%w: empirical distribution has no values", ErrInvalidDistribution)
	}
	return nil
}

// Point is a degenerate distribution with all mass at Value.
type Point struct {
	Value float64
}

func (d Point) Kind() Kind                { return KindPoint }
func (d Point) Mean() float64             { return d.Value }
func (d Point) Sample(*rand.Rand) float64 { return d.Value }
func (d Point) Validate() error {
	if math.IsNaN(d.Value) || math.IsInf(d.Value, 0) {
		return fmt.Errorf("%w: point value must be finite", ErrInvalidDistribution)
	}
	return nil
}
