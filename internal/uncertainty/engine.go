package uncertainty

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"sync/atomic"

	"riskcast/pkg/platform/canonical"
)

// MinSamples is the smallest sample count used for Monte Carlo propagation.
const MinSamples = 10_000

// ErrDegenerateInput is returned when an operation leaves no valid samples.
var ErrDegenerateInput = errors.New("degenerate input: no valid samples")

// Engine builds UncertainValues and propagates them through arithmetic.
// Every call draws from its own PCG stream derived from the engine seed, so a
// fresh engine replaying the same calls produces the same values. Work that
// runs concurrently takes its own engine from Fork.
type Engine struct {
	seed      uint64
	samples   int
	batchSize int
	stream    atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeed fixes the PCG seed.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.seed = seed
	}
}

// WithSamples sets the sample count. Values below MinSamples are raised.
func WithSamples(n int) Option {
	return func(e *Engine) {
		e.samples = max(n, MinSamples)
	}
}

// WithBatchSize sets how many joint draws Compose makes between context checks.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// NewEngine creates an engine with MinSamples samples and seed 1.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{seed: 1, samples: MinSamples, batchSize: 2_000}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fork returns an engine with the same settings whose streams depend on the
// seed and key parts only, not on how many calls e has already served.
func (e *Engine) Fork(parts ...string) *Engine {
	key, err := strconv.ParseUint(canonical.HashStrings(parts...)[:16], 16, 64)
	if err != nil {
		panic(err) // a hex SHA-256 prefix always parses
	}
	return &Engine{seed: e.seed ^ key, samples: e.samples, batchSize: e.batchSize}
}

// SampleCount is the number of samples drawn per value.
func (e *Engine) SampleCount() int {
	return e.samples
}

func (e *Engine) rng() *rand.Rand {
	return rand.New(rand.NewPCG(e.seed, e.stream.Add(1)))
}

// New samples d and summarises the result.
func (e *Engine) New(d Distribution) (UncertainValue, error) {
	if err := d.Validate(); err != nil {
		return UncertainValue{}, err
	}
	return newValue(d, e.Draw(d, e.samples)), nil
}

// Draw returns n raw, unsorted samples from d.
func (e *Engine) Draw(d Distribution, n int) []float64 {
	r := e.rng()
	out := make([]float64, n)
	for i := range out {
		out[i] = d.Sample(r)
	}
	return out
}

// Point builds a value with no uncertainty.
func (e *Engine) Point(x float64) UncertainValue {
	return e.must(Point{Value: x})
}

// Normal builds a normal value. A negative sigma is treated as zero.
func (e *Engine) Normal(mu, sigma float64) UncertainValue {
	return e.must(Normal{Mu: mu, Sigma: math.Max(sigma, 0)})
}

// Triangular builds a three-point estimate, reordering the bounds if needed.
func (e *Engine) Triangular(low, mode, high float64) UncertainValue {
	if low > high {
		low, high = high, low
	}
	mode = math.Min(math.Max(mode, low), high)
	return e.must(Triangular{Low: low, Mode: mode, High: high})
}

// Uniform builds a uniform value, reordering the bounds if needed.
func (e *Engine) Uniform(low, high float64) UncertainValue {
	if low > high {
		low, high = high, low
	}
	return e.must(Uniform{Low: low, High: high})
}

// Probability builds a beta-distributed probability centred on p.
func (e *Engine) Probability(p, concentration float64) UncertainValue {
	if concentration <= 0 {
		concentration = 20
	}
	return e.must(BetaFromMean(p, concentration))
}

// FromSamples wraps observed values in an empirical distribution.
func (e *Engine) FromSamples(xs []float64) (UncertainValue, error) {
	d := Empirical{Values: finite(xs)}
	if err := d.Validate(); err != nil {
		return UncertainValue{}, fmt.Errorf("%w: %w", ErrDegenerateInput, err)
	}
	samples := d.Values
	if len(samples) < e.samples {
		samples = e.Draw(d, e.samples)
	}
	return newValue(d, samples), nil
}

// must is for constructors whose parameters are already sanitised.
func (e *Engine) must(d Distribution) UncertainValue {
	v, err := e.New(d)
	if err != nil {
		panic(err)
	}
	return v
}

// Add returns a+b. Two normals combine in closed form.
func (e *Engine) Add(a, b UncertainValue) (UncertainValue, error) {
	if na, nb, ok := normals(a, b); ok {
		return e.Normal(na.Mu+nb.Mu, math.Hypot(na.Sigma, nb.Sigma)), nil
	}
	return e.combine(a, b, func(x, y float64) float64 { return x + y })
}

// Sub returns a-b. Two normals combine in closed form.
func (e *Engine) Sub(a, b UncertainValue) (UncertainValue, error) {
	if na, nb, ok := normals(a, b); ok {
		return e.Normal(na.Mu-nb.Mu, math.Hypot(na.Sigma, nb.Sigma)), nil
	}
	return e.combine(a, b, func(x, y float64) float64 { return x - y })
}

// Mul returns a*b.
func (e *Engine) Mul(a, b UncertainValue) (UncertainValue, error) {
	return e.combine(a, b, func(x, y float64) float64 { return x * y })
}

// Max returns the element-wise maximum of a and b.
func (e *Engine) Max(a, b UncertainValue) (UncertainValue, error) {
	return e.combine(a, b, math.Max)
}

// Div returns a/b. Draws where b is zero are dropped; if none survive the
// result is ErrDegenerateInput.
func (e *Engine) Div(a, b UncertainValue) (UncertainValue, error) {
	return e.combine(a, b, func(x, y float64) float64 {
		if y == 0 {
			return math.NaN()
		}
		return x / y
	})
}

// Scale multiplies v by a constant. Normals stay normal.
func (e *Engine) Scale(v UncertainValue, k float64) (UncertainValue, error) {
	if err := operand(v); err != nil {
		return UncertainValue{}, err
	}
	switch d := v.dist.(type) {
	case Normal:
		return e.Normal(d.Mu*k, d.Sigma*math.Abs(k)), nil
	case Point:
		return e.Point(d.Value * k), nil
	}
	if len(v.samples) == 0 {
		return UncertainValue{}, fmt.Errorf("%w: value carries no samples", ErrDegenerateInput)
	}
	out := make([]float64, len(v.samples))
	for i, x := range v.samples {
		out[i] = x * k
	}
	return newValue(Empirical{Values: out}, out), nil
}

// combine pairs fresh draws from both operands and applies op. NaN results
// are dropped.
func (e *Engine) combine(a, b UncertainValue, op func(x, y float64) float64) (UncertainValue, error) {
	if err := operand(a); err != nil {
		return UncertainValue{}, err
	}
	if err := operand(b); err != nil {
		return UncertainValue{}, err
	}
	r := e.rng()
	out := make([]float64, 0, e.samples)
	for range e.samples {
		z := op(a.dist.Sample(r), b.dist.Sample(r))
		if math.IsNaN(z) || math.IsInf(z, 0) {
			continue
		}
		out = append(out, z)
	}
	if len(out) == 0 {
		return UncertainValue{}, ErrDegenerateInput
	}
	return newValue(Empirical{Values: out}, out), nil
}

// operand rejects zero values and values whose distribution cannot be sampled.
func operand(v UncertainValue) error {
	if v.dist == nil {
		return fmt.Errorf("%w: value has no distribution", ErrDegenerateInput)
	}
	if err := v.dist.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrDegenerateInput, err)
	}
	return nil
}

func normals(a, b UncertainValue) (Normal, Normal, bool) {
	na, okA := a.dist.(Normal)
	nb, okB := b.dist.(Normal)
	return na, nb, okA && okB
}

func finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}
