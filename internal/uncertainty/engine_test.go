package uncertainty

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type EngineSuite struct {
	suite.Suite
	engine *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.engine = NewEngine(WithSeed(42))
}

func (s *EngineSuite) TestNormalSummary() {
	v := s.engine.Normal(100, 10)

	s.Equal(KindNormal, v.Distribution)
	s.Equal(MinSamples, v.Len())
	s.InDelta(100, v.PointEstimate, 1e-9)
	s.InDelta(10, v.Std, 0.5)
	s.InDelta(80.4, v.CI95.Low, 1.5)
	s.InDelta(119.6, v.CI95.High, 1.5)
	s.InDelta(116.45, v.VaR95, 1.5)
	s.InDelta(120.6, v.CVaR95, 1.5)
	s.GreaterOrEqual(v.CVaR95, v.VaR95)
}

func (s *EngineSuite) TestIntervalsNest() {
	for _, v := range []UncertainValue{
		s.engine.Normal(5, 2),
		s.engine.Triangular(7, 10, 14),
		s.engine.Uniform(-3, 3),
		s.engine.Probability(0.78, 20),
		s.engine.Point(3),
	} {
		s.Run(string(v.Distribution), func() {
			s.True(v.CI99.Contains(v.CI95))
			s.True(v.CI95.Contains(v.CI90))
			s.True(v.CI90.Contains(v.CI80))
			s.True(v.CI80.Contains(Interval{Low: v.Quantile(0.5), High: v.Quantile(0.5)}))
		})
	}
}

func (s *EngineSuite) TestTriangularStaysInBounds() {
	v := s.engine.Triangular(7, 10, 14)
	samples := v.Samples()
	s.GreaterOrEqual(samples[0], 7.0)
	s.LessOrEqual(samples[len(samples)-1], 14.0)
	s.InDelta(31.0/3, v.PointEstimate, 1e-9)
}

func (s *EngineSuite) TestBetaStaysInUnit() {
	v := s.engine.Probability(0.3, 10)
	samples := v.Samples()
	s.GreaterOrEqual(samples[0], 0.0)
	s.LessOrEqual(samples[len(samples)-1], 1.0)
	s.InDelta(0.3, v.Mean(), 0.02)
}

func (s *EngineSuite) TestAddNormalsClosedForm() {
	sum, err := s.engine.Add(s.engine.Normal(10, 3), s.engine.Normal(5, 4))
	s.Require().NoError(err)

	s.Equal(KindNormal, sum.Distribution)
	n, ok := sum.Dist().(Normal)
	s.Require().True(ok)
	s.InDelta(15, n.Mu, 1e-12)
	s.InDelta(5, n.Sigma, 1e-12)

	diff, err := s.engine.Sub(s.engine.Normal(10, 3), s.engine.Normal(5, 4))
	s.Require().NoError(err)
	s.InDelta(5, diff.PointEstimate, 1e-12)
}

func (s *EngineSuite) TestMixedArithmeticUsesMonteCarlo() {
	v, err := s.engine.Mul(s.engine.Uniform(1, 3), s.engine.Point(10))
	s.Require().NoError(err)

	s.Equal(KindEmpirical, v.Distribution)
	s.GreaterOrEqual(v.Len(), MinSamples)
	s.InDelta(20, v.PointEstimate, 0.5)

	m, err := s.engine.Max(s.engine.Uniform(0, 1), s.engine.Point(0.5))
	s.Require().NoError(err)
	s.GreaterOrEqual(m.Samples()[0], 0.5)
}

func (s *EngineSuite) TestDivDropsZeroDivisors() {
	divisor, err := s.engine.FromSamples([]float64{0, 2})
	s.Require().NoError(err)

	q, err := s.engine.Div(s.engine.Point(10), divisor)
	s.Require().NoError(err)
	s.InDelta(5, q.PointEstimate, 1e-9)
	s.Less(q.Len(), MinSamples)

	_, err = s.engine.Div(s.engine.Point(10), s.engine.Point(0))
	s.ErrorIs(err, ErrDegenerateInput)
}

func (s *EngineSuite) TestZeroValueOperandsAreRejected() {
	ops := map[string]func(a, b UncertainValue) (UncertainValue, error){
		"add": s.engine.Add,
		"sub": s.engine.Sub,
		"mul": s.engine.Mul,
		"max": s.engine.Max,
		"div": s.engine.Div,
	}
	two := s.engine.Point(2)
	for name, op := range ops {
		s.Run(name, func() {
			_, err := op(UncertainValue{}, two)
			s.ErrorIs(err, ErrDegenerateInput)
			_, err = op(two, UncertainValue{})
			s.ErrorIs(err, ErrDegenerateInput)
		})
	}
}

func (s *EngineSuite) TestScale() {
	s.Run("normals stay normal", func() {
		v, err := s.engine.Scale(s.engine.Normal(10, 2), -3)
		s.Require().NoError(err)
		s.Equal(KindNormal, v.Distribution)
		s.InDelta(-30, v.PointEstimate, 1e-12)
		s.InDelta(6, v.Dist().(Normal).Sigma, 1e-12)
	})
	s.Run("empirical values scale every sample", func() {
		v, err := s.engine.Scale(s.engine.Uniform(1, 3), 10)
		s.Require().NoError(err)
		s.Equal(KindEmpirical, v.Distribution)
		s.InDelta(20, v.PointEstimate, 0.5)
	})
	s.Run("a zero value is refused", func() {
		_, err := s.engine.Scale(UncertainValue{}, 2)
		s.ErrorIs(err, ErrDegenerateInput)
	})
}

func (s *EngineSuite) TestComposeRejectsZeroValueInput() {
	_, err := NewCalculator(s.engine).Compose(context.Background(), map[string]UncertainValue{
		"x": s.engine.Point(1),
		"y": {},
	}, func(v Variables) float64 { return v["x"] * v["y"] })
	s.ErrorIs(err, ErrDegenerateInput)
}

func (s *EngineSuite) TestFromSamplesRejectsEmpty() {
	_, err := s.engine.FromSamples([]float64{math.NaN()})
	s.ErrorIs(err, ErrDegenerateInput)
}

func (s *EngineSuite) TestInvalidDistribution() {
	_, err := s.engine.New(Triangular{Low: 5, Mode: 1, High: 9})
	s.ErrorIs(err, ErrInvalidDistribution)
	_, err = s.engine.New(Beta{Alpha: 0, Beta: 1})
	s.ErrorIs(err, ErrInvalidDistribution)
}

func TestEngine_SameSeedSameSamples(t *testing.T) {
	a := NewEngine(WithSeed(7)).Triangular(1, 2, 6)
	b := NewEngine(WithSeed(7)).Triangular(1, 2, 6)
	c := NewEngine(WithSeed(8)).Triangular(1, 2, 6)

	assert.Equal(t, a.Samples(), b.Samples())
	assert.NotEqual(t, a.Samples(), c.Samples())
}

func TestEngine_ForkIgnoresCallOrder(t *testing.T) {
	shared := NewEngine(WithSeed(7))
	first := shared.Fork("sig-1", "cust-a").Triangular(1, 2, 6)

	busy := NewEngine(WithSeed(7))
	for range 5 {
		busy.Uniform(0, 1)
	}
	again := busy.Fork("sig-1", "cust-a").Triangular(1, 2, 6)
	other := busy.Fork("sig-1", "cust-b").Triangular(1, 2, 6)

	assert.Equal(t, first.Samples(), again.Samples())
	assert.NotEqual(t, first.Samples(), other.Samples())
	assert.Equal(t, shared.SampleCount(), shared.Fork("x").SampleCount())
}

func TestEngine_SampleCountFloor(t *testing.T) {
	assert.Equal(t, MinSamples, NewEngine(WithSamples(10)).SampleCount())
	assert.Equal(t, 20_000, NewEngine(WithSamples(20_000)).SampleCount())
}

func TestCalculator_ExposureFormula(t *testing.T) {
	e := NewEngine()
	calc := NewCalculator(e)

	got, err := calc.Exposure(context.Background(), ExposureInputs{
		CargoValue:  e.Point(100_000),
		HoldingRate: e.Point(0.001),
		DelayDays:   e.Point(10),
		PenaltyRate: e.Point(1_000),
		GraceDays:   e.Point(3),
	})
	require.NoError(t, err)
	// 100000*0.001*10 + 1000*(10-3)
	assert.InDelta(t, 8_000, got.PointEstimate, 1e-6)
	assert.InDelta(t, 0, got.Std, 1e-6)
}

func TestCalculator_ExposureWithinGraceHasNoPenalty(t *testing.T) {
	e := NewEngine()
	got, err := NewCalculator(e).Exposure(context.Background(), ExposureInputs{
		CargoValue:  e.Point(50_000),
		HoldingRate: e.Point(0.002),
		DelayDays:   e.Uniform(1, 2),
		PenaltyRate: e.Point(10_000),
		GraceDays:   e.Point(3),
	})
	require.NoError(t, err)
	assert.InDelta(t, 150, got.PointEstimate, 2)
	assert.LessOrEqual(t, got.CI99.High, 200.0+1e-9)
}

func TestCalculator_ComposeHonoursCancellation(t *testing.T) {
	e := NewEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCalculator(e).Compose(ctx, map[string]UncertainValue{"x": e.Point(1)}, func(v Variables) float64 { return v["x"] })
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCalculator_ComposeAllDropped(t *testing.T) {
	e := NewEngine()
	_, err := NewCalculator(e).Compose(context.Background(), map[string]UncertainValue{"x": e.Point(1)}, func(Variables) float64 { return math.NaN() })
	assert.ErrorIs(t, err, ErrDegenerateInput)
}
