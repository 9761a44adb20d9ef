package uncertainty

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
)

// Variables holds one joint draw of every named input.
type Variables map[string]float64

// Formula evaluates one joint draw. Returning NaN drops the draw.
type Formula func(Variables) float64

// Calculator composes domain formulas over uncertain inputs by sampling all
// inputs jointly.
type Calculator struct {
	engine *Engine
}

// NewCalculator creates a calculator backed by engine.
func NewCalculator(engine *Engine) *Calculator {
	return &Calculator{engine: engine}
}

// Compose evaluates f over joint draws of inputs and returns the empirical
// result. Sampling runs in batches and stops early if ctx is done.
func (c *Calculator) Compose(ctx context.Context, inputs map[string]UncertainValue, f Formula) (UncertainValue, error) {
	names := slices.Sorted(maps.Keys(inputs))
	for _, name := range names {
		if err := operand(inputs[name]); err != nil {
			return UncertainValue{}, fmt.Errorf("input %q: %w", name, err)
		}
	}

	r := c.engine.rng()
	n := c.engine.samples
	out := make([]float64, 0, n)
	vars := make(Variables, len(names))
	for start := 0; start < n; start += c.engine.batchSize {
		if err := ctx.Err(); err != nil {
			return UncertainValue{}, err
		}
		end := min(start+c.engine.batchSize, n)
		for range end - start {
			for _, name := range names {
				vars[name] = inputs[name].dist.Sample(r)
			}
			z := f(vars)
			if math.IsNaN(z) || math.IsInf(z, 0) {
				continue
			}
			out = append(out, z)
		}
	}
	if len(out) == 0 {
		return UncertainValue{}, ErrDegenerateInput
	}
	return newValue(Empirical{Values: out}, out), nil
}

// Exposure formula variable names.
const (
	VarCargoValue  = "cargo_value"
	VarHoldingRate = "holding_rate"
	VarDelayDays   = "delay_days"
	VarPenaltyRate = "penalty_rate"
	VarGraceDays   = "grace_days"
)

// ExposureFormula is cargo_value * holding_rate * delay + penalty_rate * max(delay - grace, 0).
func ExposureFormula(v Variables) float64 {
	delay := math.Max(v[VarDelayDays], 0)
	return v[VarCargoValue]*v[VarHoldingRate]*delay +
		v[VarPenaltyRate]*math.Max(delay-v[VarGraceDays], 0)
}

// ExposureInputs are the uncertain terms of the exposure formula.
type ExposureInputs struct {
	CargoValue  UncertainValue
	HoldingRate UncertainValue
	DelayDays   UncertainValue
	PenaltyRate UncertainValue
	GraceDays   UncertainValue
}

// Exposure composes ExposureFormula over in.
func (c *Calculator) Exposure(ctx context.Context, in ExposureInputs) (UncertainValue, error) {
	return c.Compose(ctx, map[string]UncertainValue{
		VarCargoValue:  in.CargoValue,
		VarHoldingRate: in.HoldingRate,
		VarDelayDays:   in.DelayDays,
		VarPenaltyRate: in.PenaltyRate,
		VarGraceDays:   in.GraceDays,
	}, ExposureFormula)
}
