package decision

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"riskcast/internal/domain"
	"riskcast/pkg/testutil"
)

func TestInactionCostNeverDecreases(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("cost now <= 6h <= 24h <= 48h", prop.ForAll(
		func(total, rateIncrease float64) bool {
			got := NewTradeOffAnalyzer().Analyze(
				TotalImpact{TotalCostUSD: total},
				ActionSet{Primary: Action{Type: domain.ActionMonitor}},
				domain.Reality{RateIncreasePct: rateIncrease},
				nil,
				testutil.ReferenceTime,
			)
			return got.CostAt(0) <= got.CostAt(6) &&
				got.CostAt(6) <= got.CostAt(24) &&
				got.CostAt(24) <= got.CostAt(48)
		},
		gen.Float64Range(0, 5_000_000),
		gen.Float64Range(0, 2),
	))

	properties.Property("severity is monotone in cost", prop.ForAll(
		func(a, b float64) bool {
			if a > b {
				a, b = b, a
			}
			return severityRank[SeverityFor(a)] <= severityRank[SeverityFor(b)]
		},
		gen.Float64Range(0, 1_000_000),
		gen.Float64Range(0, 1_000_000),
	))

	properties.TestingRun(t)
}

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}
