package decision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"riskcast/internal/decision/metrics"
	"riskcast/internal/domain"
	"riskcast/internal/reasoning"
	"riskcast/internal/uncertainty"
	"riskcast/pkg/platform/sentinel"
	"riskcast/pkg/testutil"
)

type ComposerSuite struct {
	suite.Suite
	metrics  *metrics.Metrics
	composer *Composer
	ctx      context.Context
}

func (s *ComposerSuite) SetupTest() {
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.composer = NewComposer(
		WithMetrics(s.metrics),
		WithEngine(uncertainty.NewEngine(uncertainty.WithSeed(11))),
	)
	s.ctx = testutil.ContextAt(testutil.ReferenceTime)
}

func (s *ComposerSuite) inputs(trace *reasoning.Trace) Inputs {
	sig, obs, cc := testutil.RedSeaSignal(), testutil.RedSeaReality(), testutil.RedSeaCustomer()
	return Inputs{
		Signal:        sig,
		Reality:       obs,
		Context:       cc,
		Match:         s.composer.Match(sig, obs, cc),
		Trace:         trace,
		ReferenceTime: testutil.ReferenceTime,
	}
}

func (s *ComposerSuite) trace() *reasoning.Trace {
	tr, err := reasoning.New().Reason(s.ctx, reasoning.Sources{
		Signal:        testutil.RedSeaSignal(),
		Reality:       testutil.RedSeaReality(),
		Context:       testutil.RedSeaCustomer(),
		ReferenceTime: testutil.ReferenceTime,
	})
	s.Require().NoError(err)
	return tr
}

func (s *ComposerSuite) TestComposeAnswersAllSevenQuestions() {
	tr := s.trace()
	d, err := s.composer.Compose(s.ctx, s.inputs(tr))
	s.Require().NoError(err)
	s.Require().NotNil(d)

	s.Equal("cust-acme", d.CustomerID)
	s.Equal(tr.TraceID, d.TraceID)
	s.Equal(testutil.ReferenceTime.Add(DefaultTTL), d.ExpiresAt)

	s.Equal([]string{"shp-a", "shp-b"}, d.Q1What.AffectedShipments)
	s.Contains(d.Q1What.Summary, "red_sea")

	s.Equal(tr.Temporal.DecisionDeadline, d.Q2When.DecisionDeadline)
	s.Equal(UrgencyHours, d.Q2When.Urgency)

	s.Equal(SeverityHigh, d.Q3Severity.Severity)
	s.InDelta(52_221, d.Q3Severity.TotalCostUSD, 1_000)
	s.Equal(2, d.Q3Severity.ShipmentsAffected)
	s.LessOrEqual(d.Q3Severity.CostCI90.Low, d.Q3Severity.TotalCostUSD)
	s.GreaterOrEqual(d.Q3Severity.CostCI90.High, d.Q3Severity.TotalCostUSD)

	s.Len(d.Q4Why.CausalChain, len(tr.Causal.Chain))
	s.NotEmpty(d.Q4Why.Evidence)

	s.Equal(domain.ActionReroute, d.Q5Action.Primary.Type)
	s.Len(d.Q5Action.Alternatives, len(domain.ActionTypes)-1)

	s.InDelta((0.925+tr.Confidence())/2, d.Q6Confidence.Score, 1e-4)
	s.Equal("high", d.Q6Confidence.Level)

	s.Equal(d.Q3Severity.TotalCostUSD, d.Q7Inaction.NowUSD)
	s.Less(d.Q7Inaction.NowUSD, d.Q7Inaction.In6hUSD)
	s.Less(d.Q7Inaction.In6hUSD, d.Q7Inaction.In24USD)
	s.Less(d.Q7Inaction.In24USD, d.Q7Inaction.In48USD)

	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.DecisionOutcome.WithLabelValues("HIGH", "REROUTE")))
}

func (s *ComposerSuite) TestComposeWithoutTrace() {
	d, err := s.composer.Compose(s.ctx, s.inputs(nil))
	s.Require().NoError(err)
	s.Empty(d.TraceID)
	s.Equal(0.925, d.Q6Confidence.Score)
	s.Equal(d.Q2When.PointOfNoReturn, d.Q2When.DecisionDeadline)
}

func (s *ComposerSuite) TestNoExposureIsNotAnError() {
	sig, obs, cc := testutil.RedSeaSignal(), testutil.RedSeaReality(), testutil.PanamaOnlyCustomer()
	d, err := s.composer.Compose(s.ctx, Inputs{
		Signal:        sig,
		Reality:       obs,
		Context:       cc,
		Match:         s.composer.Match(sig, obs, cc),
		ReferenceTime: testutil.ReferenceTime,
	})
	s.NoError(err)
	s.Nil(d)
}

func (s *ComposerSuite) TestDecisionIDIsDeterministic() {
	a, err := s.composer.Compose(s.ctx, s.inputs(nil))
	s.Require().NoError(err)
	b, err := NewComposer().Compose(s.ctx, s.inputs(nil))
	s.Require().NoError(err)

	s.Equal(a.DecisionID, b.DecisionID)
	s.Len(a.DecisionID, len("dec_")+32)
	s.NotEqual(a.DecisionID, DecisionID("sig-redsea-001", "cust-acme", domain.ActionInsure, testutil.ReferenceTime))
}

func (s *ComposerSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.composer.Compose(ctx, s.inputs(nil))
	s.ErrorIs(err, context.Canceled)
}

func (s *ComposerSuite) TestLifecycle() {
	d, err := s.composer.Compose(s.ctx, s.inputs(nil))
	s.Require().NoError(err)

	s.Run("expiry is inclusive of the boundary", func() {
		s.False(d.IsExpired(d.ExpiresAt.Add(-time.Nanosecond)))
		s.True(d.IsExpired(d.ExpiresAt))
	})

	s.Run("acknowledged once", func() {
		s.Require().NoError(d.Acknowledge("ops@acme", testutil.ReferenceTime.Add(time.Hour)))
		err := d.Acknowledge("ops@acme", testutil.ReferenceTime.Add(2*time.Hour))
		s.True(errors.Is(err, sentinel.ErrConflict))
		s.Equal(testutil.ReferenceTime.Add(time.Hour), d.Acknowledgement.At)
	})

	s.Run("feedback replaces", func() {
		d.RecordFeedback(Feedback{ActionTaken: domain.ActionInsure})
		d.RecordFeedback(Feedback{ActionTaken: domain.ActionReroute, Helpful: true})
		s.Equal(domain.ActionReroute, d.Feedback.ActionTaken)
	})
}

func TestComposerSuite(t *testing.T) {
	suite.Run(t, new(ComposerSuite))
}
