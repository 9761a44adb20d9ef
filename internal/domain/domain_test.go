package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ref = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func validSignal() Signal {
	return Signal{
		SignalID:    "sig-1",
		Category:    CategoryGeopolitical,
		Chokepoint:  ChokepointRedSea,
		Probability: 0.78,
		Confidence:  0.85,
		ImpactStart: ref.Add(72 * time.Hour),
	}
}

func validReality() Reality {
	return Reality{Chokepoint: ChokepointRedSea, Status: CorrelationConfirmed, ObservedAt: ref}
}

func validContext() CustomerContext {
	return CustomerContext{
		CustomerID:    "cust-1",
		RiskTolerance: RiskModerate,
		Shipments: []Shipment{{
			ShipmentID: "s1", Route: []Chokepoint{ChokepointRedSea},
			CargoValueUSD: 1000, ETD: ref, ETA: ref.Add(24 * time.Hour), Status: ShipmentBooked,
		}},
	}
}

func TestValidateInputs_Valid(t *testing.T) {
	require.NoError(t, ValidateInputs(validSignal(), validReality(), validContext()))
}

func TestValidateInputs_CollectsEveryFailure(t *testing.T) {
	sig := validSignal()
	sig.Probability = 1.2
	sig.SignalID = ""
	obs := validReality()
	obs.Status = "unknown"
	obs.Chokepoint = ChokepointPanama
	ctx := validContext()
	ctx.Shipments = append(ctx.Shipments, ctx.Shipments[0])

	err := ValidateInputs(sig, obs, ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	var ve ValidationErrors
	require.True(t, errors.As(err, &ve))
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fe.Field)
	}
	assert.Contains(t, fields, "signal.probability")
	assert.Contains(t, fields, "signal.signal_id")
	assert.Contains(t, fields, "reality.status")
	assert.Contains(t, fields, "reality.chokepoint")
	assert.Contains(t, fields, "context.shipments[1].shipment_id")
}

func TestShipment_HasDeparted(t *testing.T) {
	s := Shipment{ETD: ref.Add(time.Hour), Status: ShipmentBooked}
	assert.False(t, s.HasDeparted(ref))
	assert.True(t, s.HasDeparted(ref.Add(2*time.Hour)))
	s.Status = ShipmentInTransit
	assert.True(t, s.HasDeparted(ref))
}

func TestCustomerContext_ActiveShipments(t *testing.T) {
	ctx := validContext()
	ctx.Shipments = append(ctx.Shipments, Shipment{ShipmentID: "s2", CargoValueUSD: 500, Status: ShipmentDelivered})
	assert.Len(t, ctx.ActiveShipments(), 1)
	assert.InDelta(t, 1000, ctx.ActiveCargoValueUSD(), 1e-9)
}

func TestSignal_ImpactWindowDefaultsOpenEnd(t *testing.T) {
	start, end := validSignal().ImpactWindow()
	assert.Equal(t, 30*24*time.Hour, end.Sub(start))
}
