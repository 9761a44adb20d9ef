package testutil

import (
	"time"

	"riskcast/internal/domain"
)

// ReferenceTime is the fixed "now" of every scenario fixture.
var ReferenceTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// RedSeaSignal predicts a Red Sea disruption starting three days out.
func RedSeaSignal() domain.Signal {
	return domain.Signal{
		SignalID:    "sig-redsea-001",
		Title:       "Houthi attacks force carriers away from Bab el-Mandeb",
		Category:    domain.CategoryGeopolitical,
		Chokepoint:  domain.ChokepointRedSea,
		Probability: 0.78,
		Confidence:  0.85,
		Evidence: []domain.Evidence{{
			Source:      "reuters",
			SourceType:  domain.SourceNews,
			Description: "major carriers pause Red Sea transits",
			ObservedAt:  ReferenceTime.Add(-3 * time.Hour),
		}},
		DetectedAt:  ReferenceTime.Add(-6 * time.Hour),
		ImpactStart: ReferenceTime.Add(72 * time.Hour),
		ImpactEnd:   ReferenceTime.Add(30 * 24 * time.Hour),
	}
}

// RedSeaReality confirms the disruption ten minutes before ReferenceTime.
func RedSeaReality() domain.Reality {
	return domain.Reality{
		Chokepoint:        domain.ChokepointRedSea,
		Status:            domain.CorrelationConfirmed,
		ObservedAt:        ReferenceTime.Add(-10 * time.Minute),
		VesselsWaiting:    42,
		TransitDelayHours: 240,
		RateIncreasePct:   0.30,
		RerouteShare:      0.65,
		Sources:           []string{"ais", "freightos"},
	}
}

// RedSeaCustomer has two booked shipments through the Red Sea, the larger
// one with a late-delivery penalty.
func RedSeaCustomer() domain.CustomerContext {
	route := []domain.Chokepoint{domain.ChokepointMalacca, domain.ChokepointRedSea, domain.ChokepointSuez}
	return domain.CustomerContext{
		CustomerID:    "cust-acme",
		CompanyName:   "Acme Imports",
		RiskTolerance: domain.RiskModerate,
		Shipments: []domain.Shipment{
			{
				ShipmentID:    "shp-a",
				Origin:        "Shanghai",
				Destination:   "Rotterdam",
				Route:         route,
				CargoValueUSD: 150_000,
				TEU:           2,
				ETD:           ReferenceTime.Add(4 * 24 * time.Hour),
				ETA:           ReferenceTime.Add(34 * 24 * time.Hour),
				Status:        domain.ShipmentBooked,
				Carrier:       "MSC",
			},
			{
				ShipmentID:    "shp-b",
				Origin:        "Ningbo",
				Destination:   "Hamburg",
				Route:         route,
				CargoValueUSD: 500_000,
				TEU:           6,
				ETD:           ReferenceTime.Add(5 * 24 * time.Hour),
				ETA:           ReferenceTime.Add(35 * 24 * time.Hour),
				Status:        domain.ShipmentBooked,
				Carrier:       "Maersk",
				Penalty:       &domain.PenaltyTerms{PenaltyPerDayUSD: 5_000, GracePeriodDays: 3},
			},
		},
	}
}

// PanamaOnlyCustomer has no shipment through the Red Sea.
func PanamaOnlyCustomer() domain.CustomerContext {
	cc := RedSeaCustomer()
	cc.CustomerID = "cust-panama"
	for i := range cc.Shipments {
		cc.Shipments[i].Route = []domain.Chokepoint{domain.ChokepointPanama}
	}
	return cc
}
