package reasoning

import (
	"time"

	"riskcast/pkg/testutil"
)

var refTime = testutil.ReferenceTime

// redSeaSources is a confirmed Red Sea disruption hitting two shipments.
func redSeaSources() Sources {
	return Sources{
		Signal:        testutil.RedSeaSignal(),
		Reality:       testutil.RedSeaReality(),
		Context:       testutil.RedSeaCustomer(),
		ReferenceTime: refTime,
	}
}

// sparseSources is a weak, stale, unevidenced signal.
func sparseSources() Sources {
	src := redSeaSources()
	src.Signal.Confidence = 0.10
	src.Signal.Evidence = nil
	src.Reality.ObservedAt = refTime.Add(-2 * time.Hour)
	return src
}
