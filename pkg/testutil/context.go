package testutil

import (
	"context"
	"time"

	"riskcast/pkg/requestcontext"
)

// ContextAt returns a background context pinned to ref, the way a decision
// attempt sees it.
func ContextAt(ref time.Time) context.Context {
	ctx := requestcontext.WithTime(context.Background(), ref)
	return requestcontext.WithRequestID(ctx, "req-test")
}
