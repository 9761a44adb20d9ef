package testutil

import (
	"context"
	"testing"
	"time"
)

// Given, When, Then and And name nested subtests so a failing decision
// scenario reads as a sentence in `go test -v` output.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}

func And(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("And "+desc, fn)
}

// Scenario runs fn as a "Given" step whose context is pinned to ref, so
// every layer that reads requestcontext.Now sees the same instant.
func Scenario(t *testing.T, desc string, ref time.Time, fn func(t *testing.T, ctx context.Context)) {
	t.Helper()
	t.Run("Given "+desc, func(t *testing.T) {
		fn(t, ContextAt(ref))
	})
}
