package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchLimit bounds concurrent attempts in GenerateBatch.
const DefaultBatchLimit = 8

// BatchResult pairs a request's result with its error. Exactly one is set.
type BatchResult struct {
	Result *Result
	Err    error
}

// GenerateBatch runs independent attempts concurrently, at most limit at a
// time. Results are in request order. One attempt failing does not stop the
// others; cancelling ctx does.
func (s *Service) GenerateBatch(ctx context.Context, reqs []Request, limit int) []BatchResult {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	out := make([]BatchResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, req := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			res, err := s.Generate(ctx, req)
			out[i] = BatchResult{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
