// Package batch splits a list into fixed size chunks and runs a call per
// chunk concurrently.
package batch

import (
	"context"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// MaxSize is the largest chunk sent to a contract in one call.
const MaxSize = 10

// Result is the outcome of one chunk. A failed chunk does not fail the others.
type Result[T any, R any] struct {
	Items []T
	Value R
	Err   error
}

// Run calls fn once per chunk of at most size items, with at most limit calls
// in flight, and returns the results in chunk order.
func Run[T any, R any](ctx context.Context, items []T, size, limit int, fn func(ctx context.Context, chunk []T) (R, error)) []Result[T, R] {
	if len(items) == 0 {
		return nil
	}
	if size < 1 {
		size = MaxSize
	}

	chunks := lo.Chunk(items, size)
	results := make([]Result[T, R], len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, chunk := range chunks {
		g.Go(func() error {
			value, err := fn(gctx, chunk)
			results[i] = Result[T, R]{Items: chunk, Value: value, Err: err}
			// chunk errors stay in the result so siblings keep running
			return nil
		})
	}
	_ = g.Wait()

	return results
}
