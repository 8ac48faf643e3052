package apicaller

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/AvaProtocol/ap-oracle/model"
	"github.com/AvaProtocol/ap-oracle/pkg/logger"
)

// Process performs the API call of every pending call concurrently. A
// successful call gets its response value; a failed one is Errored with the
// code of its failure.
func Process(ctx context.Context, caller Caller, calls []model.ApiCall, concurrency int, l logger.Logger) []model.ApiCall {
	l = logger.EnsureLogger(l)
	out := make([]model.ApiCall, len(calls))
	copy(out, calls)

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i := range out {
		if !out[i].IsPending() {
			continue
		}
		g.Go(func() error {
			call := &out[i]
			value, err := caller.Call(gctx, *call)
			if err != nil {
				code := CodeOf(err)
				l.Warn("api call failed", "request_id", call.ID.Hex(), "error_code", code.String(), "err", err)
				call.Fail(code)
				call.ErrorMessage = err.Error()
				return nil
			}
			call.ResponseValue = &value
			return nil
		})
	}
	_ = g.Wait()

	return out
}
