package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map applies fn to every item with at most workers goroutines and returns
// the results in input order. The first error cancels the context handed to
// the remaining calls and is returned. workers <= 0 means one per item.
func Map[T any, R any](ctx context.Context, items []T, workers int, fn func(context.Context, T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	group, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		group.SetLimit(workers)
	}
	for i, item := range items {
		group.Go(func() error {
			r, err := fn(ctx, item)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
