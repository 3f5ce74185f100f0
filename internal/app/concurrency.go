package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ParallelLimit runs tasks with at most limit in flight and returns their
// results in task order. A limit below one means no bound. The first failure
// cancels the context handed to the remaining tasks.
func ParallelLimit[T any](ctx context.Context, limit int, tasks ...func(context.Context) (T, error)) ([]T, error) {
	if limit < 1 {
		limit = -1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	out := make([]T, len(tasks))

	for i, task := range tasks {
		g.Go(func() error {
			v, err := task(gctx)
			if err != nil {
				return fmt.Errorf("task %d of %d: %w", i+1, len(tasks), err)
			}

			out[i] = v

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}
