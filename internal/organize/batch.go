package organize

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the chunk size used when a caller does not specify
// one. It caps peak memory and connection usage on large datasets.
const DefaultBatchSize = 100

// ProcessBatches partitions items into contiguous chunks of batchSize
// (the last chunk may be shorter) and runs fn concurrently across chunks.
// Concurrency granularity is per-batch, not per-item. Results are
// reassembled in batch order, so a failing batch never corrupts the
// results of batches that completed. If any batch returns an error, the
// first error is propagated and the group context is cancelled; callers
// needing per-record isolation catch inside fn instead of returning.
func ProcessBatches[T, R any](ctx context.Context, items []T, batchSize int, fn func(ctx context.Context, batch []T) ([]R, error)) ([]R, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if len(items) == 0 {
		return nil, nil
	}

	var batches [][]T
	for i := 0; i < len(items); i += batchSize {
		end := min(i+batchSize, len(items))
		batches = append(batches, items[i:end])
	}

	results := make([][]R, len(batches))
	g, ctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := fn(ctx, batch)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var flat []R
	for _, r := range results {
		flat = append(flat, r...)
	}
	return flat, nil
}
