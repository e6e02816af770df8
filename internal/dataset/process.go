package dataset

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"
)

// ProcessFunc is the callback contract between the core and bulk
// processing helpers: it takes a dataset and returns a new one.
type ProcessFunc func(*Dataset) (*Dataset, error)

// ProcessChunks splits d into row chunks of chunkRows, runs fn on each with
// at most workers chunks in flight, and concatenates the results in chunk
// order. chunkRows <= 0 processes d as one chunk; workers <= 0 means one.
//
// Every chunk result must carry the same columns as the first one.
//
// Errors:
//   - the first error returned by fn, or ctx.Err() after cancellation.
func ProcessChunks(ctx context.Context, d *Dataset, chunkRows, workers int, fn ProcessFunc) (*Dataset, error) {
	if d == nil {
		return nil, &InvalidInputError{Reason: "dataset is nil"}
	}
	if chunkRows <= 0 || chunkRows >= d.Len() {
		return fn(d)
	}
	if workers <= 0 {
		workers = 1
	}

	var chunks []*Dataset
	for lo := 0; lo < len(d.Rows); lo += chunkRows {
		hi := min(lo+chunkRows, len(d.Rows))
		chunks = append(chunks, d.withRows(d.Rows[lo:hi:hi]))
	}

	results := make([]*Dataset, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := fn(c)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := &Dataset{}
	for i, r := range results {
		if r == nil {
			continue
		}
		if merged.Columns == nil {
			merged.Columns = append([]string(nil), r.Columns...)
		} else if !slices.Equal(merged.Columns, r.Columns) {
			return nil, fmt.Errorf("chunk %d: columns %v differ from %v", i, r.Columns, merged.Columns)
		}
		merged.Rows = append(merged.Rows, r.Rows...)
	}
	merged.Reinfer()
	return merged, nil
}
