// Package executor runs chunk processing on a fixed pool of workers.
//
// The pool consumes parsed chunks from a bounded jobs channel, applies the
// caller's Process function to each, and delivers one Result per chunk on the
// returned channel in completion order. A failure inside Process is confined
// to its chunk: the Result carries a *ChunkError and the pool keeps going.
// Only context cancellation stops the pool early.
package executor

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"tradeflow/internal/reader"
	"tradeflow/internal/stats"
	"tradeflow/internal/trade"
)

// ChunkError reports a failure confined to a single chunk. The run continues;
// the orchestrator decides whether accumulated failures abort it.
type ChunkError struct {
	Index     int // chunk index within the run
	FirstLine int // 1-based source line of the chunk's first row, 0 if unknown
	Err       error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Process turns one parsed chunk into its enriched rows and per-chunk
// aggregate. Implementations must respect ctx on long operations and must not
// retain chunk.Rows beyond the call.
type Process func(ctx context.Context, chunk reader.Chunk) ([]trade.Enriched, *stats.Stats, error)

// Result is the outcome of processing one chunk. Exactly one Result is
// delivered per consumed chunk. On failure Err is a *ChunkError and the
// remaining fields hold whatever partial state the Process returned, which
// the consumer must ignore.
type Result struct {
	Index int
	Rows  []trade.Enriched
	Stats *stats.Stats
	Err   error
}

// QueueDepth returns the jobs-channel backlog for a pool of w workers: two
// chunks per worker keeps the reader ahead without letting parsed chunks pile
// up unboundedly.
func QueueDepth(w int) int { return 2 * w }

// Workers resolves a configured worker count, falling back to the CPU count
// when it is zero or negative. One worker degenerates to a sequential,
// order-preserving run.
func Workers(n int) int {
	if n < 1 {
		return runtime.NumCPU()
	}
	return n
}

// Run starts workers goroutines draining jobs and returns the results
// channel. The channel closes once jobs is closed and every in-flight chunk
// has finished, so the consumer can range over it without further
// synchronization. Cancelling ctx stops the pool early; unread jobs are left
// on the channel for the producer to abandon.
func Run(ctx context.Context, workers int, process Process, jobs <-chan reader.Chunk) <-chan Result {
	workers = Workers(workers)
	results := make(chan Result, workers)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case chunk, ok := <-jobs:
					if !ok {
						return nil
					}
					rows, st, err := process(ctx, chunk)
					res := Result{Index: chunk.Index, Rows: rows, Stats: st}
					if err != nil {
						res.Err = &ChunkError{Index: chunk.Index, FirstLine: chunk.FirstLine, Err: err}
					}
					select {
					case results <- res:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
		})
	}

	// Close results when (and only when) all workers are done. Worker errors
	// are context cancellations, already visible to the consumer via ctx.
	go func() {
		_ = g.Wait()
		close(results)
	}()
	return results
}
