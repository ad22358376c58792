package transform

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Limited bounds the number of concurrent runs of the wrapped Transformer.
// Callers beyond the bound wait until a slot frees or their context ends.
type Limited struct {
	next Transformer
	sem  *semaphore.Weighted
	size int64
}

// Limit wraps next so that at most n runs proceed at once.
// n <= 0 means unbounded and returns next unchanged.
func Limit(next Transformer, n int64) Transformer {
	if n <= 0 {
		return next
	}
	return &Limited{next: next, sem: semaphore.NewWeighted(n), size: n}
}

// Size returns the concurrency bound.
func (l *Limited) Size() int64 {
	return l.size
}

// Run waits for a slot, then runs the wrapped Transformer.
func (l *Limited) Run(ctx context.Context, req Request) *Result {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return Failure(FailureCanceled, -1, fmt.Sprintf("transform canceled while waiting for a slot: %v", err))
	}
	defer l.sem.Release(1)
	return l.next.Run(ctx, req)
}
