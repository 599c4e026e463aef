// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ForEach runs fn for every index in [0, n) on its own goroutine and waits
// for all of them. The first failure cancels the context handed to the
// remaining calls, with that failure as the cancellation cause, so they
// unwind from semaphore, limiter or network waits. Every failure is returned
// joined, except those of calls unwound by the group itself: plain
// cancellations and errors wrapping the first failure. Work done by calls
// that completed before the failure is kept.
func ForEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	gctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for i := range n {
		g.Go(func() error {
			err := fn(gctx, i)
			if err == nil {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			if len(errs) == 0 {
				cancel(err)
			}
			errs = append(errs, err)
			return err
		})
	}
	_ = g.Wait()

	if len(errs) == 0 {
		return nil
	}
	if ctx.Err() == nil {
		first := errs[0]
		kept := []error{first}
		for _, err := range errs[1:] {
			if errors.Is(err, context.Canceled) || errors.Is(err, first) {
				continue
			}
			kept = append(kept, err)
		}
		errs = kept
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

// chunk splits items into consecutive slices of at most size elements.
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
