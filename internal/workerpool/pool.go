// Package workerpool applies a function to a collection of items using a
// fixed number of goroutines fed from one shared queue.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultConcurrency is used when Run is given a concurrency below one.
const DefaultConcurrency = 10

// Run applies fn to every item exactly once and returns after all items
// have been processed. All items are queued up front; no more than
// concurrency workers consume them, and never more workers than items.
//
// A failing or panicking item does not stop its worker or the remaining
// items. Failures are returned joined, nil when every item succeeded.
// ctx is passed through to fn only; Run itself does not cancel work.
func Run[T any](ctx context.Context, items []T, fn func(context.Context, T) error, concurrency int) error {
	if len(items) == 0 {
		return nil
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	workers := min(concurrency, len(items))

	jobs := make(chan T, len(items))
	for _, item := range items {
		jobs <- item
	}
	close(jobs)

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				if err := call(ctx, fn, item); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

	wg.Wait()
	return errors.Join(errs...)
}

func call[T any](ctx context.Context, fn func(context.Context, T) error, item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workerpool: item %v panicked: %v", item, r)
		}
	}()
	return fn(ctx, item)
}
