package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Concurrent runs the action function for each element in a separate goroutine.
// It waits for all goroutines to finish. If action returns an error, it returns the first error encountered.
func Concurrent[T any](items []T, action func(T) error) error {
	errGroup := errgroup.Group{}
	for _, value := range items {
		errGroup.Go(func() error {
			return action(value)
		})
	}
	return errGroup.Wait()
}

// Bounded runs action for each element with at most limit goroutines in flight.
// The context passed to action is cancelled as soon as one action fails.
func Bounded[T any](ctx context.Context, items []T, limit int, action func(context.Context, T) error) error {
	errGroup, groupCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		errGroup.SetLimit(limit)
	}
	for _, value := range items {
		errGroup.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return action(groupCtx, value)
		})
	}
	return errGroup.Wait()
}

// Partition splits items into n buckets by key modulo n. Element order inside
// a bucket follows the input order. Empty buckets are dropped.
func Partition[T any](items []T, n int, key func(T) uint64) [][]T {
	if n <= 1 || len(items) <= 1 {
		if len(items) == 0 {
			return nil
		}
		return [][]T{items}
	}
	buckets := make([][]T, n)
	for _, item := range items {
		idx := key(item) % uint64(n)
		buckets[idx] = append(buckets[idx], item)
	}
	out := buckets[:0]
	for _, b := range buckets {
		if len(b) > 0 {
			out = append(out, b)
		}
	}
	return out
}
