// Package fixtures tracks objects that tests create in real buckets so they
// can be removed afterwards.
package fixtures

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// Deleter removes one object.
type Deleter interface {
	Delete(ctx context.Context, bucket, key string) error
}

type object struct {
	bucket, key string
}

// Registry records uploaded objects. It is safe for concurrent use.
type Registry struct {
	deleter Deleter

	mu      sync.Mutex
	objects []object
	seen    map[object]bool
}

func NewRegistry(d Deleter) *Registry {
	return &Registry{deleter: d, seen: make(map[object]bool)}
}

// Register remembers bucket/key for the next Purge. Registering the same
// object twice has no effect.
func (r *Registry) Register(bucket, key string) {
	o := object{bucket: bucket, key: key}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[o] {
		return
	}
	r.seen[o] = true
	r.objects = append(r.objects, o)
}

// Len returns the number of objects awaiting removal.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objects)
}

// Purge deletes every registered object, newest first. Objects that could
// not be deleted stay registered and their errors are joined.
func (r *Registry) Purge(ctx context.Context) error {
	r.mu.Lock()
	pending := r.objects
	r.objects = nil
	r.seen = make(map[object]bool)
	r.mu.Unlock()

	var errs []error
	var failed []object
	for i := len(pending) - 1; i >= 0; i-- {
		o := pending[i]
		if err := r.deleter.Delete(ctx, o.bucket, o.key); err != nil {
			errs = append(errs, err)
			failed = append(failed, o)
		}
	}

	for i := len(failed) - 1; i >= 0; i-- {
		r.Register(failed[i].bucket, failed[i].key)
	}
	return errors.Join(errs...)
}

// ForTest returns a Registry purged when t finishes. A purge failure is
// reported as a test error.
func ForTest(t testing.TB, d Deleter) *Registry {
	t.Helper()
	r := NewRegistry(d)
	t.Cleanup(func() {
		if err := r.Purge(context.Background()); err != nil {
			t.Errorf("purge fixtures: %v", err)
		}
	})
	return r
}
