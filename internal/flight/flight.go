// Package flight provides a join-or-lead call registry: at most one
// execution of an expensive function is outstanding per key, and every
// concurrent caller for that key receives the same result.
//
// Unlike golang.org/x/sync/singleflight, callers learn whether they led the
// call, and a caller whose context expires detaches while the call keeps
// running to completion for the remaining waiters.
package flight

import (
	"context"
	"sync"
)

// call tracks one in-flight execution.
type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Group deduplicates concurrent executions by key.
type Group[K comparable, V any] struct {
	mu       sync.Mutex
	inflight map[K]*call[V]
}

// NewGroup creates an empty Group.
func NewGroup[K comparable, V any]() *Group[K, V] {
	return &Group[K, V]{inflight: make(map[K]*call[V])}
}

// Execute runs fn for key, or joins an execution already in flight. The
// returned leader flag is true for the caller that started the execution.
//
// fn runs in a goroutine owned by the group, so it is not cut short when
// the caller's context is canceled; a canceled caller returns ctx.Err()
// while the execution continues for other waiters. fn must therefore not
// capture ctx directly (use context.WithoutCancel or its own deadline).
//
// Once fn completes, success or failure, the key's bookkeeping is cleared
// so a later call triggers a fresh execution. Failures are shared with all
// current waiters but never remembered.
func (g *Group[K, V]) Execute(ctx context.Context, key K, fn func() (V, error)) (V, bool, error) {
	g.mu.Lock()
	if cl, ok := g.inflight[key]; ok {
		g.mu.Unlock()
		return g.wait(ctx, cl, false)
	}

	cl := &call[V]{done: make(chan struct{})}
	g.inflight[key] = cl
	g.mu.Unlock()

	go func() {
		cl.val, cl.err = fn()

		g.mu.Lock()
		delete(g.inflight, key)
		g.mu.Unlock()

		close(cl.done)
	}()

	return g.wait(ctx, cl, true)
}

// InFlight reports whether an execution for key is currently outstanding.
func (g *Group[K, V]) InFlight(key K) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.inflight[key]
	return ok
}

func (g *Group[K, V]) wait(ctx context.Context, cl *call[V], leader bool) (V, bool, error) {
	select {
	case <-cl.done:
		return cl.val, leader, cl.err
	case <-ctx.Done():
		var zero V
		return zero, leader, ctx.Err()
	}
}
