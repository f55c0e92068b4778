// Package singleflight joins concurrent calls that share a key.
package singleflight

import (
	"context"
	"sync"
)

// Group runs fn at most once per key at a time. Callers arriving while a
// call for their key is in flight wait for its result instead of issuing
// their own. The zero Group is ready to use.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done    chan struct{} // closed once val/err are set
	val     V
	err     error
	waiters int
}

// Do runs fn for key, or joins the call already running for it. shared
// reports whether the result went to more than one caller.
//
// A follower whose ctx ends stops waiting and returns ctx.Err(); the leader
// is not interrupted. fn should observe its own context.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (v V, shared bool, err error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		c.waiters++
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.val, true, c.err
		case <-ctx.Done():
			var zero V
			return zero, false, ctx.Err()
		}
	}
	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		if g.m[key] == c {
			delete(g.m, key)
		}
		shared = c.waiters > 0
		g.mu.Unlock()
		close(c.done)
	}()
	c.val, c.err = fn()
	return c.val, false, c.err
}

// Forget drops the in-flight marker for key, so the next Do starts a fresh
// call. Callers already waiting still receive the running call's result.
func (g *Group[K, V]) Forget(key K) {
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}
