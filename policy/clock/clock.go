// Package clock implements the CLOCK (second-chance) eviction policy.
package clock

import "github.com/IvanBrykalov/kvcache/policy"

// clock sweeps the set order cyclically from a persistent hand. A referenced
// entry under the hand gets its bit cleared and is passed over; the first
// unreferenced entry is the victim. Since every pass clears the bits it
// crosses, a victim is found within two revolutions.
type clock[V any] struct {
	h    policy.Hooks[V]
	hand policy.Node[V] // nil => start at Front
}

type clockPolicy[V any] struct{}

// New returns a Policy factory that constructs per-set CLOCK instances.
func New[V any]() policy.Policy[V] { return clockPolicy[V]{} }

// New implements policy.Policy.
func (clockPolicy[V]) New(h policy.Hooks[V]) policy.SetPolicy[V] {
	return &clock[V]{h: h}
}

// Victim advances the hand until it rests on an unreferenced entry.
// The hand stays on the victim; OnRemove moves it past.
func (p *clock[V]) Victim() policy.Node[V] {
	n := p.hand
	if n == nil {
		n = p.h.Front()
	}
	for i, limit := 0, 2*p.h.Len()+1; n != nil && i < limit; i++ {
		if !n.Referenced() {
			p.hand = n
			return n
		}
		n.SetReferenced(false)
		n = p.h.Next(n)
	}
	// Unreachable with a consistent set: two sweeps clear every bit.
	p.hand = n
	return n
}

// OnAdd is a no-op: new entries join the back of the ring unreferenced.
func (p *clock[V]) OnAdd(policy.Node[V]) {}

// OnGet is a no-op: the cache has already set the referenced bit.
func (p *clock[V]) OnGet(policy.Node[V]) {}

// OnUpdate is a no-op: overwrites keep their ring position.
func (p *clock[V]) OnUpdate(policy.Node[V]) {}

// OnRemove moves the hand past n when n is under it.
func (p *clock[V]) OnRemove(n policy.Node[V]) {
	if p.hand != n {
		return
	}
	next := p.h.Next(n)
	if next == n {
		next = nil
	}
	p.hand = next
}

// Hand returns the entry currently under the clock hand (nil means the
// sweep starts at the front). Exposed for tests and debugging views.
func (p *clock[V]) Hand() policy.Node[V] { return p.hand }
