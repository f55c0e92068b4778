package cache

import (
	"fmt"

	"github.com/IvanBrykalov/kvcache/policy"
	"github.com/IvanBrykalov/kvcache/policy/clock"
	"github.com/IvanBrykalov/kvcache/policy/lru"
	"github.com/IvanBrykalov/kvcache/policy/twoq"
)

// Policy names accepted by PolicyByName.
const (
	PolicyClock = "clock"
	PolicyLRU   = "lru"
	Policy2Q    = "2q"
)

// PolicyByName returns the policy factory for name. 2Q queues are sized
// from the set capacity: A1in a quarter, ghosts a half (at least one each).
func PolicyByName[V any](name string, maxElemsPerSet int) (policy.Policy[V], error) {
	switch name {
	case "", PolicyClock:
		return clock.New[V](), nil
	case PolicyLRU:
		return lru.New[V](), nil
	case Policy2Q:
		return twoq.New[V](maxElemsPerSet/4, maxElemsPerSet/2), nil
	}
	return nil, fmt.Errorf("cache: unknown policy %q", name)
}
