package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// PlanCache is a bounded cache of values that are expensive to build and
// never change once built.
type PlanCache[K comparable, V any] struct {
	cache *lru.Cache[K, V]
}

// NewPlanCache returns a cache holding at most size plans.
func NewPlanCache[K comparable, V any](size int) (*PlanCache[K, V], error) {
	c, err := lru.New[K, V](size)
	if err != nil {
		return nil, err
	}
	return &PlanCache[K, V]{cache: c}, nil
}

// GetOrBuild returns the plan stored under key or builds and stores it. When
// two callers race, the first stored plan wins and both receive it.
func (c *PlanCache[K, V]) GetOrBuild(key K, build func() (V, error)) (V, error) {
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := build()
	if err != nil {
		var zero V
		return zero, err
	}
	if prev, ok, _ := c.cache.PeekOrAdd(key, v); ok {
		return prev, nil
	}
	return v, nil
}

// Len returns the number of cached plans.
func (c *PlanCache[K, V]) Len() int { return c.cache.Len() }
