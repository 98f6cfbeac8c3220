// Package cache provides the per-session memo used in front of remote reads.
//
// A Memo holds at most one value per key and lets at most one fetch per key
// run at a time; concurrent callers for the same key share its result.
// Failed fetches are not cached. Reset drops everything and is called between
// command invocations.
package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Memo caches values of type V by string key.
type Memo[V any] struct {
	mu     sync.Mutex
	values map[string]V
	gen    uint64
	group  singleflight.Group
}

// New returns an empty memo.
func New[V any]() *Memo[V] {
	return &Memo[V]{values: make(map[string]V)}
}

// Get returns the cached value for key or runs fetch to produce it.
func (m *Memo[V]) Get(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	m.mu.Lock()
	if v, ok := m.values[key]; ok {
		m.mu.Unlock()
		return v, nil
	}
	gen := m.gen
	m.mu.Unlock()

	res, err, _ := m.group.Do(key, func() (any, error) {
		m.mu.Lock()
		if v, ok := m.values[key]; ok {
			m.mu.Unlock()
			return v, nil
		}
		m.mu.Unlock()

		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		m.mu.Lock()
		// A Reset or Invalidate while fetching makes the value stale.
		if m.gen == gen {
			m.values[key] = v
		}
		m.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Peek returns the cached value without fetching.
func (m *Memo[V]) Peek(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// Invalidate drops key so the next Get fetches again.
func (m *Memo[V]) Invalidate(key string) {
	m.mu.Lock()
	delete(m.values, key)
	m.gen++
	m.mu.Unlock()
	m.group.Forget(key)
}

// Reset drops every cached value.
func (m *Memo[V]) Reset() {
	m.mu.Lock()
	m.values = make(map[string]V)
	m.gen++
	m.mu.Unlock()
}

// Len returns the number of cached values.
func (m *Memo[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}
