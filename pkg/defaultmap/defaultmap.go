// Package defaultmap provides a mapping whose missing entries are computed on
// first lookup by a rule supplied at construction.
package defaultmap

import "sync"

// Rule computes the value for a key the first time it is looked up.
type Rule[K comparable, V any] func(key K) V

// Map is a get-or-create mapping. It is safe for concurrent use. A rule may
// look up other keys of the same map.
type Map[K comparable, V any] struct {
	mu     sync.RWMutex
	rule   Rule[K, V]
	values map[K]V
	keys   []K
}

// New returns an empty map computing missing values with rule.
func New[K comparable, V any](rule Rule[K, V]) *Map[K, V] {
	return &Map[K, V]{rule: rule, values: make(map[K]V)}
}

// Get returns the value for key, computing and caching it with the map's rule
// when absent.
func (m *Map[K, V]) Get(key K) V {
	if v, ok := m.Lookup(key); ok {
		return v
	}
	// The rule runs unlocked so it can consult the map itself.
	v := m.rule(key)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.values[key]; ok {
		return existing
	}
	m.store(key, v)
	return v
}

// Lookup returns the cached value for key without applying the rule.
func (m *Map[K, V]) Lookup(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Set stores value under key, replacing any cached value.
func (m *Map[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(key, value)
}

func (m *Map[K, V]) store(key K, value V) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Keys returns the cached keys in the order they were first stored.
func (m *Map[K, V]) Keys() []K {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]K(nil), m.keys...)
}

func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Each calls fn for every cached entry in insertion order.
func (m *Map[K, V]) Each(fn func(key K, value V)) {
	m.mu.RLock()
	keys := append([]K(nil), m.keys...)
	values := make([]V, len(keys))
	for i, k := range keys {
		values[i] = m.values[k]
	}
	m.mu.RUnlock()

	for i, k := range keys {
		fn(k, values[i])
	}
}

// Dup copies the cached entries into a new map computing missing values with
// rule. Values are copied as is; callers duplicate them through clone when
// the new map must not share them.
func (m *Map[K, V]) Dup(rule Rule[K, V], clone func(V) V) *Map[K, V] {
	d := New(rule)
	m.Each(func(k K, v V) {
		if clone != nil {
			v = clone(v)
		}
		d.store(k, v)
	})
	return d
}
