// Package identitymap caches one live instance per key.
//
// A Map is not safe for concurrent use. Owners scope a Map to a single unit of
// work (a repository context) and never share it between goroutines.
package identitymap

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const separator = "\x1f"

// Map maps an ordered key tuple to a single value.
type Map[V any] struct {
	entries map[string]V
}

// New returns an empty identity map.
func New[V any]() *Map[V] {
	return &Map[V]{entries: make(map[string]V)}
}

// Get returns the value stored under key.
func (m *Map[V]) Get(key []any) (V, bool) {
	v, ok := m.entries[Encode(key)]
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (m *Map[V]) Set(key []any, value V) {
	m.entries[Encode(key)] = value
}

// Delete removes the value stored under key.
func (m *Map[V]) Delete(key []any) {
	delete(m.entries, Encode(key))
}

func (m *Map[V]) Len() int { return len(m.entries) }

// Clear drops every entry.
func (m *Map[V]) Clear() {
	m.entries = make(map[string]V)
}

// Values returns the stored values in no particular order.
func (m *Map[V]) Values() []V {
	values := make([]V, 0, len(m.entries))
	for _, v := range m.entries {
		values = append(values, v)
	}
	return values
}

// Encode turns a key tuple into a map key. Elements are encoded with their
// dynamic type so int64(1) and "1" never collide.
func Encode(key []any) string {
	parts := make([]string, len(key))
	for i, v := range key {
		parts[i] = encodeOne(v)
	}
	return strings.Join(parts, separator)
}

func encodeOne(v any) string {
	switch t := v.(type) {
	case nil:
		return "nil"
	case []byte:
		return "bytes=" + hex.EncodeToString(t)
	case time.Time:
		return "time=" + t.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return fmt.Sprintf("%T=%s", v, t.String())
	}
	return fmt.Sprintf("%T=%v", v, v)
}
