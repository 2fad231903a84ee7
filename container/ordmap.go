package container

import "iter"

type mapEntry[K comparable, V any] struct {
	key   K
	value V
}

// Map is a small associative container that keeps insertion order and
// looks keys up linearly. The zero value is an empty map.
type Map[K comparable, V any] struct {
	entries List[*mapEntry[K, V]]
}

func NewMap[K comparable, V any]() *Map[K, V] { return &Map[K, V]{} }

func (m *Map[K, V]) find(k K) Iterator[*mapEntry[K, V]] {
	return m.entries.Find(func(e *mapEntry[K, V]) bool { return e.key == k }, 0)
}

func (m *Map[K, V]) Len() int { return m.entries.Len() }

// Put inserts or replaces the value for k. New keys go last.
func (m *Map[K, V]) Put(k K, v V) {
	if it := m.find(k); it.Valid() {
		it.Value().value = v
		return
	}
	m.entries.Add(&mapEntry[K, V]{key: k, value: v})
}

func (m *Map[K, V]) Get(k K) (V, error) {
	if it := m.find(k); it.Valid() {
		return it.Value().value, nil
	}
	var zero V
	return zero, ErrNoSuchItem
}

func (m *Map[K, V]) Lookup(k K) (V, bool) {
	v, err := m.Get(k)
	return v, err == nil
}

func (m *Map[K, V]) HasKey(k K) bool { return m.find(k).Valid() }

// Ref returns a pointer to the value for k, adding the zero value first
// when k is absent.
func (m *Map[K, V]) Ref(k K) *V {
	if it := m.find(k); it.Valid() {
		return &it.Value().value
	}
	e := &mapEntry[K, V]{key: k}
	m.entries.Add(e)
	return &e.value
}

func (m *Map[K, V]) Erase(k K) error {
	return m.entries.Erase(m.find(k))
}

func (m *Map[K, V]) Clear() { m.entries.Clear() }

// All iterates in insertion order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for e := range m.entries.All() {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}

// Equal reports whether both maps hold the same keys with values equal
// under eq, regardless of order.
func (m *Map[K, V]) Equal(other *Map[K, V], eq func(a, b V) bool) bool {
	if other == nil || m.Len() != other.Len() {
		return false
	}
	for k, v := range m.All() {
		ov, ok := other.Lookup(k)
		if !ok || !eq(v, ov) {
			return false
		}
	}
	return true
}

func (m *Map[K, V]) Clone() *Map[K, V] {
	c := NewMap[K, V]()
	for k, v := range m.All() {
		c.Put(k, v)
	}
	return c
}
