package container

import "iter"

const minBucketLog = 4

type hashEntry[K comparable, V any] struct {
	key   K
	value V
	hash  uint32
}

// HashMap is an open-addressing hash map with linear probing and back-shift
// deletion. The bucket array is a power of two and is kept at most half full.
// The zero value is not usable; call NewHashMap.
type HashMap[K comparable, V any] struct {
	hasher  func(K) uint32
	buckets []*hashEntry[K, V]
	log     uint
	count   int
}

// NewHashMap returns an empty map hashing keys with hasher. A nil hasher
// falls back to a seeded runtime hash.
func NewHashMap[K comparable, V any](hasher func(K) uint32) *HashMap[K, V] {
	if hasher == nil {
		hasher = comparableHasher[K]
	}
	return &HashMap[K, V]{hasher: hasher}
}

// NewStringHashMap returns a map keyed by strings using FNV-1a.
func NewStringHashMap[V any]() *HashMap[string, V] {
	return NewHashMap[string, V](StringHasher)
}

func (m *HashMap[K, V]) Len() int { return m.count }

func (m *HashMap[K, V]) mask() uint32 { return uint32(len(m.buckets) - 1) }

func (m *HashMap[K, V]) allocate(log uint) {
	m.buckets = make([]*hashEntry[K, V], 1<<log)
	m.log = log
}

// adjust resizes the bucket array for n entries. Growth happens once the
// table would be half full; shrinking only when allowed and under a fifth.
func (m *HashMap[K, V]) adjust(n int, allowShrink bool) {
	if m.buckets == nil {
		m.allocate(minBucketLog)
	}
	size := len(m.buckets)
	var log uint
	switch {
	case 2*n >= size:
		log = m.log + 1
	case allowShrink && 5*n < size && m.log > minBucketLog:
		log = m.log - 1
	default:
		return
	}
	old := m.buckets
	m.allocate(log)
	for _, e := range old {
		if e != nil {
			m.place(e)
		}
	}
}

func (m *HashMap[K, V]) place(e *hashEntry[K, V]) {
	mask := m.mask()
	cursor := e.hash & mask
	for m.buckets[cursor] != nil {
		cursor = (cursor + 1) & mask
	}
	m.buckets[cursor] = e
}

func (m *HashMap[K, V]) find(k K) (uint32, *hashEntry[K, V]) {
	if m.buckets == nil {
		return 0, nil
	}
	h := m.hasher(k)
	mask := m.mask()
	for cursor := h & mask; m.buckets[cursor] != nil; cursor = (cursor + 1) & mask {
		if e := m.buckets[cursor]; e.hash == h && e.key == k {
			return cursor, e
		}
	}
	return 0, nil
}

func (m *HashMap[K, V]) add(k K, v V) *hashEntry[K, V] {
	m.adjust(m.count+1, false)
	e := &hashEntry[K, V]{key: k, value: v, hash: m.hasher(k)}
	m.place(e)
	m.count++
	return e
}

// Put inserts or replaces the value for k.
func (m *HashMap[K, V]) Put(k K, v V) {
	if _, e := m.find(k); e != nil {
		e.value = v
		return
	}
	m.add(k, v)
}

func (m *HashMap[K, V]) Get(k K) (V, error) {
	if _, e := m.find(k); e != nil {
		return e.value, nil
	}
	var zero V
	return zero, ErrNoSuchItem
}

func (m *HashMap[K, V]) Lookup(k K) (V, bool) {
	v, err := m.Get(k)
	return v, err == nil
}

func (m *HashMap[K, V]) HasKey(k K) bool {
	_, e := m.find(k)
	return e != nil
}

// HasValue reports whether any entry holds a value equal to v under eq.
func (m *HashMap[K, V]) HasValue(v V, eq func(a, b V) bool) bool {
	for _, e := range m.buckets {
		if e != nil && eq(e.value, v) {
			return true
		}
	}
	return false
}

// Ref returns a pointer to the value for k, inserting the zero value first
// when k is absent. The pointer stays valid across resizes until k is erased.
func (m *HashMap[K, V]) Ref(k K) *V {
	if _, e := m.find(k); e != nil {
		return &e.value
	}
	var zero V
	return &m.add(k, zero).value
}

// Erase removes k, shifting later probe-chain entries back into the gap.
func (m *HashMap[K, V]) Erase(k K) error {
	pos, e := m.find(k)
	if e == nil {
		return ErrNoSuchItem
	}
	mask := m.mask()
	m.buckets[pos] = nil
	for cursor := (pos + 1) & mask; m.buckets[cursor] != nil; cursor = (cursor + 1) & mask {
		target := m.buckets[cursor].hash & mask
		if pos <= cursor {
			if pos < target && target <= cursor {
				continue
			}
		} else if pos < target || target <= cursor {
			continue
		}
		m.buckets[pos] = m.buckets[cursor]
		m.buckets[cursor] = nil
		pos = cursor
	}
	m.count--
	m.adjust(m.count, true)
	return nil
}

// Clear drops every entry and returns to the minimum bucket count.
func (m *HashMap[K, V]) Clear() {
	m.allocate(minBucketLog)
	m.count = 0
}

// All iterates in bucket order.
func (m *HashMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, e := range m.buckets {
			if e != nil && !yield(e.key, e.value) {
				return
			}
		}
	}
}

// Equal reports whether both maps hold the same keys with values equal
// under eq.
func (m *HashMap[K, V]) Equal(other *HashMap[K, V], eq func(a, b V) bool) bool {
	if other == nil || m.count != other.count {
		return false
	}
	for _, e := range m.buckets {
		if e == nil {
			continue
		}
		ov, ok := other.Lookup(e.key)
		if !ok || !eq(e.value, ov) {
			return false
		}
	}
	return true
}

func (m *HashMap[K, V]) Clone() *HashMap[K, V] {
	c := NewHashMap[K, V](m.hasher)
	for k, v := range m.All() {
		c.Put(k, v)
	}
	return c
}

// Buckets reports the current bucket array size.
func (m *HashMap[K, V]) Buckets() int { return len(m.buckets) }
