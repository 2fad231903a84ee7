package container

import "iter"

// node is an arena slot. Slot 0 of every arena is reserved so that a zero
// link means "none".
type node[T comparable] struct {
	value T
	prev  int
	next  int
	gen   uint32
	live  bool
}

// List is a doubly linked list whose nodes live in an arena slice.
// The zero value is an empty list ready to use. A List is not safe for
// concurrent use.
type List[T comparable] struct {
	nodes []node[T]
	free  []int
	head  int
	tail  int
	count int
}

// Iterator designates one element of a List. It stays valid until that
// element is erased; erasing bumps the slot generation so stale iterators
// never alias a reused slot. The zero Iterator is the "not found" value.
type Iterator[T comparable] struct {
	list  *List[T]
	index int
	gen   uint32
}

// NewList returns a list holding values in order.
func NewList[T comparable](values ...T) *List[T] {
	l := &List[T]{}
	for _, v := range values {
		l.Add(v)
	}
	return l
}

// Valid reports whether the iterator still designates a live element.
func (it Iterator[T]) Valid() bool {
	if it.list == nil || it.index <= 0 || it.index >= len(it.list.nodes) {
		return false
	}
	n := &it.list.nodes[it.index]
	return n.live && n.gen == it.gen
}

// Value returns the element, or the zero value for an invalid iterator.
func (it Iterator[T]) Value() T {
	if !it.Valid() {
		var zero T
		return zero
	}
	return it.list.nodes[it.index].value
}

// Set replaces the element in place.
func (it Iterator[T]) Set(v T) bool {
	if !it.Valid() {
		return false
	}
	it.list.nodes[it.index].value = v
	return true
}

// Next returns the following element, or the zero iterator at the tail.
func (it Iterator[T]) Next() Iterator[T] {
	if !it.Valid() {
		return Iterator[T]{}
	}
	return it.list.iter(it.list.nodes[it.index].next)
}

// Prev returns the preceding element, or the zero iterator at the head.
func (it Iterator[T]) Prev() Iterator[T] {
	if !it.Valid() {
		return Iterator[T]{}
	}
	return it.list.iter(it.list.nodes[it.index].prev)
}

func (l *List[T]) iter(idx int) Iterator[T] {
	if idx == 0 {
		return Iterator[T]{}
	}
	return Iterator[T]{list: l, index: idx, gen: l.nodes[idx].gen}
}

func (l *List[T]) owns(it Iterator[T]) bool {
	return it.list == l && it.Valid()
}

func (l *List[T]) alloc(v T) int {
	if len(l.nodes) == 0 {
		l.nodes = append(l.nodes, node[T]{})
	}
	if n := len(l.free); n > 0 {
		idx := l.free[n-1]
		l.free = l.free[:n-1]
		nd := &l.nodes[idx]
		nd.value, nd.prev, nd.next, nd.live = v, 0, 0, true
		return idx
	}
	l.nodes = append(l.nodes, node[T]{value: v, live: true})
	return len(l.nodes) - 1
}

func (l *List[T]) release(idx int) {
	var zero T
	nd := &l.nodes[idx]
	nd.value = zero
	nd.prev, nd.next = 0, 0
	nd.live = false
	nd.gen++
	l.free = append(l.free, idx)
}

// Len returns the number of elements.
func (l *List[T]) Len() int { return l.count }

// First returns the head element, or the zero iterator when empty.
func (l *List[T]) First() Iterator[T] { return l.iter(l.head) }

// Last returns the tail element, or the zero iterator when empty.
func (l *List[T]) Last() Iterator[T] { return l.iter(l.tail) }

// Add appends v at the tail and returns its iterator.
func (l *List[T]) Add(v T) Iterator[T] {
	idx := l.alloc(v)
	nd := &l.nodes[idx]
	nd.prev = l.tail
	if l.tail != 0 {
		l.nodes[l.tail].next = idx
	} else {
		l.head = idx
	}
	l.tail = idx
	l.count++
	return l.iter(idx)
}

// AddList appends a copy of every element of other.
func (l *List[T]) AddList(other *List[T]) {
	if other == nil {
		return
	}
	// snapshot first so l.AddList(l) terminates
	for _, v := range other.Slice() {
		l.Add(v)
	}
}

// Insert places v before where. An invalid where appends.
func (l *List[T]) Insert(where Iterator[T], v T) Iterator[T] {
	if !l.owns(where) {
		return l.Add(v)
	}
	idx := l.alloc(v)
	next := where.index
	prev := l.nodes[next].prev
	l.nodes[idx].prev = prev
	l.nodes[idx].next = next
	l.nodes[next].prev = idx
	if prev != 0 {
		l.nodes[prev].next = idx
	} else {
		l.head = idx
	}
	l.count++
	return l.iter(idx)
}

func (l *List[T]) unlink(idx int) {
	nd := l.nodes[idx]
	if nd.prev != 0 {
		l.nodes[nd.prev].next = nd.next
	} else {
		l.head = nd.next
	}
	if nd.next != 0 {
		l.nodes[nd.next].prev = nd.prev
	} else {
		l.tail = nd.prev
	}
	l.release(idx)
	l.count--
}

// Erase removes the element at it. Only it is invalidated.
func (l *List[T]) Erase(it Iterator[T]) error {
	if !l.owns(it) {
		return ErrNoSuchItem
	}
	l.unlink(it.index)
	return nil
}

// Remove deletes the first element equal to v, or every one when all is set.
func (l *List[T]) Remove(v T, all bool) error {
	removed := false
	for idx := l.head; idx != 0; {
		next := l.nodes[idx].next
		if l.nodes[idx].value == v {
			l.unlink(idx)
			removed = true
			if !all {
				break
			}
		}
		idx = next
	}
	if !removed {
		return ErrNoSuchItem
	}
	return nil
}

// RemoveList removes each element of other from l.
func (l *List[T]) RemoveList(other *List[T], all bool) {
	if other == nil {
		return
	}
	for _, v := range other.Slice() {
		_ = l.Remove(v, all)
	}
}

// PopHead detaches and returns the first element.
func (l *List[T]) PopHead() (T, error) {
	if l.head == 0 {
		var zero T
		return zero, ErrNoSuchItem
	}
	idx := l.head
	v := l.nodes[idx].value
	l.unlink(idx)
	return v, nil
}

// Contains reports whether some element equals v.
func (l *List[T]) Contains(v T) bool {
	for idx := l.head; idx != 0; idx = l.nodes[idx].next {
		if l.nodes[idx].value == v {
			return true
		}
	}
	return false
}

// ItemAt returns the iterator at position i, or the zero iterator.
func (l *List[T]) ItemAt(i int) Iterator[T] {
	if i < 0 || i >= l.count {
		return Iterator[T]{}
	}
	idx := l.head
	for ; i > 0; i-- {
		idx = l.nodes[idx].next
	}
	return l.iter(idx)
}

// Get returns the element at position i, or ErrNoSuchItem.
func (l *List[T]) Get(i int) (T, error) {
	it := l.ItemAt(i)
	if !it.Valid() {
		var zero T
		return zero, ErrNoSuchItem
	}
	return it.Value(), nil
}

// Find returns the n-th (0-based) element satisfying pred.
func (l *List[T]) Find(pred func(T) bool, n int) Iterator[T] {
	for idx := l.head; idx != 0; idx = l.nodes[idx].next {
		if pred(l.nodes[idx].value) {
			if n == 0 {
				return l.iter(idx)
			}
			n--
		}
	}
	return Iterator[T]{}
}

// Apply calls fn on every element, head to tail.
func (l *List[T]) Apply(fn func(T)) {
	for idx := l.head; idx != 0; idx = l.nodes[idx].next {
		fn(l.nodes[idx].value)
	}
}

// ApplyUntil maps each element through fn and stops at the first result for
// which pred reports stop. It returns true and pred's error in that case.
func ApplyUntil[T comparable, R any](l *List[T], fn func(T) R, pred func(R) (bool, error)) (bool, error) {
	for idx := l.head; idx != 0; idx = l.nodes[idx].next {
		if stop, err := pred(fn(l.nodes[idx].value)); stop {
			return true, err
		}
	}
	return false, nil
}

// Clear removes every element. Outstanding iterators become invalid.
func (l *List[T]) Clear() {
	for idx := l.head; idx != 0; {
		next := l.nodes[idx].next
		l.release(idx)
		idx = next
	}
	l.head, l.tail, l.count = 0, 0, 0
}

// Cut keeps the first keep elements and moves the rest, in order, to out.
// out is cleared first.
func (l *List[T]) Cut(keep int, out *List[T]) {
	out.Clear()
	if keep < 0 {
		keep = 0
	}
	if keep >= l.count {
		return
	}
	it := l.ItemAt(keep)
	for idx := it.index; idx != 0; {
		next := l.nodes[idx].next
		out.Add(l.nodes[idx].value)
		l.unlink(idx)
		idx = next
	}
}

// Sort orders the list with a stable merge sort. cmp returns a negative,
// zero or positive number like cmp.Compare.
func (l *List[T]) Sort(cmp func(a, b T) int) {
	if l.count <= 1 {
		return
	}
	var right List[T]
	l.Cut(l.count>>1, &right)
	l.Sort(cmp)
	right.Sort(cmp)
	if cmp(l.nodes[l.tail].value, right.nodes[right.head].value) > 0 {
		l.merge(&right, cmp)
	} else {
		l.AddList(&right)
	}
}

// merge moves the sorted elements of other into the sorted list l.
func (l *List[T]) merge(other *List[T], cmp func(a, b T) int) {
	idx := l.head
	for idx != 0 && other.count > 0 {
		hv := other.nodes[other.head].value
		if cmp(l.nodes[idx].value, hv) <= 0 {
			idx = l.nodes[idx].next
			continue
		}
		_, _ = other.PopHead()
		l.Insert(l.iter(idx), hv)
	}
	for other.count > 0 {
		v, _ := other.PopHead()
		l.Add(v)
	}
}

// Equal reports whether both lists hold equal elements in the same order.
func (l *List[T]) Equal(other *List[T]) bool {
	if other == nil || l.count != other.count {
		return false
	}
	a, b := l.head, other.head
	for a != 0 {
		if l.nodes[a].value != other.nodes[b].value {
			return false
		}
		a, b = l.nodes[a].next, other.nodes[b].next
	}
	return true
}

// Clone returns a deep copy in a fresh arena.
func (l *List[T]) Clone() *List[T] {
	c := &List[T]{}
	c.AddList(l)
	return c
}

// Slice copies the elements into a new slice.
func (l *List[T]) Slice() []T {
	out := make([]T, 0, l.count)
	for idx := l.head; idx != 0; idx = l.nodes[idx].next {
		out = append(out, l.nodes[idx].value)
	}
	return out
}

// All iterates head to tail. The element being visited may be erased.
func (l *List[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for idx := l.head; idx != 0; {
			next := l.nodes[idx].next
			if !yield(l.nodes[idx].value) {
				return
			}
			idx = next
		}
	}
}

// Backward iterates tail to head.
func (l *List[T]) Backward() iter.Seq[T] {
	return func(yield func(T) bool) {
		for idx := l.tail; idx != 0; {
			prev := l.nodes[idx].prev
			if !yield(l.nodes[idx].value) {
				return
			}
			idx = prev
		}
	}
}
