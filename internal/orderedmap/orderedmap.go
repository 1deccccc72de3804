package orderedmap

import (
	"container/list"
)

type entry[K comparable, V any] struct {
	key K
	val V
}

// Map is a map datastructure that keeps its elements in insertion order.
// When a maximum length is set, adding an element to a full map evicts the
// oldest element.
// Map is not safe for concurrent use.
type Map[K comparable, V any] struct {
	order  *list.List
	m      map[K]*list.Element
	maxLen int
}

// NewBounded returns a Map that stores at most maxLen elements.
// A maxLen <= 0 means unbounded.
func NewBounded[K comparable, V any](maxLen int) *Map[K, V] {
	return &Map[K, V]{
		order:  list.New(),
		m:      map[K]*list.Element{},
		maxLen: maxLen,
	}
}

// EnqueueIfNotExist appends val to the map if key does not exist.
// evicted is true if the oldest element was removed to make room.
func (m *Map[K, V]) EnqueueIfNotExist(key K, val V) (added, evicted bool) {
	if _, exist := m.m[key]; exist {
		return false, false
	}

	if m.maxLen > 0 && m.order.Len() >= m.maxLen {
		m.removeElem(m.order.Front())
		evicted = true
	}

	m.m[key] = m.order.PushBack(&entry[K, V]{key: key, val: val})

	return true, evicted
}

func (m *Map[K, V]) removeElem(e *list.Element) {
	ent := m.order.Remove(e).(*entry[K, V])
	delete(m.m, ent.key)
}

// AsSliceReverse returns a new slice containing the elements of the map,
// the most recently added element first.
func (m *Map[K, V]) AsSliceReverse() []V {
	result := make([]V, 0, m.order.Len())

	for e := m.order.Back(); e != nil; e = e.Prev() {
		result = append(result, e.Value.(*entry[K, V]).val)
	}

	return result
}
