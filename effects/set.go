package effects

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Set is an unordered set. The zero value is empty and ready to use
// through a pointer.
type Set[T constraints.Ordered] map[T]struct{}

// Add inserts v, allocating the set on first use.
func (s *Set[T]) Add(v T) {
	if *s == nil {
		*s = make(Set[T])
	}
	(*s)[v] = struct{}{}
}

// Remove deletes v.
func (s Set[T]) Remove(v T) {
	delete(s, v)
}

// Has reports whether v is in the set.
func (s Set[T]) Has(v T) bool {
	_, ok := s[v]
	return ok
}

// Len returns the number of elements.
func (s Set[T]) Len() int {
	return len(s)
}

// Union adds every element of other.
func (s *Set[T]) Union(other Set[T]) {
	for v := range other {
		s.Add(v)
	}
}

// Intersects reports whether s and other share an element.
func (s Set[T]) Intersects(other Set[T]) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for v := range small {
		if large.Has(v) {
			return true
		}
	}
	return false
}

// Sorted returns the elements in ascending order.
func (s Set[T]) Sorted() []T {
	keys := maps.Keys(s)
	slices.Sort(keys)
	return keys
}

// Clone returns an independent copy. Cloning an empty set yields nil.
func (s Set[T]) Clone() Set[T] {
	if len(s) == 0 {
		return nil
	}
	return maps.Clone(s)
}
