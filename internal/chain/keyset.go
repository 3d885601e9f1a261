package chain

import "sort"

// KeySet is a set of quote keys. A nil KeySet is empty and read-safe.
type KeySet map[Key]struct{}

// NewKeySet builds a set from the given keys.
func NewKeySet(keys ...Key) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s KeySet) Add(k Key) { s[k] = struct{}{} }

func (s KeySet) Has(k Key) bool {
	_, ok := s[k]
	return ok
}

func (s KeySet) Remove(k Key) { delete(s, k) }

func (s KeySet) Len() int { return len(s) }

// Union returns a new set holding the members of s and every other set.
func (s KeySet) Union(others ...KeySet) KeySet {
	out := make(KeySet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	for _, o := range others {
		for k := range o {
			out[k] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members in ascending order.
func (s KeySet) Sorted() []Key {
	out := make([]Key, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Float64s(out)
	return out
}
