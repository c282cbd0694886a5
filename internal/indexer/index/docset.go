package index

import "sort"

// DocSet is a set of document ids. Results handed out by the index are
// always fresh DocSets owned by the caller.
type DocSet map[string]struct{}

// NewDocSet builds a set holding ids.
func NewDocSet(ids ...string) DocSet {
	s := make(DocSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s DocSet) Add(id string) {
	s[id] = struct{}{}
}

func (s DocSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

func (s DocSet) Len() int {
	return len(s)
}

func (s DocSet) Clone() DocSet {
	out := make(DocSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Intersect removes every id from s that is not in other and returns s.
func (s DocSet) Intersect(other DocSet) DocSet {
	for id := range s {
		if _, ok := other[id]; !ok {
			delete(s, id)
		}
	}
	return s
}

// Union adds every id of other to s and returns s.
func (s DocSet) Union(other DocSet) DocSet {
	for id := range other {
		s[id] = struct{}{}
	}
	return s
}

// Difference removes every id of other from s and returns s.
func (s DocSet) Difference(other DocSet) DocSet {
	for id := range other {
		delete(s, id)
	}
	return s
}

// Sorted returns the ids in ascending byte order.
func (s DocSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
