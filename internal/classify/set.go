package classify

import "strings"

// Set is a deduplicated, insertion-ordered collection of strings.
// Used for reason codes and policy names: repeated matches collapse to one
// entry, and joining into a display string is deferred to the sink.
type Set struct {
	seen  map[string]struct{}
	items []string
}

// NewSet creates a Set seeded with the given values.
func NewSet(values ...string) *Set {
	s := &Set{seen: make(map[string]struct{})}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v unless it is empty or already present.
func (s *Set) Add(v string) {
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

// Has reports whether v is in the set.
func (s *Set) Has(v string) bool {
	_, ok := s.seen[v]
	return ok
}

// Len returns the number of distinct values.
func (s *Set) Len() int {
	return len(s.items)
}

// Values returns the distinct values in insertion order.
func (s *Set) Values() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Join concatenates the values with sep, in insertion order.
func (s *Set) Join(sep string) string {
	return strings.Join(s.items, sep)
}
