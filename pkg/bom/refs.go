package bom

// RefSet is an insertion-ordered set of refs. The zero value is ready to use.
type RefSet struct {
	order []string
	seen  map[string]struct{}
}

// NewRefSet returns a set holding refs in first-seen order.
func NewRefSet(refs ...string) *RefSet {
	s := &RefSet{}
	s.Add(refs...)
	return s
}

// Add inserts refs that are not yet present and reports how many were new.
func (s *RefSet) Add(refs ...string) int {
	if s.seen == nil {
		s.seen = make(map[string]struct{}, len(refs))
	}
	n := 0
	for _, r := range refs {
		if _, ok := s.seen[r]; ok {
			continue
		}
		s.seen[r] = struct{}{}
		s.order = append(s.order, r)
		n++
	}
	return n
}

// Has reports whether ref is in the set.
func (s *RefSet) Has(ref string) bool {
	_, ok := s.seen[ref]
	return ok
}

// Len returns the number of refs.
func (s *RefSet) Len() int { return len(s.order) }

// Slice returns a copy of the refs in insertion order, or nil when empty.
func (s *RefSet) Slice() []string {
	if len(s.order) == 0 {
		return nil
	}
	return append([]string(nil), s.order...)
}

// Dedupe removes repeated refs, keeping the first occurrence. It returns a new
// slice, or nil for empty input.
func Dedupe(refs []string) []string {
	return NewRefSet(refs...).Slice()
}

// Union returns the members of a followed by the members of b not in a.
func Union(a, b []string) []string {
	s := NewRefSet(a...)
	s.Add(b...)
	return s.Slice()
}
