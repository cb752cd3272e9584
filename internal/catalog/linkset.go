package catalog

// LinkSet is an insertion-ordered set of URLs
type LinkSet struct {
	order []string
	seen  map[string]struct{}
}

// NewLinkSet creates an empty set
func NewLinkSet() *LinkSet {
	return &LinkSet{seen: make(map[string]struct{})}
}

// Add inserts link unless it is already present and reports whether it was added
func (s *LinkSet) Add(link string) bool {
	if _, ok := s.seen[link]; ok {
		return false
	}
	s.seen[link] = struct{}{}
	s.order = append(s.order, link)
	return true
}

// Len returns the number of unique links
func (s *LinkSet) Len() int {
	return len(s.order)
}

// First returns up to n links in first-seen order
func (s *LinkSet) First(n int) []string {
	if n > len(s.order) {
		n = len(s.order)
	}
	out := make([]string, n)
	copy(out, s.order[:n])
	return out
}
