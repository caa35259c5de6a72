package classify

import "sync"

// SeenSet tracks article URLs already accepted during one aggregation run.
// Keys are absolute URL strings compared exactly.
type SeenSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewSeenSet creates a SeenSet with the given estimated capacity.
func NewSeenSet(estimatedCapacity int) *SeenSet {
	return &SeenSet{
		seen: make(map[string]struct{}, estimatedCapacity),
	}
}

// MarkIfNew records rawURL and reports whether it was not seen before.
// The check and the mark happen under one lock.
func (s *SeenSet) MarkIfNew(rawURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[rawURL]; ok {
		return false
	}
	s.seen[rawURL] = struct{}{}
	return true
}

// Count returns the number of unique URLs seen.
func (s *SeenSet) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
