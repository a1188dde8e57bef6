package pipeline

// SeenSet is a bounded set of message identities already handled by the live
// ingestion path. When the capacity is reached the oldest entry is evicted,
// FIFO. The set is owned by a Pipeline instance, never persisted, and resets
// on process restart: live duplicate suppression deliberately does not
// survive restarts.
type SeenSet struct {
	capacity int
	order    []string
	head     int
	set      map[string]struct{}
}

// NewSeenSet creates a SeenSet holding at most capacity entries.
func NewSeenSet(capacity int) *SeenSet {
	if capacity <= 0 {
		capacity = 1
	}
	return &SeenSet{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		set:      make(map[string]struct{}, capacity),
	}
}

// Contains reports whether key has been added and not yet evicted.
func (s *SeenSet) Contains(key string) bool {
	_, ok := s.set[key]
	return ok
}

// Add records key, evicting the oldest entry if the set is full.
// Adding an existing key is a no-op.
func (s *SeenSet) Add(key string) {
	if _, ok := s.set[key]; ok {
		return
	}

	if len(s.order) < s.capacity {
		s.order = append(s.order, key)
	} else {
		oldest := s.order[s.head]
		delete(s.set, oldest)
		s.order[s.head] = key
		s.head = (s.head + 1) % s.capacity
	}
	s.set[key] = struct{}{}
}

// Len returns the number of entries currently tracked.
func (s *SeenSet) Len() int {
	return len(s.set)
}
