package cache

import (
	"sync"

	"go.uber.org/zap"
)

// DefaultLimit is the number of message ids kept before the set is cleared
const DefaultLimit = 1000

// MemorySet is an in-memory ProcessedSet. When an insert pushes the size
// past the limit the whole set is cleared, so entry limit+1 leaves it empty.
type MemorySet struct {
	entries map[string]struct{}
	limit   int
	mu      sync.Mutex
	logger  *zap.Logger
}

// NewMemorySet creates a new bounded processed set
func NewMemorySet(limit int, logger *zap.Logger) *MemorySet {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MemorySet{
		entries: make(map[string]struct{}, limit),
		limit:   limit,
		logger:  logger,
	}
}

// Contains reports whether an id has been recorded
func (s *MemorySet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[id]
	return ok
}

// Add records an id, clearing the set when it overflows
func (s *MemorySet) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[id] = struct{}{}
	if len(s.entries) > s.limit {
		s.entries = make(map[string]struct{}, s.limit)
		s.logger.Debug("Cleared processed message set", zap.Int("limit", s.limit))
	}
}

// Len returns the number of recorded ids
func (s *MemorySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// Clear removes every recorded id
func (s *MemorySet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]struct{}, s.limit)
}
