package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/objgraph/internal/ir"
)

// IDSequence hands out predictable object identifiers for tests.
//
// Identifiers are "<prefix>-0001", "<prefix>-0002", ... so they sort in
// creation order, the way UUIDv7 identifiers do.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type IDSequence struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewIDSequence creates a sequence whose first identifier ends in 0001.
// An empty prefix defaults to "id".
func NewIDSequence(prefix string) *IDSequence {
	if prefix == "" {
		prefix = "id"
	}
	return &IDSequence{prefix: prefix}
}

// Next returns the next identifier.
func (s *IDSequence) Next() ir.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return ir.ObjectID(fmt.Sprintf("%s-%04d", s.prefix, s.seq))
}

// Count returns how many identifiers were handed out.
func (s *IDSequence) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset restarts the sequence. After Reset the next identifier ends in 0001.
func (s *IDSequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}
