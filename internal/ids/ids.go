// Package ids allocates identifiers for transactions, accounts and groups.
package ids

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Allocator mints new unique identifiers.
type Allocator interface {
	NewID() string
}

// UUID allocates random version 4 UUIDs.
type UUID struct{}

func (UUID) NewID() string { return uuid.NewString() }

// Sequence hands out prefix-1, prefix-2, ... and is safe for concurrent use.
// Tests use it to get predictable group ids.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

func (s *Sequence) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}

// Issued returns how many ids have been handed out.
func (s *Sequence) Issued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
