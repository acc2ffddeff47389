// Package recent keeps the client-local most-recent-rooms list.
package recent

import (
	"context"
	"slices"
	"sync"

	"github.com/dkeye/Meet/internal/domain"
)

const MaxEntries = 5

// List is newest-first and never longer than MaxEntries.
type List []domain.RecentRoom

// Push puts e at the front, drops an older entry for the same room and
// truncates the tail.
func (l List) Push(e domain.RecentRoom) List {
	out := make(List, 0, MaxEntries)
	out = append(out, e)
	for _, r := range l {
		if r.RoomID == e.RoomID {
			continue
		}
		if len(out) == MaxEntries {
			break
		}
		out = append(out, r)
	}
	return out
}

// Store persists the list. Implementations must keep Push semantics.
type Store interface {
	Push(ctx context.Context, e domain.RecentRoom) error
	List(ctx context.Context) (List, error)
}

type MemoryStore struct {
	mu   sync.Mutex
	list List
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Push(_ context.Context, e domain.RecentRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = s.list.Push(e)
	return nil
}

func (s *MemoryStore) List(context.Context) (List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.list), nil
}
