package presence

import (
	"slices"
	"strings"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// Snapshot is a read-only copy handed to the UI; mutating it never reaches the store.
type Snapshot struct {
	Participants []domain.Participant `json:"participants"`
	Chat         []domain.ChatMessage `json:"chat"`
}

// Find returns the participant with the given id.
func (s Snapshot) Find(id domain.UserID) (domain.Participant, bool) {
	for _, p := range s.Participants {
		if p.UserID == id {
			return p, true
		}
	}
	return domain.Participant{}, false
}

// Store holds the projection for one room session.
// Not safe for concurrent use; the orchestrator serializes access.
type Store struct {
	state State
}

func NewStore() *Store {
	return &Store{state: NewState()}
}

func (s *Store) Apply(ev core.WireEvent) {
	s.state = Apply(s.state, ev)
}

func (s *Store) State() State { return s.state }

func (s *Store) Has(id domain.UserID) bool {
	_, ok := s.state.Participants[id]
	return ok
}

func (s *Store) Count() int { return len(s.state.Participants) }

// Snapshot lists participants ordered by user id; chat stays in receive order.
func (s *Store) Snapshot() Snapshot {
	out := Snapshot{
		Participants: make([]domain.Participant, 0, len(s.state.Participants)),
		Chat:         slices.Clone(s.state.Chat),
	}
	for _, p := range s.state.Participants {
		out.Participants = append(out.Participants, p)
	}
	slices.SortFunc(out.Participants, func(a, b domain.Participant) int {
		return strings.Compare(string(a.UserID), string(b.UserID))
	})
	if out.Chat == nil {
		out.Chat = []domain.ChatMessage{}
	}
	return out
}
