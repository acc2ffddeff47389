// Package presence folds inbound wire events into "who is in the room and
// what is their state". Folding never fails: unknown or malformed events are
// absorbed as no-ops.
package presence

import (
	"maps"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
)

// State is an immutable value; Apply returns a new State and never touches its input.
type State struct {
	Participants map[domain.UserID]domain.Participant
	Chat         []domain.ChatMessage
}

func NewState() State {
	return State{Participants: make(map[domain.UserID]domain.Participant)}
}

// Apply folds one event. Presence rules are last-write-wins sets and chat
// drops an adjacent redelivery, so applying the same event twice equals
// applying it once. Media negotiation frames leave presence untouched.
func Apply(s State, ev core.WireEvent) State {
	if !ev.Type.Known() {
		log.Debug().Str("module", "presence").Str("type", string(ev.Type)).Msg("unknown event ignored")
		return s
	}
	if ev.UserID == "" {
		log.Debug().Str("module", "presence").Str("type", string(ev.Type)).Msg("event without user_id ignored")
		return s
	}

	switch ev.Type {
	case core.EventJoin:
		name := ev.DisplayName
		if name == "" {
			name = string(ev.UserID)
		}
		return s.withParticipant(domain.NewParticipant(ev.UserID, name))

	case core.EventLeave:
		if _, ok := s.Participants[ev.UserID]; !ok {
			return s
		}
		next := s.cloneParticipants()
		delete(next.Participants, ev.UserID)
		return next

	case core.EventMicUpdate, core.EventHostForceMic:
		v, ok := ev.MicValue()
		if !ok {
			return noop(s, ev, "missing mic flag")
		}
		return s.update(ev, func(p *domain.Participant) { p.MicMuted = v })

	case core.EventCamUpdate, core.EventHostForceCam:
		v, ok := ev.CamValue()
		if !ok {
			return noop(s, ev, "missing cam flag")
		}
		return s.update(ev, func(p *domain.Participant) { p.CamOff = v })

	case core.EventHandUpdate:
		v, ok := ev.HandValue()
		if !ok {
			return noop(s, ev, "missing hand flag")
		}
		return s.update(ev, func(p *domain.Participant) { p.HandRaised = v })

	case core.EventChat:
		msg := domain.ChatMessage{
			UserID:      ev.UserID,
			DisplayName: ev.DisplayName,
			Message:     ev.Message,
			Timestamp:   ev.Timestamp,
		}
		if s.lastChatIs(msg) {
			return s
		}
		next := s
		next.Chat = append(s.Chat[:len(s.Chat):len(s.Chat)], msg)
		return next
	}
	return s
}

// Fold applies events in order.
func Fold(s State, events ...core.WireEvent) State {
	for _, ev := range events {
		s = Apply(s, ev)
	}
	return s
}

func noop(s State, ev core.WireEvent, reason string) State {
	log.Debug().Str("module", "presence").Str("type", string(ev.Type)).Str("user", string(ev.UserID)).Msg(reason)
	return s
}

func (s State) update(ev core.WireEvent, set func(*domain.Participant)) State {
	p, ok := s.Participants[ev.UserID]
	if !ok {
		log.Debug().Str("module", "presence").Str("type", string(ev.Type)).Str("user", string(ev.UserID)).Msg("unknown participant, ignored")
		return s
	}
	set(&p)
	return s.withParticipant(p)
}

func (s State) withParticipant(p domain.Participant) State {
	next := s.cloneParticipants()
	next.Participants[p.UserID] = p
	return next
}

func (s State) cloneParticipants() State {
	next := s
	next.Participants = make(map[domain.UserID]domain.Participant, len(s.Participants)+1)
	maps.Copy(next.Participants, s.Participants)
	return next
}

// lastChatIs reports whether m repeats the newest entry, the shape of a
// redelivered frame. Earlier history is never consulted.
func (s State) lastChatIs(m domain.ChatMessage) bool {
	if len(s.Chat) == 0 || m.Timestamp == "" {
		return false
	}
	return s.Chat[len(s.Chat)-1] == m
}
