package orch

import (
	"strings"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/presence"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) ToggleMic() error  { return o.send(core.ToggleMic(o.deps.Clock.Now())) }
func (o *Orchestrator) ToggleCam() error  { return o.send(core.ToggleCam(o.deps.Clock.Now())) }
func (o *Orchestrator) ToggleHand() error { return o.send(core.ToggleHand(o.deps.Clock.Now())) }

func (o *Orchestrator) SendChat(message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return ErrEmptyMessage
	}
	return o.send(core.ChatMessage(o.deps.User, message, o.deps.Clock.Now()))
}

// ForceMic asks the server to set target's mic. Only a host session builds the action.
func (o *Orchestrator) ForceMic(target domain.UserID, muted bool) error {
	role, err := o.role()
	if err != nil {
		return err
	}
	a, err := presence.ForceMic(role, target, muted)
	if err != nil {
		return err
	}
	return o.send(a)
}

func (o *Orchestrator) ForceCam(target domain.UserID, off bool) error {
	role, err := o.role()
	if err != nil {
		return err
	}
	a, err := presence.ForceCam(role, target, off)
	if err != nil {
		return err
	}
	return o.send(a)
}

func (o *Orchestrator) role() (presence.Role, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.live == nil {
		return nil, ErrNoSession
	}
	s := o.live.session
	return &s, nil
}

func (o *Orchestrator) send(a core.Action) error {
	o.mu.Lock()
	l := o.live
	st := o.state
	var role Session
	if l != nil {
		role = l.session
	}
	o.mu.Unlock()
	if l == nil || st != StateInSession {
		return ErrNoSession
	}
	if err := presence.PermitOutbound(&role, a); err != nil {
		log.Warn().Str("module", "orch").Str("action", string(a.Action)).Msg("privileged action refused")
		return err
	}
	return l.conn.Send(a)
}
