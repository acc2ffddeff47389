package orch

import (
	"context"

	"github.com/dkeye/Meet/internal/adapters/embed"
	"github.com/dkeye/Meet/internal/adapters/signal"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
)

type exitKind int

const (
	exitLeave exitKind = iota
	exitEnd
)

func (o *Orchestrator) onEvent(l *live, ev core.WireEvent) {
	if ev.Type.Negotiation() {
		o.onNegotiation(l, ev)
		return
	}
	o.mu.Lock()
	if o.live != l {
		o.mu.Unlock()
		return
	}
	l.store.Apply(ev)
	self := ev.UserID == l.session.LocalUserID
	selfLeft := ev.Type == core.EventLeave && self
	o.mu.Unlock()

	if l.media != nil && !self && ev.UserID != "" {
		switch ev.Type {
		case core.EventJoin:
			o.call(l, ev.UserID)
		case core.EventLeave:
			l.media.Hangup(ev.UserID)
		}
	}
	if selfLeft {
		log.Info().Str("module", "orch").Str("room", string(l.session.RoomID)).Msg("removed from room")
		_ = o.exit(exitLeave, nil)
		return
	}
	o.emit()
}

// onConnState runs on the connection's state bus; Disconnect must not be
// called from here, so a terminal loss is handled on its own goroutine.
func (o *Orchestrator) onConnState(l *live, s signal.State) {
	o.mu.Lock()
	if o.live != l {
		o.mu.Unlock()
		return
	}
	l.connSt = s
	o.mu.Unlock()
	o.emit()

	if s == signal.StateDisconnected {
		f := &Failure{Kind: Retryable, Title: "Connection Lost", Message: msgConnectionLost,
			RoomCode: l.session.RoomID, Err: core.ErrTransportClosedUnexpectedly}
		o.wg.Go(func() { _ = o.exitLive(l, exitLeave, f) })
	}
}

// Leave exits the session and notifies the server in the background.
func (o *Orchestrator) Leave() error { return o.exit(exitLeave, nil) }

// End closes the room for everyone. Host only.
func (o *Orchestrator) End() error {
	o.mu.Lock()
	l := o.live
	o.mu.Unlock()
	if l == nil {
		return ErrNoSession
	}
	if !l.session.IsHost() {
		return core.ErrNotHost
	}
	return o.exit(exitEnd, nil)
}

// Unload is the tab-closing path: hosts end the room, everyone else leaves.
func (o *Orchestrator) Unload() {
	o.mu.Lock()
	l := o.live
	o.mu.Unlock()
	if l == nil {
		return
	}
	kind := exitLeave
	if l.session.IsHost() {
		kind = exitEnd
	}
	_ = o.exit(kind, nil)
}

// OnEmbedSignal takes a signal already translated from the embedded surface.
func (o *Orchestrator) OnEmbedSignal(sig embed.Signal) {
	o.mu.Lock()
	inSession := o.state == StateInSession
	o.mu.Unlock()
	if !inSession {
		return
	}
	o.tracker.Observe(sig)
	if sig == embed.SignalLeft {
		log.Info().Str("module", "orch").Msg("left from embedded surface")
		_ = o.exit(exitLeave, nil)
	}
}

// RetryEmbed reloads the embedded surface with a fresh retry stamp.
func (o *Orchestrator) RetryEmbed() (string, error) {
	o.mu.Lock()
	l := o.live
	if l == nil || o.state != StateInSession {
		o.mu.Unlock()
		return "", ErrNoSession
	}
	next, err := embed.WithRetry(l.session.EmbedURL, o.deps.Clock.Now())
	if err != nil {
		o.mu.Unlock()
		return "", err
	}
	l.session.EmbedURL = next
	o.mu.Unlock()

	o.tracker.Start()
	return next, nil
}

func (o *Orchestrator) exit(kind exitKind, f *Failure) error {
	o.mu.Lock()
	l := o.live
	st := o.state
	o.mu.Unlock()
	if l == nil {
		if st == StateEnded || st == StateLeaving || st == StateEnding {
			return nil
		}
		return ErrNoSession
	}
	return o.exitLive(l, kind, f)
}

// exitLive runs at most once per session: whoever detaches l owns the exit.
func (o *Orchestrator) exitLive(l *live, kind exitKind, f *Failure) error {
	o.mu.Lock()
	if o.live != l {
		o.mu.Unlock()
		return nil
	}
	o.live = nil
	o.gen++
	if kind == exitEnd {
		o.state = StateEnding
	} else {
		o.state = StateLeaving
	}
	o.last = l.store.Snapshot()
	o.failure = f
	o.retired = append(o.retired, l.conn)
	o.mu.Unlock()
	o.emit()

	o.teardown(l)
	o.tracker.Stop()
	o.notify(l.session.RoomID, kind == exitEnd)

	o.mu.Lock()
	o.state = StateEnded
	o.mu.Unlock()
	log.Info().Str("module", "orch").Str("room", string(l.session.RoomID)).Msg("session ended")
	o.emit()
	return nil
}

func (o *Orchestrator) teardown(l *live) {
	for _, u := range l.unsubs {
		u()
	}
	l.conn.Disconnect()
	if l.media != nil {
		l.media.Close()
	}
}

// notify is fire-and-forget: one attempt, bounded by NotifyTimeout, no retry.
func (o *Orchestrator) notify(room domain.RoomID, end bool) {
	user := o.deps.User.ID
	timeout := o.deps.NotifyTimeout
	o.wg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		op := "leave"
		var err error
		if end {
			op = "end"
			err = o.deps.API.EndRoom(ctx, room)
		} else {
			err = o.deps.API.LeaveRoom(ctx, room, user)
		}
		if err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("room", string(room)).Str("op", op).Msg("notification failed")
			return
		}
		log.Debug().Str("module", "orch").Str("room", string(room)).Str("op", op).Dur("timeout", timeout).Msg("notified")
	})
}
