package signal

import (
	"context"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/rs/zerolog/log"
)

// run owns the connection for its lifetime: it reads until the transport
// fails, then reconnects, and exits on caller disconnect or after giving up.
// Being the only reader keeps delivery ordered across reconnects.
func (m *Manager) run(ctx context.Context, conn core.Conn) {
	for {
		err := m.readPump(conn)
		if ctx.Err() != nil {
			log.Info().Str("module", "signal").Str("room", string(m.roomID)).Msg("read loop done")
			return
		}
		log.Warn().Err(err).Str("module", "signal").Str("room", string(m.roomID)).Msg(core.ErrTransportClosedUnexpectedly.Error())
		_ = conn.Close()

		var ok bool
		conn, ok = m.reconnect(ctx)
		if !ok {
			return
		}
	}
}

func (m *Manager) readPump(conn core.Conn) error {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := core.DecodeEvent(data)
		if err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad json")
			continue
		}
		if !ev.Type.Known() {
			log.Warn().Str("module", "signal").Str("type", string(ev.Type)).Msg("unknown event")
		}
		m.events.Publish(ev)
	}
}

// reconnect retries with delay attempt*BaseDelay. A successful dial resets the
// attempt counter for the next outage.
func (m *Manager) reconnect(ctx context.Context) (core.Conn, bool) {
	target := RoomURL(m.opts.BaseURL, m.roomID, m.userID)
	for attempt := 1; attempt <= m.opts.MaxAttempts; attempt++ {
		m.setState(StateReconnecting)
		delay := time.Duration(attempt) * m.opts.BaseDelay
		log.Info().Str("module", "signal").Str("room", string(m.roomID)).Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting")

		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("room", string(m.roomID)).Msg("reconnect cancelled")
			return nil, false
		case <-m.opts.Clock.After(delay):
		}

		conn, err := m.dial(ctx, target)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("room", string(m.roomID)).Int("attempt", attempt).Msg("reconnect failed")
			continue
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			_ = conn.Close()
			return nil, false
		}
		m.conn = conn
		m.state = StateConnected
		m.mu.Unlock()
		m.states.Publish(StateConnected)
		log.Info().Str("module", "signal").Str("room", string(m.roomID)).Int("attempt", attempt).Msg("reconnected")
		return conn, true
	}

	m.mu.Lock()
	m.conn = nil
	m.mu.Unlock()
	m.setState(StateDisconnected)
	log.Error().Str("module", "signal").Str("room", string(m.roomID)).Int("attempts", m.opts.MaxAttempts).Msg("giving up")
	return nil, false
}
