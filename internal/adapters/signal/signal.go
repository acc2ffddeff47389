// Package signal is the Connection Manager: one presence transport per room
// session, linear-backoff reconnection, ordered inbound delivery and
// best-effort outbound sends.
package signal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/bus"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

var (
	ErrAlreadyStarted = errors.New("connection manager already started")
	ErrClosed         = errors.New("connection manager closed")
	ErrRateLimited    = errors.New("rate limited")
)

type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	// StateDisconnected is terminal: reconnect attempts are exhausted.
	StateDisconnected State = "disconnected"
	// StateClosed is terminal: the caller disconnected.
	StateClosed State = "closed"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
)

type Options struct {
	BaseURL     string
	MaxAttempts int
	BaseDelay   time.Duration
	DialTimeout time.Duration
	Dialer      core.Dialer
	Clock       core.Clock
	// Limiter throttles outbound chat per user; nil disables it.
	Limiter *RoomRateLimiter
}

type Manager struct {
	opts Options

	mu     sync.Mutex
	state  State
	conn   core.Conn
	roomID domain.RoomID
	userID domain.UserID
	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	wg     conc.WaitGroup
	events *bus.Bus[core.WireEvent]
	states *bus.Bus[State]
}

func NewManager(opts Options) *Manager {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = NewWSDialer(0)
	}
	if opts.Clock == nil {
		opts.Clock = core.SystemClock{}
	}
	return &Manager{
		opts:   opts,
		state:  StateIdle,
		events: bus.New[core.WireEvent](),
		states: bus.New[State](),
	}
}

// RoomURL is the endpoint scoped by (room, user).
func RoomURL(base string, roomID domain.RoomID, userID domain.UserID) string {
	return fmt.Sprintf("%s/ws/%s/%s",
		strings.TrimRight(base, "/"),
		url.PathEscape(string(roomID)),
		url.PathEscape(string(userID)))
}

// Connect establishes the transport. A failed first attempt is reported, not
// retried; the manager returns to idle and may be connected again.
func (m *Manager) Connect(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state != StateIdle {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.roomID, m.userID = roomID, userID
	m.state = StateConnecting
	m.mu.Unlock()
	m.states.Publish(StateConnecting)

	target := RoomURL(m.opts.BaseURL, roomID, userID)
	logger := log.With().Str("module", "signal").Str("room", string(roomID)).Str("user", string(userID)).Logger()
	logger.Info().Str("url", target).Msg("connecting")

	conn, err := m.dial(ctx, target)
	if err != nil {
		logger.Error().Err(err).Msg("connect failed")
		m.setState(StateIdle)
		return classifyDial(target, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.conn = conn
	m.state = StateConnected
	runCtx := m.ctx
	m.mu.Unlock()
	m.states.Publish(StateConnected)

	logger.Info().Msg("connected")
	m.wg.Go(func() { m.run(runCtx, conn) })
	return nil
}

// Send is best-effort: when not connected the action is dropped, not queued.
func (m *Manager) Send(a core.Action) error {
	m.mu.Lock()
	conn, state, userID := m.conn, m.state, m.userID
	m.mu.Unlock()

	if state != StateConnected || conn == nil {
		log.Warn().Str("module", "signal").Str("action", string(a.Action)).Str("state", string(state)).Msg("not connected, action dropped")
		return core.ErrNotConnected
	}
	if a.Action == core.ActionChatMessage && m.opts.Limiter != nil && !m.opts.Limiter.Allow(userID) {
		log.Warn().Str("module", "signal").Str("user", string(userID)).Msg("chat rate limited, action dropped")
		return ErrRateLimited
	}

	data, err := a.Encode()
	if err != nil {
		return fmt.Errorf("encode action: %w", err)
	}
	if err := conn.WriteMessage(data); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("action", string(a.Action)).Msg("write failed, action dropped")
		return fmt.Errorf("send %s: %w", a.Action, err)
	}
	return nil
}

// OnEvent registers a handler invoked once per inbound event, in receipt
// order, never concurrently. It returns a func that removes the handler.
func (m *Manager) OnEvent(fn func(core.WireEvent)) func() {
	return m.events.Subscribe(fn)
}

// OnState registers a handler for connection state changes.
func (m *Manager) OnState(fn func(State)) func() {
	return m.states.Subscribe(fn)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Disconnect is terminal: pending reconnects are cancelled, handlers are
// cleared and the manager never reconnects. It does not block on the read
// loop, so it is safe to call from an event handler; use Wait to join it.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.cancel != nil {
		m.cancel()
	}
	conn := m.conn
	m.conn = nil
	m.state = StateClosed
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	m.events.Clear()
	m.states.Publish(StateClosed)
	m.states.Clear()
	log.Info().Str("module", "signal").Str("room", string(m.roomID)).Msg("disconnected by caller")
}

// Wait blocks until the read loop has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.state = s
	m.mu.Unlock()
	m.states.Publish(s)
}

func (m *Manager) dial(ctx context.Context, target string) (core.Conn, error) {
	if m.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.DialTimeout)
		defer cancel()
	}
	return m.opts.Dialer.Dial(ctx, target)
}

func classifyDial(target string, err error) error {
	var hs *HandshakeError
	if errors.As(err, &hs) {
		return &core.ConnectError{Kind: core.ConnectRejected, URL: target, Err: err}
	}
	return &core.ConnectError{Kind: core.ConnectUnreachable, URL: target, Err: err}
}
