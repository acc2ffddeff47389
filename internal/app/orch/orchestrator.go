// Package orch is the Call-Session Orchestrator: the per-room lifecycle that
// sequences REST calls, the presence connection and the embedded surface.
package orch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/adapters/embed"
	"github.com/dkeye/Meet/internal/adapters/rtc"
	"github.com/dkeye/Meet/internal/adapters/signal"
	"github.com/dkeye/Meet/internal/bus"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/presence"
	"github.com/dkeye/Meet/internal/recent"
	"github.com/pion/webrtc/v4"
	"github.com/sourcegraph/conc"
)

type State string

const (
	StateIdle             State = "idle"
	StateCheckingRoom     State = "checking_room"
	StateAwaitingPassword State = "awaiting_password"
	StateJoining          State = "joining"
	StateInSession        State = "in_session"
	StateLeaving          State = "leaving"
	StateEnding           State = "ending"
	StateEnded            State = "ended"
)

var (
	ErrBusy             = errors.New("a session attempt is already in progress")
	ErrNoSession        = errors.New("no active session")
	ErrNotAwaiting      = errors.New("not awaiting a password")
	ErrPasswordRequired = errors.New("password required")
	ErrEmptyMessage     = errors.New("empty chat message")
	ErrAborted          = errors.New("session attempt aborted")
)

const DefaultNotifyTimeout = 5 * time.Second

// RoomAPI is the REST room lifecycle contract.
type RoomAPI interface {
	CreateRoom(ctx context.Context, in domain.CreateRoom) (domain.CreatedRoom, error)
	GetRoom(ctx context.Context, roomID domain.RoomID) (domain.RoomMeta, error)
	JoinRoom(ctx context.Context, roomID domain.RoomID, user *domain.LocalUser, password string) (domain.JoinResult, error)
	LeaveRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	EndRoom(ctx context.Context, roomID domain.RoomID) error
}

// Connection is one presence transport; Disconnect is terminal, so every
// session gets a fresh one.
type Connection interface {
	Connect(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	Send(a core.Action) error
	OnEvent(fn func(core.WireEvent)) func()
	OnState(fn func(signal.State)) func()
	Disconnect()
	Wait()
}

// Media is the optional peer-to-peer fallback, negotiated over the presence
// connection.
type Media interface {
	Call(id domain.UserID) (*webrtc.SessionDescription, error)
	Answer(id domain.UserID, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	Accept(id domain.UserID, answer webrtc.SessionDescription) error
	AddCandidate(id domain.UserID, c webrtc.ICECandidateInit) error
	OnStream(fn func(rtc.Stream)) func()
	Peers() []domain.UserID
	Hangup(id domain.UserID)
	Close()
}

type Deps struct {
	API     RoomAPI
	Connect func() Connection
	Recent  recent.Store
	User    *domain.LocalUser
	Clock   core.Clock
	// Media is nil when the fallback is disabled.
	Media         func() Media
	NotifyTimeout time.Duration
	ReadyTimeout  time.Duration
}

// Session is the lifecycle part of the room session.
type Session struct {
	RoomID      domain.RoomID `json:"room_id"`
	LocalUserID domain.UserID `json:"local_user_id"`
	Host        bool          `json:"is_host"`
	Title       string        `json:"room_title"`
	Description string        `json:"room_description"`
	EmbedURL    string        `json:"embed_url"`
}

func (s *Session) IsHost() bool { return s != nil && s.Host }

// View is the read-only picture handed to the UI after every change.
type View struct {
	State      State             `json:"state"`
	RoomID     domain.RoomID     `json:"room_id,omitempty"`
	Session    *Session          `json:"session,omitempty"`
	Connection signal.State      `json:"connection,omitempty"`
	Embed      embed.Readiness   `json:"embed,omitempty"`
	Failure    *Failure          `json:"failure,omitempty"`
	Presence   presence.Snapshot `json:"presence"`
	MediaPeers []domain.UserID   `json:"media_peers,omitempty"`
}

// live is everything owned by one joined session.
type live struct {
	session Session
	conn    Connection
	store   *presence.Store
	media   Media
	unsubs  []func()
	connSt  signal.State
}

type Orchestrator struct {
	deps    Deps
	tracker *embed.Tracker

	mu      sync.Mutex
	state   State
	gen     int
	roomID  domain.RoomID
	pending *domain.RoomMeta
	failure *Failure
	live    *live
	last    presence.Snapshot
	retired []Connection

	pubMu   sync.Mutex
	updates *bus.Bus[View]
	wg      conc.WaitGroup
}

func New(deps Deps) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = core.SystemClock{}
	}
	if deps.Recent == nil {
		deps.Recent = recent.NewMemoryStore()
	}
	if deps.NotifyTimeout <= 0 {
		deps.NotifyTimeout = DefaultNotifyTimeout
	}
	o := &Orchestrator{
		deps:    deps,
		state:   StateIdle,
		updates: bus.New[View](),
		last:    presence.NewStore().Snapshot(),
	}
	o.tracker = embed.NewTracker(deps.Clock, deps.ReadyTimeout, func(embed.Readiness) { o.emit() })
	return o
}

func (o *Orchestrator) User() *domain.LocalUser { return o.deps.User }

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Snapshot is a detached copy of the current view.
func (o *Orchestrator) Snapshot() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.viewLocked()
}

// Subscribe registers fn for every view change.
func (o *Orchestrator) Subscribe(fn func(View)) func() {
	return o.updates.Subscribe(fn)
}

func (o *Orchestrator) viewLocked() View {
	v := View{
		State:    o.state,
		RoomID:   o.roomID,
		Failure:  o.failure,
		Presence: o.last,
	}
	if l := o.live; l != nil {
		s := l.session
		v.Session = &s
		v.Connection = l.connSt
		v.Presence = l.store.Snapshot()
		v.Embed = o.tracker.State()
		if l.media != nil {
			v.MediaPeers = l.media.Peers()
		}
	}
	return v
}

func (o *Orchestrator) emit() {
	o.pubMu.Lock()
	defer o.pubMu.Unlock()
	o.mu.Lock()
	v := o.viewLocked()
	o.mu.Unlock()
	o.updates.Publish(v)
}

// Close ends any session as if the process were unloading and waits for
// background notifications and read loops.
func (o *Orchestrator) Close() {
	o.Unload()
	o.Wait()
	o.updates.Clear()
}

func (o *Orchestrator) Wait() {
	o.wg.Wait()
	o.tracker.Stop()
	o.mu.Lock()
	retired := o.retired
	o.retired = nil
	o.mu.Unlock()
	for _, c := range retired {
		c.Wait()
	}
}
