package orch

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/adapters/rtc"
	"github.com/dkeye/Meet/internal/adapters/signal"
	"github.com/dkeye/Meet/internal/bus"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/webrtc/v4"
)

type fakeAPI struct {
	mu       sync.Mutex
	meta     domain.RoomMeta
	getErr   error
	password string
	joinErr  error
	joins    []string
	leaves   []domain.UserID
	ends     []domain.RoomID
	created  []domain.CreateRoom
}

func (a *fakeAPI) CreateRoom(_ context.Context, in domain.CreateRoom) (domain.CreatedRoom, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.created = append(a.created, in)
	return domain.CreatedRoom{RoomID: "new-room", JoinLink: "/room/new-room"}, nil
}

func (a *fakeAPI) GetRoom(context.Context, domain.RoomID) (domain.RoomMeta, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.meta, a.getErr
}

func (a *fakeAPI) JoinRoom(_ context.Context, room domain.RoomID, _ *domain.LocalUser, password string) (domain.JoinResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.joins = append(a.joins, password)
	if a.joinErr != nil {
		return domain.JoinResult{}, a.joinErr
	}
	if a.password != "" && password != a.password {
		return domain.JoinResult{}, &core.RestRejectedError{Status: 403, Detail: "Incorrect password"}
	}
	return domain.JoinResult{EmbedURL: "https://sfu.example.com/join?room=" + string(room), ParticipantCount: 4}, nil
}

func (a *fakeAPI) LeaveRoom(_ context.Context, _ domain.RoomID, user domain.UserID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.leaves = append(a.leaves, user)
	return nil
}

func (a *fakeAPI) EndRoom(_ context.Context, room domain.RoomID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ends = append(a.ends, room)
	return nil
}

func (a *fakeAPI) counts() (joins, leaves, ends int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.joins), len(a.leaves), len(a.ends)
}

type fakeConn struct {
	connectErr error
	// entered and release, when set, hold Connect open until the test lets go.
	entered chan struct{}
	release chan struct{}

	mu          sync.Mutex
	sent        []core.Action
	sendErr     error
	disconnects int
	connectedTo domain.RoomID
	events      *bus.Bus[core.WireEvent]
	states      *bus.Bus[signal.State]
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: bus.New[core.WireEvent](), states: bus.New[signal.State]()}
}

func (c *fakeConn) Connect(_ context.Context, room domain.RoomID, _ domain.UserID) error {
	if c.release != nil {
		close(c.entered)
		<-c.release
	}
	if c.connectErr != nil {
		return c.connectErr
	}
	c.mu.Lock()
	c.connectedTo = room
	c.mu.Unlock()
	c.states.Publish(signal.StateConnected)
	return nil
}

func (c *fakeConn) Send(a core.Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, a)
	return nil
}

func (c *fakeConn) OnEvent(fn func(core.WireEvent)) func() { return c.events.Subscribe(fn) }
func (c *fakeConn) OnState(fn func(signal.State)) func()   { return c.states.Subscribe(fn) }

func (c *fakeConn) Disconnect() {
	c.mu.Lock()
	c.disconnects++
	c.mu.Unlock()
	c.events.Clear()
	c.states.Clear()
}

func (c *fakeConn) Wait() {}

func (c *fakeConn) emit(ev core.WireEvent) { c.events.Publish(ev) }

func (c *fakeConn) sentActions() []core.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Action(nil), c.sent...)
}

func (c *fakeConn) disconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

type fakeMedia struct {
	mu         sync.Mutex
	calls      []domain.UserID
	answered   []domain.UserID
	accepted   []domain.UserID
	candidates []webrtc.ICECandidateInit
	peers      []domain.UserID
	answerErr  error
	hangups    []domain.UserID
	closed     int
	streams    *bus.Bus[rtc.Stream]
}

func newFakeMedia() *fakeMedia { return &fakeMedia{streams: bus.New[rtc.Stream]()} }

func (m *fakeMedia) Call(id domain.UserID) (*webrtc.SessionDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, id)
	m.peers = append(m.peers, id)
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-for-" + string(id)}, nil
}

func (m *fakeMedia) Answer(id domain.UserID, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.answerErr != nil {
		return nil, m.answerErr
	}
	m.answered = append(m.answered, id)
	m.peers = append(m.peers, id)
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-to-" + offer.SDP}, nil
}

func (m *fakeMedia) Accept(id domain.UserID, _ webrtc.SessionDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted = append(m.accepted, id)
	return nil
}

func (m *fakeMedia) AddCandidate(_ domain.UserID, c webrtc.ICECandidateInit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = append(m.candidates, c)
	return nil
}

func (m *fakeMedia) OnStream(fn func(rtc.Stream)) func() { return m.streams.Subscribe(fn) }

func (m *fakeMedia) Peers() []domain.UserID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.UserID(nil), m.peers...)
}

func (m *fakeMedia) Hangup(id domain.UserID) {
	m.mu.Lock()
	m.hangups = append(m.hangups, id)
	m.peers = slices.DeleteFunc(m.peers, func(p domain.UserID) bool { return p == id })
	m.mu.Unlock()
}

func (m *fakeMedia) Close() {
	m.mu.Lock()
	m.closed++
	m.peers = nil
	m.mu.Unlock()
	m.streams.Clear()
}

func (m *fakeMedia) record() (calls, answered, accepted []domain.UserID, candidates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls), slices.Clone(m.answered), slices.Clone(m.accepted), len(m.candidates)
}

type stillClock struct{ now time.Time }

func (c stillClock) Now() time.Time                       { return c.now }
func (c stillClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

type harness struct {
	api   *fakeAPI
	conn  *fakeConn
	media *fakeMedia
	o     *Orchestrator

	mu     sync.Mutex
	states []State
}

func newHarness(user domain.UserID, meta domain.RoomMeta) *harness {
	h := &harness{
		api:   &fakeAPI{meta: meta},
		conn:  newFakeConn(),
		media: newFakeMedia(),
	}
	h.o = New(Deps{
		API:     h.api,
		Connect: func() Connection { return h.conn },
		Media:   func() Media { return h.media },
		User:    &domain.LocalUser{ID: user, DisplayName: string(user)},
		Clock:   stillClock{now: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)},
	})
	h.o.Subscribe(func(v View) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if n := len(h.states); n == 0 || h.states[n-1] != v.State {
			h.states = append(h.states, v.State)
		}
	})
	return h
}

func (h *harness) seen() []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]State(nil), h.states...)
}

func openRoom() domain.RoomMeta {
	return domain.RoomMeta{
		ID:              "room1",
		HostID:          "host",
		Title:           "Weekly",
		Participants:    []domain.UserID{"a", "b", "c"},
		MaxParticipants: 10,
		IsActive:        true,
	}
}
