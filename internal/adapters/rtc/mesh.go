package rtc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dkeye/Meet/internal/bus"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrMeshClosed  = errors.New("media mesh closed")
	ErrUnknownPeer = errors.New("unknown peer")
	// ErrGlare is returned by Answer when both sides offered at once and the
	// local offer wins.
	ErrGlare = errors.New("offer collision")
)

// Stream is a remote track from one peer.
type Stream struct {
	PeerID domain.UserID
	Track  *webrtc.TrackRemote
}

// Mesh keeps at most one Peer per remote user. When two users call each
// other at once the offer from the lower user id wins.
type Mesh struct {
	cfg  webrtc.Configuration
	ctx  context.Context
	self domain.UserID

	mu     sync.Mutex
	peers  map[domain.UserID]*Peer
	closed bool

	streams *bus.Bus[Stream]
}

func NewMesh(ctx context.Context, cfg webrtc.Configuration, self domain.UserID) *Mesh {
	return &Mesh{
		cfg:     cfg,
		ctx:     context.WithoutCancel(ctx),
		self:    self,
		peers:   make(map[domain.UserID]*Peer),
		streams: bus.New[Stream](),
	}
}

func (m *Mesh) OnStream(fn func(Stream)) func() { return m.streams.Subscribe(fn) }

// Call opens a connection to id and returns the offer to hand to it.
func (m *Mesh) Call(id domain.UserID) (*webrtc.SessionDescription, error) {
	p, err := m.open(id)
	if err != nil {
		return nil, err
	}
	if err := p.Receive(); err != nil {
		m.Hangup(id)
		return nil, fmt.Errorf("call %s: %w", id, err)
	}
	offer, err := p.CreateOffer()
	if err != nil {
		m.Hangup(id)
		return nil, fmt.Errorf("call %s: %w", id, err)
	}
	return offer, nil
}

// Answer accepts an incoming offer from id, replacing any previous peer
// unless our own pending offer to id takes precedence.
func (m *Mesh) Answer(id domain.UserID, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if old := m.peer(id); old != nil && old.SignalingState() == webrtc.SignalingStateHaveLocalOffer && m.self < id {
		return nil, fmt.Errorf("answer %s: %w", id, ErrGlare)
	}
	p, err := m.open(id)
	if err != nil {
		return nil, err
	}
	answer, err := p.ApplyOfferAndCreateAnswer(offer)
	if err != nil {
		m.Hangup(id)
		return nil, fmt.Errorf("answer %s: %w", id, err)
	}
	return answer, nil
}

func (m *Mesh) Accept(id domain.UserID, answer webrtc.SessionDescription) error {
	p := m.peer(id)
	if p == nil {
		return fmt.Errorf("accept %s: %w", id, ErrUnknownPeer)
	}
	return p.ApplyAnswer(answer)
}

func (m *Mesh) AddCandidate(id domain.UserID, c webrtc.ICECandidateInit) error {
	p := m.peer(id)
	if p == nil {
		return fmt.Errorf("candidate %s: %w", id, ErrUnknownPeer)
	}
	return p.AddICECandidate(c)
}

func (m *Mesh) Hangup(id domain.UserID) {
	m.mu.Lock()
	p := m.peers[id]
	delete(m.peers, id)
	m.mu.Unlock()
	if p != nil {
		p.Close()
	}
}

func (m *Mesh) Peers() []domain.UserID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]domain.UserID, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close hangs up every peer and refuses new ones.
func (m *Mesh) Close() {
	m.mu.Lock()
	m.closed = true
	peers := m.peers
	m.peers = make(map[domain.UserID]*Peer)
	m.mu.Unlock()

	for _, p := range peers {
		p.Close()
	}
	m.streams.Clear()
}

func (m *Mesh) peer(id domain.UserID) *Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peers[id]
}

func (m *Mesh) open(id domain.UserID) (*Peer, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrMeshClosed
	}
	old := m.peers[id]
	m.mu.Unlock()
	if old != nil {
		m.Hangup(id)
	}

	p, err := NewPeer(m.cfg, id)
	if err != nil {
		return nil, fmt.Errorf("peer %s: %w", id, err)
	}
	if err := p.Start(m.ctx); err != nil {
		p.Close()
		return nil, err
	}
	p.OnTrack(func(_ context.Context, track *webrtc.TrackRemote) {
		m.streams.Publish(Stream{PeerID: id, Track: track})
	})
	p.OnClosed(func() {
		m.mu.Lock()
		if m.peers[id] == p {
			delete(m.peers, id)
		}
		m.mu.Unlock()
		log.Info().Str("module", "rtc").Str("peer", string(id)).Msg("peer gone")
	})

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		p.Close()
		return nil, ErrMeshClosed
	}
	m.peers[id] = p
	m.mu.Unlock()
	return p, nil
}
