package rtc

import (
	"context"
	"testing"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localConfig() webrtc.Configuration { return webrtc.Configuration{} }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers[0].URLs)

	cfg = DefaultConfig("stun:a:3478", "stun:b:3478")
	assert.Equal(t, []string{"stun:a:3478", "stun:b:3478"}, cfg.ICEServers[0].URLs)
}

func TestMeshOfferAnswer(t *testing.T) {
	ctx := context.Background()
	alice := NewMesh(ctx, localConfig(), "alice")
	bob := NewMesh(ctx, localConfig(), "bob")
	t.Cleanup(alice.Close)
	t.Cleanup(bob.Close)

	offer, err := alice.Call("bob")
	require.NoError(t, err)
	require.Equal(t, webrtc.SDPTypeOffer, offer.Type)

	answer, err := bob.Answer("alice", *offer)
	require.NoError(t, err)
	require.Equal(t, webrtc.SDPTypeAnswer, answer.Type)

	require.NoError(t, alice.Accept("bob", *answer))
	assert.Equal(t, []domain.UserID{"bob"}, alice.Peers())
	assert.Equal(t, []domain.UserID{"alice"}, bob.Peers())
	assert.Equal(t, webrtc.SignalingStateStable, alice.peer("bob").SignalingState())
}

func TestMeshHangupAndClose(t *testing.T) {
	m := NewMesh(context.Background(), localConfig(), "me")

	_, err := m.Call("a")
	require.NoError(t, err)
	_, err = m.Call("b")
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"a", "b"}, m.Peers())

	m.Hangup("a")
	m.Hangup("ghost")
	assert.Equal(t, []domain.UserID{"b"}, m.Peers())

	m.Close()
	assert.Empty(t, m.Peers())

	_, err = m.Call("c")
	assert.ErrorIs(t, err, ErrMeshClosed)
}

func TestMeshUnknownPeer(t *testing.T) {
	m := NewMesh(context.Background(), localConfig(), "me")
	t.Cleanup(m.Close)

	err := m.Accept("nobody", webrtc.SessionDescription{})
	assert.ErrorIs(t, err, ErrUnknownPeer)
	err = m.AddCandidate("nobody", webrtc.ICECandidateInit{Candidate: ""})
	assert.ErrorIs(t, err, ErrUnknownPeer)
}

func TestPeerOnClosedOnce(t *testing.T) {
	p, err := NewPeer(localConfig(), "x")
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	calls := 0
	p.OnClosed(func() { calls++ })
	p.Close()
	p.Close()
	assert.Equal(t, 1, calls)
}

func TestRecallReplacesPeer(t *testing.T) {
	m := NewMesh(context.Background(), localConfig(), "me")
	t.Cleanup(m.Close)

	_, err := m.Call("a")
	require.NoError(t, err)
	first := m.peer("a")

	_, err = m.Call("a")
	require.NoError(t, err)
	assert.NotSame(t, first, m.peer("a"))
	assert.Len(t, m.Peers(), 1)
}

func TestMeshGlare(t *testing.T) {
	ctx := context.Background()
	alice := NewMesh(ctx, localConfig(), "alice")
	bob := NewMesh(ctx, localConfig(), "bob")
	t.Cleanup(alice.Close)
	t.Cleanup(bob.Close)

	fromAlice, err := alice.Call("bob")
	require.NoError(t, err)
	fromBob, err := bob.Call("alice")
	require.NoError(t, err)

	// alice has the lower id, so her offer stands and bob's is refused
	_, err = alice.Answer("bob", *fromBob)
	assert.ErrorIs(t, err, ErrGlare)
	assert.Equal(t, webrtc.SignalingStateHaveLocalOffer, alice.peer("bob").SignalingState())

	answer, err := bob.Answer("alice", *fromAlice)
	require.NoError(t, err)
	require.NoError(t, alice.Accept("bob", *answer))
	assert.Equal(t, webrtc.SignalingStateStable, alice.peer("bob").SignalingState())
	assert.Equal(t, webrtc.SignalingStateStable, bob.peer("alice").SignalingState())
}
