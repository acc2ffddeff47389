package orch

import (
	"errors"
	"slices"

	"github.com/dkeye/Meet/internal/adapters/rtc"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
)

// call offers a peer connection to a participant who just joined. Gathering
// blocks, so the offer is built off the read loop.
func (o *Orchestrator) call(l *live, peer domain.UserID) {
	if slices.Contains(l.media.Peers(), peer) {
		return
	}
	o.wg.Go(func() {
		offer, err := l.media.Call(peer)
		if err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("peer", string(peer)).Msg("call failed")
			return
		}
		o.relay(l, core.DescriptionAction(l.session.LocalUserID, peer, *offer))
	})
}

// onNegotiation handles rtc_* frames addressed to the local user.
func (o *Orchestrator) onNegotiation(l *live, ev core.WireEvent) {
	local := l.session.LocalUserID
	if l.media == nil || ev.TargetUserID != local || ev.UserID == "" || ev.UserID == local {
		return
	}
	o.mu.Lock()
	current := o.live == l
	o.mu.Unlock()
	if !current {
		return
	}

	peer := ev.UserID
	logger := log.With().Str("module", "orch").Str("peer", string(peer)).Str("type", string(ev.Type)).Logger()

	switch ev.Type {
	case core.EventRTCOffer:
		offer, ok := ev.Description()
		if !ok {
			logger.Warn().Msg("offer without sdp")
			return
		}
		o.wg.Go(func() {
			answer, err := l.media.Answer(peer, offer)
			if errors.Is(err, rtc.ErrGlare) {
				logger.Debug().Msg("offer collision, keeping ours")
				return
			}
			if err != nil {
				logger.Warn().Err(err).Msg("answer failed")
				return
			}
			o.relay(l, core.DescriptionAction(local, peer, *answer))
		})

	case core.EventRTCAnswer:
		answer, ok := ev.Description()
		if !ok {
			logger.Warn().Msg("answer without sdp")
			return
		}
		if err := l.media.Accept(peer, answer); err != nil {
			logger.Warn().Err(err).Msg("accept failed")
		}

	case core.EventRTCCandidate:
		c, ok := ev.ICECandidate()
		if !ok {
			return
		}
		if err := l.media.AddCandidate(peer, c); err != nil {
			logger.Debug().Err(err).Msg("candidate dropped")
		}
	}
	o.emit()
}

func (o *Orchestrator) onStream(l *live, s rtc.Stream) {
	o.mu.Lock()
	current := o.live == l
	o.mu.Unlock()
	if !current {
		return
	}
	ev := log.Info().Str("module", "orch").Str("peer", string(s.PeerID))
	if s.Track != nil {
		ev = ev.Str("kind", s.Track.Kind().String())
	}
	ev.Msg("peer media flowing")
	o.emit()
}

// relay sends a negotiation action on the connection that produced it, unless
// that session is already gone.
func (o *Orchestrator) relay(l *live, a core.Action) {
	o.mu.Lock()
	current := o.live == l
	o.mu.Unlock()
	if !current {
		return
	}
	if err := l.conn.Send(a); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("peer", string(a.TargetUserID)).Str("action", string(a.Action)).Msg("negotiation not sent")
	}
	o.emit()
}
