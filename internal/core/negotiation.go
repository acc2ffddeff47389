package core

import (
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Peer media negotiation rides the presence socket. The server fans rtc_*
// actions out unchanged and only the addressee acts on them.
const (
	ActionRTCOffer     ActionKind = "rtc_offer"
	ActionRTCAnswer    ActionKind = "rtc_answer"
	ActionRTCCandidate ActionKind = "rtc_candidate"
)

// DescriptionAction addresses an offer or answer to one participant.
func DescriptionAction(from, to domain.UserID, sd webrtc.SessionDescription) Action {
	kind := ActionRTCOffer
	if sd.Type == webrtc.SDPTypeAnswer {
		kind = ActionRTCAnswer
	}
	return Action{Action: kind, UserID: from, TargetUserID: to, SDP: sd.SDP}
}

func CandidateAction(from, to domain.UserID, ci webrtc.ICECandidateInit) Action {
	return Action{
		Action:        ActionRTCCandidate,
		UserID:        from,
		TargetUserID:  to,
		Candidate:     ci.Candidate,
		SDPMid:        ci.SDPMid,
		SDPMLineIndex: ci.SDPMLineIndex,
	}
}

// Description returns the session description of an rtc_offer or rtc_answer frame.
func (e WireEvent) Description() (webrtc.SessionDescription, bool) {
	var typ webrtc.SDPType
	switch e.Type {
	case EventRTCOffer:
		typ = webrtc.SDPTypeOffer
	case EventRTCAnswer:
		typ = webrtc.SDPTypeAnswer
	default:
		return webrtc.SessionDescription{}, false
	}
	if e.SDP == "" {
		return webrtc.SessionDescription{}, false
	}
	return webrtc.SessionDescription{Type: typ, SDP: e.SDP}, true
}

func (e WireEvent) ICECandidate() (webrtc.ICECandidateInit, bool) {
	if e.Type != EventRTCCandidate || e.Candidate == "" {
		return webrtc.ICECandidateInit{}, false
	}
	return webrtc.ICECandidateInit{
		Candidate:     e.Candidate,
		SDPMid:        e.SDPMid,
		SDPMLineIndex: e.SDPMLineIndex,
	}, true
}
