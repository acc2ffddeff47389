package core

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Meet/internal/domain"
)

type EventKind string

const (
	EventJoin         EventKind = "join"
	EventLeave        EventKind = "leave"
	EventMicUpdate    EventKind = "mic_update"
	EventCamUpdate    EventKind = "cam_update"
	EventHandUpdate   EventKind = "hand_update"
	EventChat         EventKind = "chat"
	EventHostForceMic EventKind = "host_force_mic"
	EventHostForceCam EventKind = "host_force_cam"

	EventRTCOffer     EventKind = "rtc_offer"
	EventRTCAnswer    EventKind = "rtc_answer"
	EventRTCCandidate EventKind = "rtc_candidate"
)

func (k EventKind) Known() bool {
	switch k {
	case EventJoin, EventLeave, EventMicUpdate, EventCamUpdate, EventHandUpdate,
		EventChat, EventHostForceMic, EventHostForceCam,
		EventRTCOffer, EventRTCAnswer, EventRTCCandidate:
		return true
	}
	return false
}

// Negotiation reports whether the frame is peer media signaling rather than presence.
func (k EventKind) Negotiation() bool {
	return k == EventRTCOffer || k == EventRTCAnswer || k == EventRTCCandidate
}

// WireEvent is one inbound presence message. Flag fields are pointers so a
// missing field can be told apart from false.
type WireEvent struct {
	Type        EventKind     `json:"type"`
	UserID      domain.UserID `json:"user_id"`
	DisplayName string        `json:"display_name,omitempty"`
	Message     string        `json:"message,omitempty"`
	Timestamp   string        `json:"timestamp,omitempty"`
	MicMuted    *bool         `json:"mic_muted,omitempty"`
	CamOff      *bool         `json:"cam_off,omitempty"`
	HandRaised  *bool         `json:"hand_raised,omitempty"`

	// host_force_* broadcasts may reuse the outbound field names.
	Muted *bool `json:"muted,omitempty"`
	Off   *bool `json:"off,omitempty"`

	// rtc_* frames are relayed as sent; UserID is the sender.
	TargetUserID  domain.UserID `json:"target_user_id,omitempty"`
	SDP           string        `json:"sdp,omitempty"`
	Candidate     string        `json:"candidate,omitempty"`
	SDPMid        *string       `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16       `json:"sdpMLineIndex,omitempty"`
}

// DecodeEvent parses a raw frame. Unknown tags decode fine; callers check Type.Known.
func DecodeEvent(data []byte) (WireEvent, error) {
	var ev WireEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return WireEvent{}, fmt.Errorf("decode wire event: %w", err)
	}
	return ev, nil
}

// MicValue returns the mic flag carried by mic_update or host_force_mic.
func (e WireEvent) MicValue() (bool, bool) {
	if e.MicMuted != nil {
		return *e.MicMuted, true
	}
	if e.Type == EventHostForceMic && e.Muted != nil {
		return *e.Muted, true
	}
	return false, false
}

// CamValue returns the camera flag carried by cam_update or host_force_cam.
func (e WireEvent) CamValue() (bool, bool) {
	if e.CamOff != nil {
		return *e.CamOff, true
	}
	if e.Type == EventHostForceCam && e.Off != nil {
		return *e.Off, true
	}
	return false, false
}

func (e WireEvent) HandValue() (bool, bool) {
	if e.HandRaised != nil {
		return *e.HandRaised, true
	}
	return false, false
}

// Bool is a helper for building events in adapters and tests.
func Bool(v bool) *bool { return &v }
