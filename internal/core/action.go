package core

import (
	"encoding/json"
	"time"

	"github.com/dkeye/Meet/internal/domain"
)

type ActionKind string

const (
	ActionToggleMic    ActionKind = "toggle_mic"
	ActionToggleCam    ActionKind = "toggle_cam"
	ActionToggleHand   ActionKind = "toggle_hand"
	ActionChatMessage  ActionKind = "chat_message"
	ActionHostForceMic ActionKind = "host_force_mic"
	ActionHostForceCam ActionKind = "host_force_cam"
)

// Privileged reports whether only a host may emit the action.
func (k ActionKind) Privileged() bool {
	return k == ActionHostForceMic || k == ActionHostForceCam
}

// Action is one outbound message, tagged by the action field.
type Action struct {
	Action       ActionKind    `json:"action"`
	UserID       domain.UserID `json:"user_id,omitempty"`
	DisplayName  string        `json:"display_name,omitempty"`
	Message      string        `json:"message,omitempty"`
	Timestamp    string        `json:"timestamp,omitempty"`
	TargetUserID domain.UserID `json:"target_user_id,omitempty"`
	Muted        *bool         `json:"muted,omitempty"`
	Off          *bool         `json:"off,omitempty"`

	SDP           string  `json:"sdp,omitempty"`
	Candidate     string  `json:"candidate,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

func (a Action) Encode() ([]byte, error) {
	return json.Marshal(a)
}

// stampLayout keeps milliseconds so two sends within a second stay distinct.
const stampLayout = "2006-01-02T15:04:05.000Z07:00"

func stamp(now time.Time) string { return now.UTC().Format(stampLayout) }

func ToggleMic(now time.Time) Action {
	return Action{Action: ActionToggleMic, Timestamp: stamp(now)}
}

func ToggleCam(now time.Time) Action {
	return Action{Action: ActionToggleCam, Timestamp: stamp(now)}
}

func ToggleHand(now time.Time) Action {
	return Action{Action: ActionToggleHand, Timestamp: stamp(now)}
}

func ChatMessage(user *domain.LocalUser, message string, now time.Time) Action {
	return Action{
		Action:      ActionChatMessage,
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Message:     message,
		Timestamp:   stamp(now),
	}
}
