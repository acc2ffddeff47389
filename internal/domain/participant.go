package domain

// Participant is one attendee's presence in a room.
// No transport or lifecycle logic here.
type Participant struct {
	UserID      UserID `json:"user_id"`
	DisplayName string `json:"display_name"`
	MicMuted    bool   `json:"mic_muted"`
	CamOff      bool   `json:"cam_off"`
	HandRaised  bool   `json:"hand_raised"`
}

// NewParticipant returns a participant with default flags: unmuted, camera on, hand down.
func NewParticipant(id UserID, displayName string) Participant {
	return Participant{UserID: id, DisplayName: displayName}
}

// ChatMessage is immutable once received. Timestamp is a display hint only,
// history is kept in receive order.
type ChatMessage struct {
	UserID      UserID `json:"user_id"`
	DisplayName string `json:"display_name"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
}
