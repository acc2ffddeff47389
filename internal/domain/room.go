package domain

import "time"

type RoomID string

// RoomMeta is the room metadata returned by GET /meet/room/{room_id}.
type RoomMeta struct {
	ID              RoomID   `json:"room_id"`
	HostID          UserID   `json:"host_id"`
	Title           string   `json:"room_title"`
	Description     string   `json:"room_description"`
	IsProtected     bool     `json:"is_protected"`
	RequirePassword bool     `json:"require_password"`
	Participants    []UserID `json:"participants"`
	MaxParticipants int      `json:"max_participants"`
	IsActive        bool     `json:"is_active"`
}

// Protected reports whether joining needs a password. The backend has used
// both field names.
func (m RoomMeta) Protected() bool { return m.RequirePassword || m.IsProtected }

func (m RoomMeta) HasParticipant(id UserID) bool {
	for _, p := range m.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// Full reports capacity for a newcomer; an existing participant may rejoin.
func (m RoomMeta) Full(id UserID) bool {
	if m.MaxParticipants <= 0 || m.HasParticipant(id) {
		return false
	}
	return len(m.Participants) >= m.MaxParticipants
}

// JoinResult is the body of a successful POST /meet/room/{room_id}/join.
type JoinResult struct {
	Status           string `json:"status,omitempty"`
	RoomID           RoomID `json:"room_id,omitempty"`
	EmbedURL         string `json:"embed_url"`
	MirotalkRoomID   string `json:"mirotalk_room_id"`
	ParticipantCount int    `json:"participant_count"`
}

// CreateRoom is the input of POST /meet/room/create.
type CreateRoom struct {
	HostID          UserID `json:"host_id"`
	Title           string `json:"room_title,omitempty"`
	Description     string `json:"room_description,omitempty"`
	Password        string `json:"password,omitempty"`
	MaxParticipants int    `json:"max_participants,omitempty"`
}

// CreatedRoom is the body of a successful POST /meet/room/create.
type CreatedRoom struct {
	RoomID   RoomID `json:"room_id"`
	JoinLink string `json:"join_link"`
	EmbedURL string `json:"embed_url,omitempty"`
}

// RecentRoom is one entry of the client-local recent rooms list.
type RecentRoom struct {
	RoomID      RoomID    `json:"room_id"`
	Title       string    `json:"room_title"`
	Description string    `json:"room_description"`
	CreatedAt   time.Time `json:"created_at"`
	IsHost      bool      `json:"is_host"`
}
