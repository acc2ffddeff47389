// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
)

const (
	MaxUserIDLen      = 64
	MaxDisplayNameLen = 64
)

var (
	ErrUserIDEmpty        = errors.New("user id empty")
	ErrUserIDTooLong      = errors.New("user id too long")
	ErrDisplayNameTooLong = errors.New("display name too long")
)

type UserID string

// LocalUser is the authenticated attendee running this client.
type LocalUser struct {
	ID          UserID `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// NewLocalUser is a tiny helper to avoid ad-hoc struct literals in adapters.
// An empty display name falls back to the user id.
func NewLocalUser(id, displayName string) (*LocalUser, error) {
	if len(id) == 0 {
		return nil, ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	if displayName == "" {
		displayName = id
	}
	if len(displayName) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	return &LocalUser{ID: UserID(id), DisplayName: displayName}, nil
}
