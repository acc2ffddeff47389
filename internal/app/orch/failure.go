package orch

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

type FailureKind string

const (
	// Retryable: show a retry control.
	Retryable FailureKind = "retryable"
	// PasswordRetry: re-prompt for the password.
	PasswordRetry FailureKind = "password_retry"
	// Redirect: back to room selection with the attempted code filled in.
	Redirect FailureKind = "redirect"
	Terminal FailureKind = "terminal"
)

const (
	msgIncorrectPassword = "Incorrect password. Please try again."
	msgPasswordRequired  = "This room is password protected."
	msgMeetingEnded      = "This meeting has been ended by the host."
	msgRoomFull          = "This room has reached its maximum capacity."
	msgRoomNotFound      = "Room not found. Check the code and try again."
	msgSignIn            = "Please try signing in to join this room."
	msgUnreachable       = "Unable to reach the meeting service. Please try again."
	msgConnectionLost    = "Connection to the room was lost."
)

// Failure is what the UI acts on; Err keeps the cause for logs and errors.Is.
type Failure struct {
	Kind     FailureKind   `json:"kind"`
	Title    string        `json:"title"`
	Message  string        `json:"message"`
	RoomCode domain.RoomID `json:"room_code,omitempty"`
	Err      error         `json:"-"`
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return f.Message + ": " + f.Err.Error()
	}
	return f.Message
}

func (f *Failure) Unwrap() error { return f.Err }

// Classify maps a join-phase error onto a Failure. Unknown errors are treated
// as transport problems and are retryable.
func Classify(err error, room domain.RoomID) *Failure {
	var rej *core.RestRejectedError
	switch {
	case errors.Is(err, core.ErrPasswordIncorrect):
		return &Failure{Kind: PasswordRetry, Title: "Incorrect Password", Message: msgIncorrectPassword, Err: err}
	case errors.Is(err, core.ErrUnauthorized):
		return &Failure{Kind: Terminal, Title: "Authentication Required", Message: msgSignIn, Err: err}
	case errors.Is(err, core.ErrRoomInactive):
		return &Failure{Kind: Redirect, Title: "Meeting Ended", Message: msgMeetingEnded, RoomCode: room, Err: err}
	case errors.Is(err, core.ErrRoomFull):
		return &Failure{Kind: Redirect, Title: "Room Full", Message: msgRoomFull, RoomCode: room, Err: err}
	case errors.Is(err, core.ErrRoomNotFound):
		return &Failure{Kind: Redirect, Title: "Room Not Found", Message: msgRoomNotFound, RoomCode: room, Err: err}
	case errors.As(err, &rej):
		if rej.Status >= http.StatusInternalServerError || rej.Status == http.StatusTooManyRequests {
			return &Failure{Kind: Retryable, Title: "Unable to Join Room", Message: msgUnreachable, Err: err}
		}
		msg := rej.Detail
		if msg == "" {
			msg = "Unable to join room"
		}
		return &Failure{Kind: Terminal, Title: "Unable to Join Room", Message: msg, Err: err}
	case errors.Is(err, core.ErrTransportUnreachable), errors.Is(err, context.DeadlineExceeded):
		return &Failure{Kind: Retryable, Title: "Unable to Join Room", Message: msgUnreachable, Err: err}
	}
	var ce *core.ConnectError
	if errors.As(err, &ce) {
		return &Failure{Kind: Terminal, Title: "Unable to Join Room", Message: "The room refused the connection.", Err: err}
	}
	return &Failure{Kind: Retryable, Title: "Unable to Join Room", Message: msgUnreachable, Err: err}
}
