package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrTransportUnreachable        = errors.New("transport unreachable")
	ErrTransportClosedUnexpectedly = errors.New("transport closed unexpectedly")
	ErrNotConnected                = errors.New("not connected")
	ErrPasswordIncorrect           = errors.New("incorrect password")
	ErrRoomInactive                = errors.New("room has ended")
	ErrRoomFull                    = errors.New("room full")
	ErrRoomNotFound                = errors.New("room not found")
	ErrUnauthorized                = errors.New("unauthorized")
	ErrPermissionDenied            = errors.New("permission denied")
	ErrNotHost                     = errors.New("forbidden: not room host")
)

// RestRejectedError is a non-2xx answer from the REST backend.
type RestRejectedError struct {
	Status int
	Detail string
}

func (e *RestRejectedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("rest rejected: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("rest rejected: %d %s", e.Status, e.Detail)
}

// Is maps the backend's detail strings onto the taxonomy sentinels.
func (e *RestRejectedError) Is(target error) bool {
	d := strings.ToLower(e.Detail)
	switch target {
	case ErrPasswordIncorrect:
		return strings.Contains(d, "password")
	case ErrRoomInactive:
		return strings.Contains(d, "ended")
	case ErrRoomFull:
		return strings.Contains(d, "full")
	case ErrRoomNotFound:
		return e.Status == http.StatusNotFound || strings.Contains(d, "not found")
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || strings.Contains(d, "unauthorized") ||
			strings.Contains(d, "invalid credentials")
	}
	return false
}

type ConnectErrorKind int

const (
	ConnectUnreachable ConnectErrorKind = iota
	ConnectRejected
)

// ConnectError is returned by the first connect attempt of a room session.
type ConnectError struct {
	Kind ConnectErrorKind
	URL  string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func (e *ConnectError) Is(target error) bool {
	return target == ErrTransportUnreachable && e.Kind == ConnectUnreachable
}
