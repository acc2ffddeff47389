package orch

import (
	"context"
	"fmt"
	"strings"

	"github.com/dkeye/Meet/internal/adapters/rtc"
	"github.com/dkeye/Meet/internal/adapters/signal"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/presence"
	"github.com/dkeye/Meet/internal/recent"
	"github.com/rs/zerolog/log"
)

// Start checks the room and joins it. A *Failure is returned when the attempt
// did not reach InSession; AwaitingPassword is not a failure.
func (o *Orchestrator) Start(ctx context.Context, roomID domain.RoomID, password string) error {
	roomID = domain.RoomID(strings.TrimSpace(string(roomID)))
	if roomID == "" {
		return &Failure{Kind: Terminal, Title: "Unable to Join Room", Message: "A room code is required.", Err: core.ErrRoomNotFound}
	}

	o.mu.Lock()
	switch o.state {
	case StateIdle, StateEnded, StateAwaitingPassword:
	default:
		o.mu.Unlock()
		return ErrBusy
	}
	o.gen++
	gen := o.gen
	o.state = StateCheckingRoom
	o.roomID = roomID
	o.pending = nil
	o.failure = nil
	o.last = presence.NewStore().Snapshot()
	o.mu.Unlock()
	o.emit()

	logger := log.With().Str("module", "orch").Str("room", string(roomID)).Str("user", string(o.deps.User.ID)).Logger()
	logger.Info().Msg("checking room")

	meta, err := o.deps.API.GetRoom(ctx, roomID)
	if err != nil {
		return o.fail(gen, StateIdle, Classify(err, roomID))
	}
	if !meta.IsActive {
		return o.fail(gen, StateEnded, &Failure{
			Kind: Terminal, Title: "Meeting Ended", Message: msgMeetingEnded, RoomCode: roomID, Err: core.ErrRoomInactive,
		})
	}
	if meta.Full(o.deps.User.ID) {
		return o.fail(gen, StateIdle, &Failure{
			Kind: Redirect, Title: "Room Full", Message: msgRoomFull, RoomCode: roomID, Err: core.ErrRoomFull,
		})
	}
	if meta.Protected() && password == "" {
		o.mu.Lock()
		if o.gen != gen {
			o.mu.Unlock()
			return ErrAborted
		}
		o.state = StateAwaitingPassword
		o.pending = &meta
		o.mu.Unlock()
		logger.Info().Msg("awaiting password")
		o.emit()
		return nil
	}
	return o.join(ctx, gen, meta, password)
}

// SubmitPassword retries the join of a protected room.
func (o *Orchestrator) SubmitPassword(ctx context.Context, password string) error {
	o.mu.Lock()
	if o.state != StateAwaitingPassword || o.pending == nil {
		o.mu.Unlock()
		return ErrNotAwaiting
	}
	if password == "" {
		o.failure = &Failure{Kind: PasswordRetry, Title: "Password Required", Message: msgPasswordRequired, Err: ErrPasswordRequired}
		o.mu.Unlock()
		o.emit()
		return ErrPasswordRequired
	}
	o.gen++
	gen := o.gen
	meta := *o.pending
	o.mu.Unlock()
	return o.join(ctx, gen, meta, password)
}

func (o *Orchestrator) join(ctx context.Context, gen int, meta domain.RoomMeta, password string) error {
	user := o.deps.User
	logger := log.With().Str("module", "orch").Str("room", string(meta.ID)).Str("user", string(user.ID)).Logger()

	if !o.transition(gen, StateJoining) {
		return ErrAborted
	}

	res, err := o.deps.API.JoinRoom(ctx, meta.ID, user, password)
	if err != nil {
		f := Classify(err, meta.ID)
		if f.Kind == PasswordRetry {
			o.mu.Lock()
			if o.gen == gen {
				o.state = StateAwaitingPassword
				o.pending = &meta
				o.failure = f
			}
			o.mu.Unlock()
			logger.Warn().Err(err).Msg("password rejected")
			o.emit()
			return f
		}
		return o.fail(gen, StateIdle, f)
	}

	l := &live{
		session: Session{
			RoomID:      meta.ID,
			LocalUserID: user.ID,
			Host:        user.ID == meta.HostID,
			Title:       meta.Title,
			Description: meta.Description,
			EmbedURL:    res.EmbedURL,
		},
		conn:   o.deps.Connect(),
		store:  presence.NewStore(),
		connSt: signal.StateIdle,
	}
	if o.deps.Media != nil {
		l.media = o.deps.Media()
	}
	l.unsubs = append(l.unsubs,
		l.conn.OnEvent(func(ev core.WireEvent) { o.onEvent(l, ev) }),
		l.conn.OnState(func(s signal.State) { o.onConnState(l, s) }),
	)
	if l.media != nil {
		l.unsubs = append(l.unsubs, l.media.OnStream(func(s rtc.Stream) { o.onStream(l, s) }))
	}

	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		o.teardown(l)
		return ErrAborted
	}
	o.live = l
	o.mu.Unlock()

	if err := l.conn.Connect(ctx, meta.ID, user.ID); err != nil {
		o.mu.Lock()
		owned := o.live == l
		if owned {
			o.live = nil
		}
		o.mu.Unlock()
		if !owned {
			// a concurrent exit already tore down and notified
			return ErrAborted
		}
		o.teardown(l)
		o.notify(meta.ID, false)
		return o.fail(gen, StateIdle, Classify(err, meta.ID))
	}

	o.mu.Lock()
	if o.gen != gen || o.live != l {
		o.mu.Unlock()
		return ErrAborted
	}
	o.state = StateInSession
	o.pending = nil
	o.failure = nil
	o.mu.Unlock()

	o.tracker.Start()
	logger.Info().Bool("host", l.session.Host).Int("participants", res.ParticipantCount).Msg("in session")

	entry := domain.RecentRoom{
		RoomID:      meta.ID,
		Title:       meta.Title,
		Description: meta.Description,
		CreatedAt:   o.deps.Clock.Now().UTC(),
		IsHost:      l.session.Host,
	}
	if entry.Title == "" {
		entry.Title = "Video Conference"
	}
	if err := o.deps.Recent.Push(ctx, entry); err != nil {
		logger.Warn().Err(err).Msg("recent rooms not updated")
	}
	o.emit()
	return nil
}

// transition moves to s when the attempt is still current.
func (o *Orchestrator) transition(gen int, s State) bool {
	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		return false
	}
	o.state = s
	o.mu.Unlock()
	o.emit()
	return true
}

func (o *Orchestrator) fail(gen int, to State, f *Failure) error {
	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		return ErrAborted
	}
	o.state = to
	o.pending = nil
	o.failure = f
	room := o.roomID
	o.mu.Unlock()

	log.Warn().Err(f.Err).Str("module", "orch").Str("room", string(room)).Str("kind", string(f.Kind)).Msg(f.Message)
	o.emit()
	return f
}

// CreateRoom creates a room hosted by the local user and records it as recent.
func (o *Orchestrator) CreateRoom(ctx context.Context, in domain.CreateRoom) (domain.CreatedRoom, error) {
	in.HostID = o.deps.User.ID
	if strings.TrimSpace(in.Title) == "" {
		in.Title = "Video Conference"
	}
	out, err := o.deps.API.CreateRoom(ctx, in)
	if err != nil {
		return domain.CreatedRoom{}, fmt.Errorf("create room: %w", err)
	}
	entry := domain.RecentRoom{
		RoomID:      out.RoomID,
		Title:       in.Title,
		Description: in.Description,
		CreatedAt:   o.deps.Clock.Now().UTC(),
		IsHost:      true,
	}
	if err := o.deps.Recent.Push(ctx, entry); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room", string(out.RoomID)).Msg("recent rooms not updated")
	}
	log.Info().Str("module", "orch").Str("room", string(out.RoomID)).Msg("room created")
	return out, nil
}

func (o *Orchestrator) Recent(ctx context.Context) (recent.List, error) {
	return o.deps.Recent.List(ctx)
}
