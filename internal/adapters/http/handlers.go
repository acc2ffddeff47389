package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/Meet/internal/adapters/embed"
	"github.com/dkeye/Meet/internal/adapters/signal"
	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const suggestedRoomKey = "suggested_room"

type handlers struct {
	ctl        Controller
	translator *embed.Translator
	pingPeriod time.Duration
}

type StartRequest struct {
	RoomID   string `json:"room_id" binding:"required"`
	Password string `json:"password"`
}

type PasswordRequest struct {
	Password string `json:"password"`
}

type ActionRequest struct {
	Action       core.ActionKind `json:"action" binding:"required"`
	TargetUserID string          `json:"target_user_id"`
	Muted        *bool           `json:"muted"`
	Off          *bool           `json:"off"`
	Message      string          `json:"message"`
}

type EmbedMessageRequest struct {
	Origin string          `json:"origin" binding:"required"`
	Data   json.RawMessage `json:"data"`
}

type CreateRoomRequest struct {
	Title           string `json:"room_title"`
	Description     string `json:"room_description"`
	Password        string `json:"password"`
	MaxParticipants int    `json:"max_participants" binding:"omitempty,min=1,max=100"`
}

func (h *handlers) session(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctl.Snapshot())
}

func (h *handlers) start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid room_id"})
		return
	}
	err := h.ctl.Start(c.Request.Context(), domain.RoomID(req.RoomID), req.Password)
	h.reply(c, err)
}

func (h *handlers) password(c *gin.Context) {
	var req PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	h.reply(c, h.ctl.SubmitPassword(c.Request.Context(), req.Password))
}

func (h *handlers) leave(c *gin.Context) { h.reply(c, h.ctl.Leave()) }
func (h *handlers) end(c *gin.Context)   { h.reply(c, h.ctl.End()) }

// unload is hit from a closing tab; it never fails.
func (h *handlers) unload(c *gin.Context) {
	h.ctl.Unload()
	c.Status(http.StatusAccepted)
}

func (h *handlers) action(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid action"})
		return
	}

	var err error
	switch req.Action {
	case core.ActionToggleMic:
		err = h.ctl.ToggleMic()
	case core.ActionToggleCam:
		err = h.ctl.ToggleCam()
	case core.ActionToggleHand:
		err = h.ctl.ToggleHand()
	case core.ActionChatMessage:
		err = h.ctl.SendChat(req.Message)
	case core.ActionHostForceMic:
		if req.TargetUserID == "" || req.Muted == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "target_user_id and muted are required"})
			return
		}
		err = h.ctl.ForceMic(domain.UserID(req.TargetUserID), *req.Muted)
	case core.ActionHostForceCam:
		if req.TargetUserID == "" || req.Off == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "target_user_id and off are required"})
			return
		}
		err = h.ctl.ForceCam(domain.UserID(req.TargetUserID), *req.Off)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}
	h.reply(c, err)
}

func (h *handlers) retryEmbed(c *gin.Context) {
	next, err := h.ctl.RetryEmbed()
	if err != nil {
		h.reply(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"embed_url": next})
}

func (h *handlers) embedMessage(c *gin.Context) {
	var req EmbedMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing origin"})
		return
	}
	sig, ok := h.translator.Translate(req.Origin, req.Data)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
		return
	}
	h.ctl.OnEmbedSignal(sig)
	c.JSON(http.StatusOK, gin.H{"signal": sig.String()})
}

func (h *handlers) createRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.ctl.CreateRoom(c.Request.Context(), domain.CreateRoom{
		Title:           req.Title,
		Description:     req.Description,
		Password:        req.Password,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		h.reply(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *handlers) recent(c *gin.Context) {
	list, err := h.ctl.Recent(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("recent rooms")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recent rooms unavailable"})
		return
	}
	if list == nil {
		list = []domain.RecentRoom{}
	}
	c.JSON(http.StatusOK, list)
}

// dashboard returns the recent rooms and, once, the room code of the last
// redirect so the UI can pre-fill it.
func (h *handlers) dashboard(c *gin.Context) {
	list, err := h.ctl.Recent(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("recent rooms")
	}
	if list == nil {
		list = []domain.RecentRoom{}
	}

	s := sessions.Default(c)
	code, _ := s.Get(suggestedRoomKey).(string)
	if code != "" {
		s.Delete(suggestedRoomKey)
		_ = s.Save()
	}
	c.JSON(http.StatusOK, gin.H{"recent": list, "suggested_room_code": code})
}

// reply answers with the current view, or with the error and its status.
func (h *handlers) reply(c *gin.Context, err error) {
	if err == nil {
		c.JSON(http.StatusOK, h.ctl.Snapshot())
		return
	}

	var f *orch.Failure
	if errors.As(err, &f) && f.Kind == orch.Redirect && f.RoomCode != "" {
		s := sessions.Default(c)
		s.Set(suggestedRoomKey, string(f.RoomCode))
		if serr := s.Save(); serr != nil {
			log.Warn().Err(serr).Str("module", "adapters.http").Msg("session save")
		}
	}

	status := statusOf(err)
	body := gin.H{"error": err.Error(), "view": h.ctl.Snapshot()}
	if f != nil {
		body["error"] = f.Message
		body["failure"] = f
	}
	log.Debug().Err(err).Str("module", "adapters.http").Str("client", c.GetString("client_token")).Int("status", status).Msg("request failed")
	c.JSON(status, body)
}

func statusOf(err error) int {
	var f *orch.Failure
	if errors.As(err, &f) {
		switch f.Kind {
		case orch.PasswordRetry:
			return http.StatusUnauthorized
		case orch.Redirect:
			return http.StatusConflict
		case orch.Retryable:
			return http.StatusServiceUnavailable
		default:
			if errors.Is(err, core.ErrUnauthorized) {
				return http.StatusUnauthorized
			}
			return http.StatusUnprocessableEntity
		}
	}
	switch {
	case errors.Is(err, core.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, orch.ErrBusy), errors.Is(err, orch.ErrNoSession), errors.Is(err, orch.ErrNotAwaiting), errors.Is(err, orch.ErrAborted):
		return http.StatusConflict
	case errors.Is(err, orch.ErrEmptyMessage), errors.Is(err, orch.ErrPasswordRequired):
		return http.StatusBadRequest
	case errors.Is(err, signal.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrNotConnected), errors.Is(err, core.ErrTransportUnreachable):
		return http.StatusServiceUnavailable
	}
	var rej *core.RestRejectedError
	if errors.As(err, &rej) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
