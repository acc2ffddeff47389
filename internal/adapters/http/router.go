// Package http is the local bridge that exposes the room session to a UI over
// JSON endpoints and a WebSocket stream of views.
package http

import (
	"context"

	"github.com/dkeye/Meet/internal/adapters/embed"
	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/recent"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Controller is the part of the orchestrator the bridge drives.
type Controller interface {
	User() *domain.LocalUser
	Snapshot() orch.View
	Subscribe(fn func(orch.View)) func()

	Start(ctx context.Context, roomID domain.RoomID, password string) error
	SubmitPassword(ctx context.Context, password string) error
	Leave() error
	End() error
	Unload()

	ToggleMic() error
	ToggleCam() error
	ToggleHand() error
	SendChat(message string) error
	ForceMic(target domain.UserID, muted bool) error
	ForceCam(target domain.UserID, off bool) error

	OnEmbedSignal(sig embed.Signal)
	RetryEmbed() (string, error)

	CreateRoom(ctx context.Context, in domain.CreateRoom) (domain.CreatedRoom, error)
	Recent(ctx context.Context) (recent.List, error)
}

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("MeetSessions", store))
	r.Use(ClientTokenMiddleware())

	h := &handlers{
		ctl:        ctl,
		translator: embed.NewTranslator(cfg.EmbedOrigin),
		pingPeriod: defaultPingPeriod,
	}

	api := r.Group("/api")

	api.GET("/session", h.session)
	api.POST("/session/start", h.start)
	api.POST("/session/password", h.password)
	api.POST("/session/leave", h.leave)
	api.POST("/session/end", h.end)
	api.POST("/session/unload", h.unload)
	api.POST("/session/actions", h.action)
	api.POST("/session/embed/retry", h.retryEmbed)

	api.POST("/embed/message", h.embedMessage)

	api.POST("/rooms", h.createRoom)
	api.GET("/recent", h.recent)
	api.GET("/dashboard", h.dashboard)

	api.GET("/ws/updates", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws updates endpoint hit")
		h.updates(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("user", string(ctl.User().ID)).Msg("router setup")
	return r
}
