package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Meet/internal/adapters/http"
	"github.com/dkeye/Meet/internal/adapters/rest"
	"github.com/dkeye/Meet/internal/adapters/rtc"
	sig "github.com/dkeye/Meet/internal/adapters/signal"
	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/recent"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	userID := cfg.UserID
	if userID == "" {
		userID = uuid.NewString()
	}
	user, err := domain.NewLocalUser(userID, cfg.DisplayName)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid local user")
	}

	store, closeStore, err := recentStore(ctx, cfg, user.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("recent rooms store")
	}
	defer closeStore()

	api := rest.New(cfg.APIBaseURL, rest.WithToken(cfg.AccessToken), rest.WithTimeout(cfg.RequestTimeout))
	limiter := sig.NewRoomRateLimiter(cfg.ChatRateLimit, cfg.ChatRateInterval)
	dialer := sig.NewWSDialer(cfg.ReadLimit)

	deps := orch.Deps{
		API: api,
		Connect: func() orch.Connection {
			return sig.NewManager(sig.Options{
				BaseURL:     cfg.WSBaseURL,
				MaxAttempts: cfg.ReconnectAttempts,
				BaseDelay:   cfg.ReconnectBaseDelay,
				DialTimeout: cfg.DialTimeout,
				Dialer:      dialer,
				Limiter:     limiter,
			})
		},
		Recent:        store,
		User:          user,
		Clock:         core.SystemClock{},
		NotifyTimeout: cfg.NotifyTimeout,
		ReadyTimeout:  cfg.EmbedReadyTimeout,
	}
	if cfg.PeerFallback {
		rtcCfg := rtc.DefaultConfig(cfg.STUNURLs...)
		deps.Media = func() orch.Media { return rtc.NewMesh(ctx, rtcCfg, user.ID) }
	}
	o := orch.New(deps)

	r := router.SetupRouter(ctx, cfg, o)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("user", string(user.ID)).Msg("Meet client bridge started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	o.Close()
	log.Info().Msg("Client exited gracefully")
}

func recentStore(ctx context.Context, cfg *config.Config, user domain.UserID) (recent.Store, func(), error) {
	switch cfg.RecentBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		key := cfg.RedisKey + ":" + string(user)
		return recent.NewRedisStore(rdb, key), func() { _ = rdb.Close() }, nil
	case "memory":
		return recent.NewMemoryStore(), func() {}, nil
	default:
		return recent.NewFileStore(cfg.RecentPath), func() {}, nil
	}
}
