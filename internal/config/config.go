package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	Port     int    `mapstructure:"port"`
	Secret   string `mapstructure:"secret"`
	LogLevel string `mapstructure:"log_level"`

	APIBaseURL  string `mapstructure:"api_base_url"`
	WSBaseURL   string `mapstructure:"ws_base_url"`
	AccessToken string `mapstructure:"access_token"`
	UserID      string `mapstructure:"user_id"`
	DisplayName string `mapstructure:"display_name"`

	EmbedOrigin       string        `mapstructure:"embed_origin"`
	EmbedReadyTimeout time.Duration `mapstructure:"embed_ready_timeout"`

	ReconnectAttempts  int           `mapstructure:"reconnect_attempts"`
	ReconnectBaseDelay time.Duration `mapstructure:"reconnect_base_delay"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	NotifyTimeout      time.Duration `mapstructure:"notify_timeout"`
	ReadLimit          int64         `mapstructure:"read_limit"`

	ChatRateLimit    int           `mapstructure:"chat_rate_limit"`
	ChatRateInterval time.Duration `mapstructure:"chat_rate_interval"`

	RecentBackend string `mapstructure:"recent_backend"`
	RecentPath    string `mapstructure:"recent_path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisKey      string `mapstructure:"redis_key"`

	PeerFallback bool     `mapstructure:"peer_fallback"`
	STUNURLs     []string `mapstructure:"stun_urls"`
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default).
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName over the defaults; a missing file is not an error.
// MEET_* environment variables override both.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("MEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8090)
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("api_base_url", "http://localhost:8000")
	v.SetDefault("ws_base_url", "ws://localhost:8000")
	v.SetDefault("access_token", "")
	v.SetDefault("user_id", "")
	v.SetDefault("display_name", "")
	v.SetDefault("embed_origin", "https://sfu.mirotalk.com")
	v.SetDefault("embed_ready_timeout", "60s")
	v.SetDefault("reconnect_attempts", 5)
	v.SetDefault("reconnect_base_delay", "1s")
	v.SetDefault("dial_timeout", "10s")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("notify_timeout", "5s")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("chat_rate_limit", 5)
	v.SetDefault("chat_rate_interval", "3s")
	v.SetDefault("recent_backend", "file")
	v.SetDefault("recent_path", "recent_rooms.json")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_key", "meet:recent")
	v.SetDefault("peer_fallback", false)
	v.SetDefault("stun_urls", []string{"stun:stun.l.google.com:19302"})

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("recent", cfg.RecentBackend).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.RecentBackend {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("config: unknown recent_backend %q", c.RecentBackend)
	}
	if c.ReconnectAttempts <= 0 {
		return fmt.Errorf("config: reconnect_attempts must be positive, got %d", c.ReconnectAttempts)
	}
	return nil
}
