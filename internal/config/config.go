// Package config maps the planvas configuration file onto typed settings.
package config

import (
	"time"

	pkgConfig "github.com/CeeFeS/TinyPlanvas/pkg/config"
	"github.com/CeeFeS/TinyPlanvas/pkg/logger"
)

// AppName is the configuration file and env prefix name.
const AppName = "planvas"

// BackendConfig locates the record store.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// AuthConfig carries the credentials used on startup.
type AuthConfig struct {
	Identity string
	Password string
	// Token, when set, is refreshed instead of re-authenticating.
	Token string
}

// RedisConfig locates the pub/sub broker for the redis transport.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RealtimeConfig selects the change-event transport.
type RealtimeConfig struct {
	// Transport is sse or redis.
	Transport string
	Redis     RedisConfig
}

// PresenceConfig tunes the collaborator roster.
type PresenceConfig struct {
	Heartbeat time.Duration
	Staleness time.Duration
}

// Config is the full typed application configuration.
type Config struct {
	Backend  BackendConfig
	Auth     AuthConfig
	Realtime RealtimeConfig
	Presence PresenceConfig
	Log      logger.Config
}

// Load reads configs/{APP_ENV}/planvas.yaml (falling back to the example
// config) and maps it onto typed settings. PLANVAS_* environment variables
// override file values.
func Load() (*Config, error) {
	raw, err := pkgConfig.Load(AppName)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Backend: BackendConfig{
			BaseURL: raw.GetString("backend.base_url"),
			Timeout: time.Duration(raw.GetInt("backend.timeout_seconds")) * time.Second,
		},
		Auth: AuthConfig{
			Identity: raw.GetString("auth.identity"),
			Password: raw.GetString("auth.password"),
			Token:    raw.GetString("auth.token"),
		},
		Realtime: RealtimeConfig{
			Transport: raw.GetString("realtime.transport"),
			Redis: RedisConfig{
				Addr:     raw.GetString("realtime.redis.addr"),
				Password: raw.GetString("realtime.redis.password"),
				DB:       raw.GetInt("realtime.redis.db"),
			},
		},
		Presence: PresenceConfig{
			Heartbeat: time.Duration(raw.GetInt("presence.heartbeat_seconds")) * time.Second,
			Staleness: time.Duration(raw.GetInt("presence.staleness_seconds")) * time.Second,
		},
		Log: logger.Config{
			Level:       raw.GetString("log.level"),
			Format:      raw.GetString("log.format"),
			Output:      raw.GetString("log.output"),
			FilePath:    raw.GetString("log.file_path"),
			Development: raw.GetBool("log.development"),
		},
	}

	if cfg.Realtime.Transport == "" {
		cfg.Realtime.Transport = "sse"
	}
	return cfg, nil
}
