// Package config loads server configuration from the environment, with a
// .env file honored for local development.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full server configuration.
type Config struct {
	Port           string `envconfig:"PORT" default:"8080"`
	CORSOrigin     string `envconfig:"CORS_ORIGIN" default:"*"`
	DatabaseURL    string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL       string `envconfig:"REDIS_URL" default:"localhost:6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"migrations"`

	// Room/session behavior.
	MaxRoomMembers int           `envconfig:"MAX_ROOM_MEMBERS" default:"100"`
	TypingTimeout  time.Duration `envconfig:"TYPING_TIMEOUT" default:"3s"`
	PresenceWindow time.Duration `envconfig:"PRESENCE_WINDOW" default:"5m"`

	// Background maintenance.
	SweepInterval    time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	CleanupInterval  time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h"`
	RoomIdleTTL      time.Duration `envconfig:"ROOM_IDLE_TTL" default:"24h"`
	MessageRetention time.Duration `envconfig:"MESSAGE_RETENTION" default:"720h"`

	// Per-connection inbound WebSocket budget.
	WSEventsPerSecond float64 `envconfig:"WS_EVENTS_PER_SECOND" default:"10"`
	WSEventBurst      int     `envconfig:"WS_EVENT_BURST" default:"20"`

	// HTTP rate limiting (per client IP, Redis-backed).
	HTTPRateLimit  int           `envconfig:"HTTP_RATE_LIMIT" default:"100"`
	HTTPRateWindow time.Duration `envconfig:"HTTP_RATE_WINDOW" default:"15m"`

	// SMS invites. Invites are disabled when the SID is empty.
	TwilioAccountSID string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `envconfig:"TWILIO_FROM_NUMBER"`

	// Message archive (S3-compatible). Archival is skipped when the
	// endpoint is empty.
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" default:"minioadmin"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" default:"minioadmin"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"anonchat-archive"`
	S3UseSSL    bool   `envconfig:"S3_USE_SSL" default:"false"`
}

// Load reads configuration from the environment. A missing .env file is
// not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}
