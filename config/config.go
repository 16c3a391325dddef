// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// Call Validate before wiring components; optional features (history archive,
// Redis name cache, tracing) stay off when their variables are empty.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // DISPLAY_TIMEZONE must resolve in minimal images

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Event sources.
const (
	SourceDiscord = "discord"
	SourceTwitch  = "twitch"
)

type Config struct {
	// Discord
	DiscordBotToken       string `env:"DISCORD_BOT_TOKEN"`
	DiscordLearningChanID string `env:"DISCORD_LEARNING_CHANNEL_ID"`

	// Slack
	SlackBotToken       string        `env:"SLACK_BOT_TOKEN"`
	SlackLearningChanID string        `env:"SLACK_LEARNING_CHANNEL_ID"`
	SlackAPITimeout     time.Duration `env:"SLACK_API_TIMEOUT" envDefault:"15s"`

	// Session store
	SessionAPIURL     string        `env:"SESSION_API_URL"`
	SessionAPIKey     string        `env:"SESSION_API_KEY"`
	SessionAPITimeout time.Duration `env:"SESSION_API_TIMEOUT" envDefault:"15s"`

	// Process
	Port            string `env:"PORT" envDefault:"3001"`
	DisplayTimezone string `env:"DISPLAY_TIMEZONE" envDefault:"Asia/Tokyo"`
	EventSource     string `env:"EVENT_SOURCE" envDefault:"discord"`
	EventQueueSize  int    `env:"EVENT_QUEUE_SIZE" envDefault:"256"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string `env:"LOG_FORMAT" envDefault:"text"`

	// Twitch (EVENT_SOURCE=twitch)
	TwitchChannel      string `env:"TWITCH_CHANNEL"`
	TwitchBotUsername  string `env:"TWITCH_BOT_USERNAME"`
	TwitchOAuthToken   string `env:"TWITCH_OAUTH_TOKEN"`
	TwitchClientID     string `env:"TWITCH_CLIENT_ID"`
	TwitchClientSecret string `env:"TWITCH_CLIENT_SECRET"`

	// Optional backends
	DBDsn         string `env:"DB_DSN"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Load reads a .env file when present, then the environment, and applies
// defaults. It does not check required fields; use Validate.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.EventSource = strings.ToLower(strings.TrimSpace(cfg.EventSource))
	return cfg, nil
}

// Validate checks the fields required by the configured event source.
func (c *Config) Validate() error {
	var missing []string
	need := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	need("SLACK_BOT_TOKEN", c.SlackBotToken)
	need("SLACK_LEARNING_CHANNEL_ID", c.SlackLearningChanID)
	need("SESSION_API_URL", c.SessionAPIURL)
	need("SESSION_API_KEY", c.SessionAPIKey)

	switch c.EventSource {
	case SourceDiscord:
		need("DISCORD_BOT_TOKEN", c.DiscordBotToken)
		need("DISCORD_LEARNING_CHANNEL_ID", c.DiscordLearningChanID)
	case SourceTwitch:
		need("TWITCH_CHANNEL", c.TwitchChannel)
		need("TWITCH_BOT_USERNAME", c.TwitchBotUsername)
		need("TWITCH_OAUTH_TOKEN", c.TwitchOAuthToken)
	default:
		return fmt.Errorf("invalid EVENT_SOURCE %q (want %s or %s)", c.EventSource, SourceDiscord, SourceTwitch)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing env: %s", strings.Join(missing, ", "))
	}
	if c.SessionAPITimeout < 0 {
		return errors.New("SESSION_API_TIMEOUT must not be negative")
	}
	if c.SlackAPITimeout < 0 {
		return errors.New("SLACK_API_TIMEOUT must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// WatchedChannelID is the channel whose occupancy drives sessions.
func (c *Config) WatchedChannelID() string {
	if c.EventSource == SourceTwitch {
		return strings.ToLower(strings.TrimPrefix(c.TwitchChannel, "#"))
	}
	return c.DiscordLearningChanID
}

// HelixEnabled reports whether Twitch app credentials are configured.
func (c *Config) HelixEnabled() bool {
	return c.TwitchClientID != "" && c.TwitchClientSecret != ""
}

// Location resolves DISPLAY_TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_TIMEZONE %q: %w", c.DisplayTimezone, err)
	}
	return loc, nil
}
